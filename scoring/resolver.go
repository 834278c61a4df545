package scoring

import (
	"context"
	"errors"
	"fmt"
)

// ErrConfigNotFound reports that a store or strategy holds no configuration
// for the requested key. Strategies return it to pass control down the
// chain; any other error aborts resolution.
var ErrConfigNotFound = errors.New("scoring configuration not found")

// ConfigStore is the persistence boundary for scoring configurations and
// session pins. Implementations must make PinSession write-once: the first
// pin for a session wins and later pins are ignored.
type ConfigStore interface {
	// SessionPin returns the configuration pinned to a session, or
	// ErrConfigNotFound.
	SessionPin(ctx context.Context, sessionID string) (*Config, error)
	// PinSession pins a configuration to a session. If the session already
	// has a pin, the existing pin is kept and returned.
	PinSession(ctx context.Context, sessionID string, cfg Config) (*Config, error)
	// PatientConfig returns the patient's active configuration, or
	// ErrConfigNotFound.
	PatientConfig(ctx context.Context, patientID string) (*Config, error)
	// TherapistConfig returns the active configuration of the patient's
	// therapist, or ErrConfigNotFound.
	TherapistConfig(ctx context.Context, patientID string) (*Config, error)
	// ByName returns the active global configuration with the given name,
	// or ErrConfigNotFound.
	ByName(ctx context.Context, name string) (*Config, error)
	// AnyActive returns some active configuration deterministically (lowest
	// ID), or ErrConfigNotFound.
	AnyActive(ctx context.Context) (*Config, error)
}

// Strategy is one tier of the resolution chain.
type Strategy struct {
	Name    string
	Resolve func(ctx context.Context, sessionID, patientID string) (*Config, error)
}

// Resolver finds the effective configuration for a session by trying an
// ordered list of strategies; the first hit wins. Adding a priority tier is
// one entry in the slice, not another nesting level.
type Resolver struct {
	store      ConfigStore
	strategies []Strategy
}

// NewResolver builds the standard chain: session pin, patient override,
// therapist override, named global default, then any active configuration as
// the last resort.
func NewResolver(store ConfigStore) *Resolver {
	r := &Resolver{store: store}
	r.strategies = []Strategy{
		{Name: "session-pin", Resolve: func(ctx context.Context, sessionID, _ string) (*Config, error) {
			if sessionID == "" {
				return nil, ErrConfigNotFound
			}
			return store.SessionPin(ctx, sessionID)
		}},
		{Name: "patient", Resolve: func(ctx context.Context, _, patientID string) (*Config, error) {
			if patientID == "" {
				return nil, ErrConfigNotFound
			}
			return store.PatientConfig(ctx, patientID)
		}},
		{Name: "therapist", Resolve: func(ctx context.Context, _, patientID string) (*Config, error) {
			if patientID == "" {
				return nil, ErrConfigNotFound
			}
			return store.TherapistConfig(ctx, patientID)
		}},
		{Name: "global-default", Resolve: func(ctx context.Context, _, _ string) (*Config, error) {
			return store.ByName(ctx, DefaultConfigName)
		}},
		{Name: "any-active", Resolve: func(ctx context.Context, _, _ string) (*Config, error) {
			return store.AnyActive(ctx)
		}},
	}
	return r
}

// Resolve returns the effective configuration for a session together with
// the name of the strategy that produced it. Resolved configurations are
// validated before being handed out.
func (r *Resolver) Resolve(ctx context.Context, sessionID, patientID string) (*Config, string, error) {
	for _, s := range r.strategies {
		cfg, err := s.Resolve(ctx, sessionID, patientID)
		if errors.Is(err, ErrConfigNotFound) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("resolve via %s: %w", s.Name, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, "", fmt.Errorf("resolve via %s: %w", s.Name, err)
		}
		return cfg, s.Name, nil
	}
	return nil, "", ErrConfigNotFound
}

// PinToSession freezes the given configuration as the session's effective
// configuration. Pinning is write-once: if a pin already exists it is
// returned unchanged, so a session's historical score can never drift.
func (r *Resolver) PinToSession(ctx context.Context, sessionID string, cfg Config) (*Config, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("pin: session id is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pin: %w", err)
	}
	pinned := cfg
	pinned.Scope = ScopeSession
	return r.store.PinSession(ctx, sessionID, pinned)
}
