package scoring

import (
	"context"
	"sort"
	"strings"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process ConfigStore. It backs tests and single-node
// deployments; multi-node deployments use RedisStore.
type MemoryStore struct {
	items *gocache.Cache
}

const (
	memKeyConfig    = "config:"
	memKeyPatient   = "patient:"
	memKeyTherapist = "therapist:"
	memKeyLink      = "link:"
	memKeyName      = "name:"
	memKeyPin       = "pin:"
)

// NewMemoryStore returns an empty store. Entries never expire; scoring
// configurations are evicted by replacement, not by TTL.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: gocache.New(gocache.NoExpiration, 0)}
}

// PutConfig stores a configuration and indexes it by its scope.
func (s *MemoryStore) PutConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.items.Set(memKeyConfig+cfg.ID, cfg, gocache.NoExpiration)
	if !cfg.Active {
		return nil
	}
	if cfg.PatientID != "" {
		s.items.Set(memKeyPatient+cfg.PatientID, cfg, gocache.NoExpiration)
	}
	if cfg.TherapistID != "" {
		s.items.Set(memKeyTherapist+cfg.TherapistID, cfg, gocache.NoExpiration)
	}
	if cfg.Scope == ScopeGlobal {
		s.items.Set(memKeyName+cfg.Name, cfg, gocache.NoExpiration)
	}
	return nil
}

// LinkPatientTherapist records which therapist's configuration applies to a
// patient.
func (s *MemoryStore) LinkPatientTherapist(patientID, therapistID string) {
	s.items.Set(memKeyLink+patientID, therapistID, gocache.NoExpiration)
}

func (s *MemoryStore) get(key string) (*Config, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return nil, ErrConfigNotFound
	}
	cfg := v.(Config)
	return &cfg, nil
}

// SessionPin implements ConfigStore.
func (s *MemoryStore) SessionPin(_ context.Context, sessionID string) (*Config, error) {
	return s.get(memKeyPin + sessionID)
}

// PinSession implements ConfigStore. go-cache's Add is first-write-wins,
// which gives the write-once pin semantics directly.
func (s *MemoryStore) PinSession(ctx context.Context, sessionID string, cfg Config) (*Config, error) {
	if err := s.items.Add(memKeyPin+sessionID, cfg, gocache.NoExpiration); err != nil {
		return s.SessionPin(ctx, sessionID)
	}
	return &cfg, nil
}

// PatientConfig implements ConfigStore.
func (s *MemoryStore) PatientConfig(_ context.Context, patientID string) (*Config, error) {
	return s.get(memKeyPatient + patientID)
}

// TherapistConfig implements ConfigStore.
func (s *MemoryStore) TherapistConfig(_ context.Context, patientID string) (*Config, error) {
	v, ok := s.items.Get(memKeyLink + patientID)
	if !ok {
		return nil, ErrConfigNotFound
	}
	return s.get(memKeyTherapist + v.(string))
}

// ByName implements ConfigStore.
func (s *MemoryStore) ByName(_ context.Context, name string) (*Config, error) {
	return s.get(memKeyName + name)
}

// AnyActive implements ConfigStore. The lowest config ID wins so repeated
// resolutions are deterministic.
func (s *MemoryStore) AnyActive(_ context.Context) (*Config, error) {
	var ids []string
	for key, item := range s.items.Items() {
		if !strings.HasPrefix(key, memKeyConfig) {
			continue
		}
		if cfg, ok := item.Object.(Config); ok && cfg.Active {
			ids = append(ids, key)
		}
	}
	if len(ids) == 0 {
		return nil, ErrConfigNotFound
	}
	sort.Strings(ids)
	return s.get(ids[0])
}
