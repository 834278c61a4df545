package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the shared ConfigStore used when several analyzer instances
// must agree on pins and overrides. Payloads are JSON under namespaced keys.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func configKey(id string) string { return fmt.Sprintf("scoring:config:%s", id) }

func patientKey(id string) string { return fmt.Sprintf("scoring:patient:%s", id) }

func therapistKey(id string) string { return fmt.Sprintf("scoring:therapist:%s", id) }

func linkKey(patientID string) string { return fmt.Sprintf("scoring:link:%s", patientID) }

func nameKey(name string) string { return fmt.Sprintf("scoring:name:%s", name) }

func pinKey(sessionID string) string { return fmt.Sprintf("scoring:pin:%s", sessionID) }

const activeSetKey = "scoring:active"

// PutConfig stores a configuration and indexes it by its scope.
func (s *RedisStore) PutConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config %s: %w", cfg.ID, err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, configKey(cfg.ID), data, 0)
	if cfg.Active {
		pipe.SAdd(ctx, activeSetKey, cfg.ID)
		if cfg.PatientID != "" {
			pipe.Set(ctx, patientKey(cfg.PatientID), data, 0)
		}
		if cfg.TherapistID != "" {
			pipe.Set(ctx, therapistKey(cfg.TherapistID), data, 0)
		}
		if cfg.Scope == ScopeGlobal {
			pipe.Set(ctx, nameKey(cfg.Name), data, 0)
		}
	} else {
		pipe.SRem(ctx, activeSetKey, cfg.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store config %s: %w", cfg.ID, err)
	}
	return nil
}

// LinkPatientTherapist records which therapist's configuration applies to a
// patient.
func (s *RedisStore) LinkPatientTherapist(ctx context.Context, patientID, therapistID string) error {
	return s.client.Set(ctx, linkKey(patientID), therapistID, 0).Err()
}

func (s *RedisStore) get(ctx context.Context, key string) (*Config, error) {
	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	var cfg Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return &cfg, nil
}

// SessionPin implements ConfigStore.
func (s *RedisStore) SessionPin(ctx context.Context, sessionID string) (*Config, error) {
	return s.get(ctx, pinKey(sessionID))
}

// PinSession implements ConfigStore. SETNX makes the pin write-once across
// instances; on a lost race the winning pin is returned.
func (s *RedisStore) PinSession(ctx context.Context, sessionID string, cfg Config) (*Config, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal pin for %s: %w", sessionID, err)
	}
	set, err := s.client.SetNX(ctx, pinKey(sessionID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("pin session %s: %w", sessionID, err)
	}
	if !set {
		return s.SessionPin(ctx, sessionID)
	}
	return &cfg, nil
}

// PatientConfig implements ConfigStore.
func (s *RedisStore) PatientConfig(ctx context.Context, patientID string) (*Config, error) {
	return s.get(ctx, patientKey(patientID))
}

// TherapistConfig implements ConfigStore.
func (s *RedisStore) TherapistConfig(ctx context.Context, patientID string) (*Config, error) {
	therapistID, err := s.client.Get(ctx, linkKey(patientID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("get therapist link for %s: %w", patientID, err)
	}
	return s.get(ctx, therapistKey(therapistID))
}

// ByName implements ConfigStore.
func (s *RedisStore) ByName(ctx context.Context, name string) (*Config, error) {
	return s.get(ctx, nameKey(name))
}

// AnyActive implements ConfigStore. The lowest active config ID wins so
// repeated resolutions are deterministic.
func (s *RedisStore) AnyActive(ctx context.Context) (*Config, error) {
	ids, err := s.client.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active configs: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrConfigNotFound
	}
	sort.Strings(ids)
	return s.get(ctx, configKey(ids[0]))
}
