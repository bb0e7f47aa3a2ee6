package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS STORE
// ══════════════════════════════════════════════════════════════════════════════

// ProgressStore implements progress.Repository and progress.SettingsRepository.
// Each record is one JSON string; Save uses WATCH/MULTI for compare-and-swap.
type ProgressStore struct {
	cache *Cache
}

var (
	_ progress.Repository         = (*ProgressStore)(nil)
	_ progress.SettingsRepository = (*ProgressStore)(nil)
)

// NewProgressStore creates a store on top of cache.
func NewProgressStore(cache *Cache) *ProgressStore {
	return &ProgressStore{cache: cache}
}

func (s *ProgressStore) progressKey(id shared.InstallationID) string {
	return s.cache.Key(PrefixProgress, id.String())
}

func (s *ProgressStore) settingsKey(id shared.InstallationID) string {
	return s.cache.Key(PrefixSettings, id.String())
}

// Load returns the progress record of an installation.
func (s *ProgressStore) Load(ctx context.Context, id shared.InstallationID) (*progress.UserProgress, error) {
	var p progress.UserProgress
	if err := s.cache.Get(ctx, s.progressKey(id), &p); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, fmt.Errorf("load progress: %w", err)
	}
	p.InstallationID = id
	return &p, nil
}

// Save writes the record if the stored version equals expectedVersion.
func (s *ProgressStore) Save(ctx context.Context, p *progress.UserProgress, expectedVersion int64) error {
	key := s.progressKey(p.InstallationID)

	next := *p
	next.Version = expectedVersion + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	err = s.cache.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return shared.ErrStaleVersion
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		p.Version = next.Version
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return shared.ErrStaleVersion
	case errors.Is(err, shared.ErrStaleVersion):
		return err
	default:
		return fmt.Errorf("save progress: %w", err)
	}
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return v.Version, nil
}

// Delete removes the progress record of an installation.
func (s *ProgressStore) Delete(ctx context.Context, id shared.InstallationID) error {
	if err := s.cache.Delete(ctx, s.progressKey(id)); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

// List returns every stored installation ID, sorted.
func (s *ProgressStore) List(ctx context.Context) ([]shared.InstallationID, error) {
	prefix := s.cache.Key(PrefixProgress)
	keys, err := s.cache.ScanKeys(ctx, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	ids := make([]shared.InstallationID, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, shared.InstallationID(strings.TrimPrefix(k, prefix)))
	}
	slices.Sort(ids)
	return ids, nil
}

// GetSettings returns stored settings or the defaults.
func (s *ProgressStore) GetSettings(ctx context.Context, id shared.InstallationID) (progress.Settings, error) {
	st := progress.DefaultSettings()
	err := s.cache.Get(ctx, s.settingsKey(id), &st)
	if errors.Is(err, ErrCacheMiss) {
		return progress.DefaultSettings(), nil
	}
	if err != nil {
		return progress.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return st, nil
}

// SaveSettings stores settings without expiry.
func (s *ProgressStore) SaveSettings(ctx context.Context, id shared.InstallationID, st progress.Settings) error {
	if err := s.cache.Set(ctx, s.settingsKey(id), st, 0); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
