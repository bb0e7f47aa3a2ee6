// Package memory provides an in-process progress store used by tests and
// by the memory storage driver.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// Store keeps deep copies of progress records and settings.
type Store struct {
	mu       sync.RWMutex
	progress map[shared.InstallationID]*progress.UserProgress
	settings map[shared.InstallationID]progress.Settings

	// failSave, when set, is returned by Save. Used to simulate an unavailable store.
	failSave error
}

var (
	_ progress.Repository         = (*Store)(nil)
	_ progress.SettingsRepository = (*Store)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		progress: make(map[shared.InstallationID]*progress.UserProgress),
		settings: make(map[shared.InstallationID]progress.Settings),
	}
}

// FailSaves makes every subsequent Save return err. nil restores normal behavior.
func (s *Store) FailSaves(err error) {
	s.mu.Lock()
	s.failSave = err
	s.mu.Unlock()
}

// Load returns a copy of the stored record.
func (s *Store) Load(ctx context.Context, id shared.InstallationID) (*progress.UserProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[id]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return p.Clone(), nil
}

// Save stores a copy if the stored version equals expectedVersion.
func (s *Store) Save(ctx context.Context, p *progress.UserProgress, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSave != nil {
		return s.failSave
	}

	var current int64
	if stored, ok := s.progress[p.InstallationID]; ok {
		current = stored.Version
	}
	if current != expectedVersion {
		return shared.ErrStaleVersion
	}

	c := p.Clone()
	c.Version = expectedVersion + 1
	s.progress[p.InstallationID] = c
	p.Version = c.Version
	return nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, id shared.InstallationID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, id)
	return nil
}

// List returns stored IDs sorted.
func (s *Store) List(ctx context.Context) ([]shared.InstallationID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]shared.InstallationID, 0, len(s.progress))
	for id := range s.progress {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// GetSettings returns stored settings or the defaults.
func (s *Store) GetSettings(ctx context.Context, id shared.InstallationID) (progress.Settings, error) {
	if err := ctx.Err(); err != nil {
		return progress.Settings{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.settings[id]
	if !ok {
		return progress.DefaultSettings(), nil
	}
	st.PreferredMarketplaces = slices.Clone(st.PreferredMarketplaces)
	return st, nil
}

// SaveSettings stores settings.
func (s *Store) SaveSettings(ctx context.Context, id shared.InstallationID, st progress.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st.PreferredMarketplaces = slices.Clone(st.PreferredMarketplaces)
	s.settings[id] = st
	return nil
}
