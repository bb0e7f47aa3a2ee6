// Package sqlite provides a single-file SQLite progress store.
// It is the default for local installs and the CLI.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/persistence/sqlite/migrations"
)

// Store persists progress records and settings in SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ progress.Repository         = (*Store)(nil)
	_ progress.SettingsRepository = (*Store)(nil)
)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load returns the progress record of an installation.
func (s *Store) Load(ctx context.Context, id shared.InstallationID) (*progress.UserProgress, error) {
	var (
		version int64
		data    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, data FROM user_progress WHERE installation_id = ?`, id.String(),
	).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	var p progress.UserProgress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	p.InstallationID = id
	p.Version = version
	return &p, nil
}

// Save writes the record if the stored version equals expectedVersion.
func (s *Store) Save(ctx context.Context, p *progress.UserProgress, expectedVersion int64) error {
	next := *p
	next.Version = expectedVersion + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	var res sql.Result
	if expectedVersion == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO user_progress (installation_id, version, data, xp, level, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.InstallationID.String(), next.Version, string(data), p.XP.Int(), p.Level,
			toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
		)
		if isConstraintViolation(err) {
			return shared.ErrStaleVersion
		}
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE user_progress
			    SET version = ?, data = ?, xp = ?, level = ?, updated_at = ?
			  WHERE installation_id = ? AND version = ?`,
			next.Version, string(data), p.XP.Int(), p.Level, toMillis(p.UpdatedAt),
			p.InstallationID.String(), expectedVersion,
		)
	}
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	if n == 0 {
		return shared.ErrStaleVersion
	}

	p.Version = next.Version
	return nil
}

// Delete removes the progress record of an installation.
func (s *Store) Delete(ctx context.Context, id shared.InstallationID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_progress WHERE installation_id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

// List returns every stored installation ID.
func (s *Store) List(ctx context.Context) ([]shared.InstallationID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT installation_id FROM user_progress ORDER BY installation_id`)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var ids []shared.InstallationID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan installation id: %w", err)
		}
		ids = append(ids, shared.InstallationID(id))
	}
	return ids, rows.Err()
}

// GetSettings returns stored settings or the defaults.
func (s *Store) GetSettings(ctx context.Context, id shared.InstallationID) (progress.Settings, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM user_settings WHERE installation_id = ?`, id.String(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return progress.DefaultSettings(), nil
	}
	if err != nil {
		return progress.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	st := progress.DefaultSettings()
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return progress.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return st, nil
}

// SaveSettings upserts settings.
func (s *Store) SaveSettings(ctx context.Context, id shared.InstallationID, st progress.Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_settings (installation_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(installation_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		id.String(), string(data), toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
