package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository and
// progress.SettingsRepository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

var (
	_ progress.Repository         = (*ProgressRepository)(nil)
	_ progress.SettingsRepository = (*ProgressRepository)(nil)
)

// ─────────────────────────────────────────────────────────────────────────────
// Progress
// ─────────────────────────────────────────────────────────────────────────────

// Load returns the progress record of an installation.
func (r *ProgressRepository) Load(ctx context.Context, id shared.InstallationID) (*progress.UserProgress, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var (
		version int64
		data    []byte
	)
	err := r.conn.QueryRow(ctx,
		`SELECT version, data FROM user_progress WHERE installation_id = $1`,
		id.String(),
	).Scan(&version, &data)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	var p progress.UserProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	p.InstallationID = id
	p.Version = version
	return &p, nil
}

// Save writes the record if the stored version equals expectedVersion.
func (r *ProgressRepository) Save(ctx context.Context, p *progress.UserProgress, expectedVersion int64) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	next := *p
	next.Version = expectedVersion + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	var (
		query string
		args  []interface{}
	)
	if expectedVersion == 0 {
		query = `
			INSERT INTO user_progress (installation_id, version, data, xp, level, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (installation_id) DO NOTHING
		`
		args = []interface{}{p.InstallationID.String(), next.Version, data, p.XP.Int(), p.Level, p.CreatedAt}
	} else {
		query = `
			UPDATE user_progress SET
				version = $2,
				data = $3,
				xp = $4,
				level = $5
			WHERE installation_id = $1 AND version = $6
		`
		args = []interface{}{p.InstallationID.String(), next.Version, data, p.XP.Int(), p.Level, expectedVersion}
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStaleVersion
	}

	p.Version = next.Version
	return nil
}

// Delete removes the progress and settings of an installation.
func (r *ProgressRepository) Delete(ctx context.Context, id shared.InstallationID) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	if _, err := r.conn.Exec(ctx, `DELETE FROM user_progress WHERE installation_id = $1`, id.String()); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

// List returns every stored installation ID.
func (r *ProgressRepository) List(ctx context.Context) ([]shared.InstallationID, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, `SELECT installation_id FROM user_progress ORDER BY installation_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var ids []shared.InstallationID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan installation id: %w", err)
		}
		ids = append(ids, shared.InstallationID(id))
	}
	return ids, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// GetSettings returns stored settings or the defaults.
func (r *ProgressRepository) GetSettings(ctx context.Context, id shared.InstallationID) (progress.Settings, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var data []byte
	err := r.conn.QueryRow(ctx,
		`SELECT data FROM user_settings WHERE installation_id = $1`,
		id.String(),
	).Scan(&data)
	if err != nil {
		if IsNoRows(err) {
			return progress.DefaultSettings(), nil
		}
		return progress.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	s := progress.DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return progress.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s, nil
}

// SaveSettings upserts settings.
func (r *ProgressRepository) SaveSettings(ctx context.Context, id shared.InstallationID, s progress.Settings) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO user_settings (installation_id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (installation_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()
	`, id.String(), data)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
