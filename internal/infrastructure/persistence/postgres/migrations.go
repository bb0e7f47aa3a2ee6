package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Migration - шаг схемы. Версии применяются по возрастанию, каждая в своей транзакции.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations возвращает все шаги схемы.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_progress", SQL: createProgressSQL},
		{Version: 2, Name: "create_settings", SQL: createSettingsSQL},
	}
}

// Migrator применяет недостающие шаги и отмечает их в schema_migrations.
type Migrator struct {
	conn *Connection
}

// NewMigrator создает мигратор поверх соединения.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn}
}

// Up применяет все еще не отмеченные шаги и возвращает их версии.
// Повторный вызов ничего не делает и возвращает пустой список.
func (m *Migrator) Up(ctx context.Context) ([]int, error) {
	if _, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`); err != nil {
		return nil, fmt.Errorf("postgres: create schema_migrations: %w", err)
	}

	done, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var applied []int
	for _, mig := range Migrations() {
		if done[mig.Version] {
			continue
		}
		err := m.conn.inTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("postgres: migration %d %s: %w", mig.Version, mig.Name, err)
		}
		applied = append(applied, mig.Version)
	}
	return applied, nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("postgres: read schema_migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

const createProgressSQL = `
CREATE TABLE IF NOT EXISTS user_progress (
    installation_id VARCHAR(64) PRIMARY KEY,
    version BIGINT NOT NULL CHECK (version > 0),
    data JSONB NOT NULL,
    xp INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
    level INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_user_progress_updated_at ON user_progress(updated_at);

CREATE OR REPLACE FUNCTION touch_updated_at()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS user_progress_touch ON user_progress;
CREATE TRIGGER user_progress_touch
    BEFORE UPDATE ON user_progress
    FOR EACH ROW
    EXECUTE FUNCTION touch_updated_at();
`

const createSettingsSQL = `
CREATE TABLE IF NOT EXISTS user_settings (
    installation_id VARCHAR(64) PRIMARY KEY,
    data JSONB NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`
