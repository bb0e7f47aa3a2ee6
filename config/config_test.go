package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "green-guardian.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 5*time.Second, cfg.Recommendation.Timeout)
	assert.Equal(t, "0 0 * * *", cfg.Scheduler.RolloverSchedule)
	assert.Equal(t, time.Local, cfg.Location)
	assert.False(t, cfg.Auth.Enabled())
	require.NotNil(t, cfg.Features)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"APP_ENV":             "staging",
		"TRACKER_TIMEZONE":    "+05:00",
		"STORAGE_DRIVER":      "Postgres",
		"DATABASE_URL":        "postgres://u:p@localhost:5432/gg",
		"DB_MAX_CONNS":        "4",
		"HTTP_PORT":           "9000",
		"HTTP_CORS_ORIGINS":   "https://a.example,https://b.example",
		"AUTH_API_KEY_HASHES": "$2a$10$x,$2a$10$y",
		"LOG_FORMAT":          "text",
	})
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.App.Environment)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, int32(4), cfg.Database.MaxConns)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
	assert.Len(t, cfg.Auth.APIKeyHashes, 2)
	assert.True(t, cfg.Auth.Enabled())

	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).In(cfg.Location).Zone()
	assert.Equal(t, 5*3600, offset)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	_, err := LoadFrom(map[string]string{
		"APP_ENV":          "production",
		"STORAGE_DRIVER":   "memory",
		"TRACKER_TIMEZONE": "Nowhere/Land",
		"HTTP_PORT":        "0",
		"LOG_FORMAT":       "xml",
	})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "TRACKER_TIMEZONE")
	assert.Contains(t, msg, "STORAGE_DRIVER=memory is not allowed in production")
	assert.Contains(t, msg, "AUTH_API_KEY_HASHES or AUTH_TOKEN_SECRET is required in production")
	assert.Contains(t, msg, "HTTP_CORS_ORIGINS must not be *")
	assert.Contains(t, msg, "HTTP_PORT must be 1-65535")
	assert.Contains(t, msg, "LOG_FORMAT must be json or text")
}

func TestValidate_Driver(t *testing.T) {
	_, err := LoadFrom(map[string]string{"STORAGE_DRIVER": "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `STORAGE_DRIVER "mongo"`)

	_, err = LoadFrom(map[string]string{"STORAGE_DRIVER": "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestValidate_ShortTokenSecret(t *testing.T) {
	_, err := LoadFrom(map[string]string{"AUTH_TOKEN_SECRET": "short"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")
}

func TestLoad_DotenvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GG_TEST_DOTENV_NAME=from-dotenv\n"), 0o600))

	_, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", os.Getenv("GG_TEST_DOTENV_NAME"))
	require.NoError(t, os.Unsetenv("GG_TEST_DOTENV_NAME"))
}

func TestLoad_MissingDotenvIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
