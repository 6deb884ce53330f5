package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "test.db", cfg.Database.DSN)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime.Std())
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "@every 10m", cfg.Audit.Schedule)
	assert.True(t, cfg.Audit.Repair)
	assert.Equal(t, []string{"todo", "doing", "done"}, cfg.Engine.DefaultColumns)
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: "host=localhost user=board dbname=board"
  max_open_conns: 25
  conn_max_lifetime: 1h
logger:
  level: debug
audit:
  schedule: "@every 5m"
  repair: false
engine:
  default_columns: [backlog, active, shipped]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime.Std())
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "@every 5m", cfg.Audit.Schedule)
	assert.False(t, cfg.Audit.Repair)
	assert.Equal(t, []string{"backlog", "active", "shipped"}, cfg.Engine.DefaultColumns)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: test.db
  conn_max_lifetime: soon
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetDSN_EnvOverride(t *testing.T) {
	t.Setenv("DATABASE_DSN", "override.db")
	cfg := DatabaseConfig{DSN: "file.db"}
	assert.Equal(t, "override.db", cfg.GetDSN())

	t.Setenv("DATABASE_DSN", "")
	assert.Equal(t, "file.db", cfg.GetDSN())
}
