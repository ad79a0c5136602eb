package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 6000
persistence:
  backend: sqlite
  path: /tmp/laurels.db
scheduler:
  autosave_interval: 90s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Persistence.Backend)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.AutosaveInterval)
	// untouched sections keep their defaults
	assert.Equal(t, "data/achievements.yml", cfg.Catalog.Path)
	assert.True(t, cfg.Rewards.AutoGrant)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 6000\n")
	t.Setenv("LAURELS_SERVER_PORT", "7000")
	t.Setenv("LAURELS_CATALOG_PATH", "/etc/laurels/catalog.yml")
	t.Setenv("LAURELS_REWARDS_AUTO_GRANT", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "/etc/laurels/catalog.yml", cfg.Catalog.Path)
	assert.False(t, cfg.Rewards.AutoGrant)
}

func TestDevelopmentEnvironmentTweaks(t *testing.T) {
	path := writeConfig(t, "server:\n  environment: development\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.AutosaveInterval)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Persistence.Backend = "redis"
	cfg.Rewards.HistoryLimit = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port number")
	assert.Contains(t, err.Error(), "unknown persistence backend")
	assert.Contains(t, err.Error(), "history limit")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestGetAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	assert.Equal(t, "127.0.0.1:5090", cfg.GetAddr())
}

func TestBackupSettings(t *testing.T) {
	path := writeConfig(t, `
persistence:
  backend: sqlite
  path: data/laurels.db
  backup_dir: /var/backups/laurels
  max_backups: 3
scheduler:
  backup_interval: 12h
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/backups/laurels", cfg.Persistence.BackupDir)
	assert.Equal(t, 3, cfg.Persistence.MaxBackups)
	assert.True(t, cfg.Persistence.CompressBackups)
	assert.Equal(t, 12*time.Hour, cfg.Scheduler.BackupInterval)

	cfg.Persistence.MaxBackups = -1
	assert.ErrorContains(t, cfg.Validate(), "max backups")
}
