package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/spstaglib/internal/db"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, loaded, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, Default(), cfg)
}

func TestLoadReadsFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
database:
  driver: sqlite
  path: /var/lib/spstaglib/catalog.db
  port: 6543
http:
  addr: ":9090"
  allowed_origins:
    - https://admin.example.org
log:
  json: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
	t.Setenv("SPSTAG_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("SPSTAG_LOG_DEBUG", "true")

	cfg, loaded, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, db.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, []string{"https://admin.example.org"}, cfg.HTTP.AllowedOrigins)
	assert.True(t, cfg.Log.JSON)
	assert.True(t, cfg.Log.Debug)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("SPSTAG_DATABASE_DRIVER", "mysql")

	_, _, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}
