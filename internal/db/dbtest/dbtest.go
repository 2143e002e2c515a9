// Package dbtest opens migrated databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpattn/spstaglib/internal/db"
)

// NewSQLite returns a connection to a freshly migrated SQLite database that is
// closed when the test ends.
func NewSQLite(t testing.TB) *db.SQLiteConnection {
	t.Helper()

	ctx := context.Background()
	cfg := db.Config{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "spstaglib.db"),
	}
	require.NoError(t, db.RunMigrations(ctx, cfg, nil))

	conn, err := db.OpenSQLite(ctx, cfg.Path, nil)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	return conn
}
