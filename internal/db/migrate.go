package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// RunMigrations applies every pending migration for the configured driver.
func RunMigrations(ctx context.Context, config Config, logger *zap.SugaredLogger) error {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := newMigrator(config)
	if err != nil {
		return err
	}
	m.Log = migrateLogger{logger: logger}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warnw("Failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Infow("Migrations up to date", "driver", config.Driver)
			return nil
		}
		return errors.Wrap(err, "failed to apply migrations")
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errors.Wrap(err, "failed to read migration version")
	}
	logger.Infow("Migrations complete",
		"driver", config.Driver,
		"version", version,
		"dirty", dirty,
	)
	return nil
}

func newMigrator(config Config) (*migrate.Migrate, error) {
	switch config.Driver {
	case DriverPostgres, "":
		src, err := iofs.New(migrations, "migrations/postgres")
		if err != nil {
			return nil, errors.Wrap(err, "failed to read migrations")
		}
		m, err := migrate.NewWithSourceInstance("iofs", src, config.URL("pgx5"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create migrator")
		}
		return m, nil
	case DriverSQLite:
		src, err := iofs.New(migrations, "migrations/sqlite")
		if err != nil {
			return nil, errors.Wrap(err, "failed to read migrations")
		}
		// The migrator closes this handle, so it gets its own.
		sqlDB, err := sql.Open("sqlite3", SQLiteDSN(config.Path))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open sqlite database %s", config.Path)
		}
		driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
		if err != nil {
			_ = sqlDB.Close()
			return nil, errors.Wrap(err, "failed to create sqlite migration driver")
		}
		m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
		if err != nil {
			_ = sqlDB.Close()
			return nil, errors.Wrap(err, "failed to create migrator")
		}
		return m, nil
	default:
		return nil, errors.Newf("unsupported database driver %q", config.Driver)
	}
}

// migrateLogger routes migrate's progress output through zap.
type migrateLogger struct {
	logger *zap.SugaredLogger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return false
}
