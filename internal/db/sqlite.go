package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteConnection wraps a database/sql handle. It also serves any other
// database/sql driver handed to NewSQLConnection.
type SQLiteConnection struct {
	DB     *sql.DB
	logger *zap.SugaredLogger
}

// SQLiteDSN returns the data source name for a database file with foreign keys enforced.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
}

// OpenSQLite opens the database file at path.
func OpenSQLite(ctx context.Context, path string, logger *zap.SugaredLogger) (*SQLiteConnection, error) {
	if path == "" {
		return nil, errors.New("sqlite database path is required")
	}

	sqlDB, err := sql.Open("sqlite3", SQLiteDSN(path))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database %s", path)
	}
	// One writer at a time; SQLite serializes transactions anyway.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	conn := NewSQLConnection(sqlDB, logger)
	conn.logger.Infow("Connected to database",
		"driver", DriverSQLite,
		"path", path,
	)
	return conn, nil
}

// NewSQLConnection wraps an already opened database/sql handle.
func NewSQLConnection(sqlDB *sql.DB, logger *zap.SugaredLogger) *SQLiteConnection {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SQLiteConnection{DB: sqlDB, logger: logger}
}

// Close closes the underlying handle.
func (c *SQLiteConnection) Close() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.logger.Warnw("Failed to close database", "error", err)
		}
	}
}

// Exec runs a statement and reports the number of affected rows.
func (c *SQLiteConnection) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return sqlDBTX{c.DB}.Exec(ctx, query, args...)
}

// Query runs a query returning rows.
func (c *SQLiteConnection) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return sqlDBTX{c.DB}.Query(ctx, query, args...)
}

// QueryRow runs a query expected to return at most one row.
func (c *SQLiteConnection) QueryRow(ctx context.Context, query string, args ...any) Row {
	return sqlDBTX{c.DB}.QueryRow(ctx, query, args...)
}

// WithTx executes a function within a database transaction
func (c *SQLiteConnection) WithTx(ctx context.Context, fn func(DBTX) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			if err := tx.Rollback(); err != nil {
				c.logger.Errorw("Failed to rollback transaction", "error", err)
			}
			panic(p)
		}
	}()

	if err := fn(sqlDBTX{tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.WithSecondaryError(err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}
