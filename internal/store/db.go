package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"attendance-kiosk/internal/store/migrations"
)

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// DB wraps sqlx.DB for either SQLite or Postgres.
type DB struct {
	*sqlx.DB
}

// OpenSQLite opens (creating if needed) a SQLite database file with WAL,
// a busy timeout and foreign keys enabled.
func OpenSQLite(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sqlx.Open(DriverSQLite, path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db}, nil
}

// OpenPostgres opens a Postgres connection through pgx.
func OpenPostgres(connString string) (*DB, error) {
	db, err := sqlx.Open(DriverPostgres, connString)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db}, nil
}

// Open opens the database for the given driver kind ("sqlite" or "postgres").
func Open(kind, sqlitePath, postgresURL string) (*DB, error) {
	switch kind {
	case "sqlite":
		return OpenSQLite(sqlitePath)
	case "postgres":
		return OpenPostgres(postgresURL)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", kind)
	}
}

// Migrate brings the schema to the latest version.
func (d *DB) Migrate() error {
	return migrations.MigrateUp(d.DB.DB, d.DriverName())
}

// SchemaVersion reports the applied migration version and whether the last
// migration left the schema dirty.
func (d *DB) SchemaVersion() (uint, bool, error) {
	return migrations.Version(d.DB.DB, d.DriverName())
}

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.DB == nil {
		return false
	}
	return d.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
