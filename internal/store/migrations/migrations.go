package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationFiles embed.FS

// MigrateUp runs all pending migrations for the given database/sql driver name.
func MigrateUp(db *sql.DB, driverName string) error {
	m, err := newMigrate(db, driverName)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: closing it would close db, which the caller owns.

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Version returns the current schema version and dirty flag.
func Version(db *sql.DB, driverName string) (uint, bool, error) {
	m, err := newMigrate(db, driverName)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get database version: %w", err)
	}
	return version, dirty, nil
}

func newMigrate(db *sql.DB, driverName string) (*migrate.Migrate, error) {
	var (
		dir      string
		dbName   string
		dbDriver database.Driver
		err      error
	)
	switch driverName {
	case "sqlite3":
		dir, dbName = "sqlite", "sqlite3"
		dbDriver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case "pgx":
		dir, dbName = "postgres", "pgx5"
		dbDriver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	default:
		return nil, fmt.Errorf("no migrations for driver %q", driverName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, dbName, dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
