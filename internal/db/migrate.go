package db

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrateLogger adapts the standard logger to migrate's Logger interface.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

func (db *DB) newMigrate(migrationsDir string) (*migrate.Migrate, error) {
	absPath, err := filepath.Abs(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve migrations dir: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", absPath),
		"sqlite", driver,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// MigrateUp applies all pending migrations from migrationsDir.
func (db *DB) MigrateUp(migrationsDir string) error {
	m, err := db.newMigrate(migrationsDir)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back a single migration.
func (db *DB) MigrateDown(migrationsDir string) error {
	m, err := db.newMigrate(migrationsDir)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateTo migrates up or down to the given schema version.
func (db *DB) MigrateTo(migrationsDir string, version uint) error {
	m, err := db.newMigrate(migrationsDir)
	if err != nil {
		return err
	}
	if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return nil
}

// MigrateVersion reports the current schema version and dirty flag.
func (db *DB) MigrateVersion(migrationsDir string) (uint, bool, error) {
	m, err := db.newMigrate(migrationsDir)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, dirty, nil
}

// MigrateForce marks the schema at the given version without running
// migrations. Used to recover from a dirty state.
func (db *DB) MigrateForce(migrationsDir string, version int) error {
	m, err := db.newMigrate(migrationsDir)
	if err != nil {
		return err
	}
	if err := m.Force(version); err != nil {
		return fmt.Errorf("migration force failed: %w", err)
	}
	return nil
}
