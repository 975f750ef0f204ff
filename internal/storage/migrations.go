package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	m, src, err := s.newMigrator()
	if err != nil {
		return err
	}
	// m.Close would also close the shared *sql.DB, so only the source is released.
	defer func() { _ = src.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database schema version %d is dirty", version)
	}
	if version != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, version)
	}

	slog.Debug("database schema up to date", "version", version)
	return nil
}

// SchemaVersion reports the applied schema version. Zero means no migration ran yet.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (uint, bool, error) {
	if err := validateContext(ctx); err != nil {
		return 0, false, err
	}

	m, src, err := s.newMigrator()
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = src.Close() }()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, dirty, nil
}

func (s *SQLiteStorage) newMigrator() (*migrate.Migrate, source.Driver, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		_ = src.Close()
		return nil, nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		_ = src.Close()
		return nil, nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, src, nil
}
