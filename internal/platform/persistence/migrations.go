package persistence

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// SchemaVersion is the migration state of the ledger schema
type SchemaVersion struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// ErrDirtySchema means a previous migration stopped halfway and needs manual repair
type ErrDirtySchema struct {
	Version uint
}

func (e ErrDirtySchema) Error() string {
	return fmt.Sprintf("ledger schema is dirty at version %d; fix it and force the version before migrating", e.Version)
}

func newMigrate(databaseURL, migrationsPath string) (*migrate.Migrate, error) {
	if migrationsPath == "" {
		return nil, errors.New("migrations path cannot be empty")
	}
	if databaseURL == "" {
		return nil, errors.New("database URL cannot be empty")
	}

	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

func closeMigrate(m *migrate.Migrate) error {
	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return fmt.Errorf("migration source error: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("migration database error: %w", dbErr)
	}
	return nil
}

func currentVersion(m *migrate.Migrate) (SchemaVersion, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return SchemaVersion{}, nil
	}
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	return SchemaVersion{Version: version, Dirty: dirty}, nil
}

// RunMigrations brings the ledger schema up to the newest migration under migrationsPath.
// A dirty schema is refused rather than migrated over.
func RunMigrations(logger *slog.Logger, databaseURL, migrationsPath string) (SchemaVersion, error) {
	m, err := newMigrate(databaseURL, migrationsPath)
	if err != nil {
		return SchemaVersion{}, err
	}

	before, err := currentVersion(m)
	if err != nil {
		_ = closeMigrate(m)
		return SchemaVersion{}, err
	}
	if before.Dirty {
		_ = closeMigrate(m)
		return before, ErrDirtySchema{Version: before.Version}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		_ = closeMigrate(m)
		return before, fmt.Errorf("failed to apply migrations: %w", err)
	}

	after, err := currentVersion(m)
	if err != nil {
		_ = closeMigrate(m)
		return before, err
	}

	if after.Version != before.Version {
		logger.Info("Migrated ledger schema", "from", before.Version, "to", after.Version, "path", migrationsPath)
	} else {
		logger.Debug("Ledger schema already current", "version", after.Version)
	}

	return after, closeMigrate(m)
}

// MigrationStatus reports the schema version without changing anything
func MigrationStatus(databaseURL, migrationsPath string) (SchemaVersion, error) {
	m, err := newMigrate(databaseURL, migrationsPath)
	if err != nil {
		return SchemaVersion{}, err
	}
	version, err := currentVersion(m)
	if closeErr := closeMigrate(m); err == nil {
		err = closeErr
	}
	return version, err
}
