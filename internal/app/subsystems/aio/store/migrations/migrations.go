package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var ErrPendingMigrations = errors.New("pending migrations exist")

var filenamePattern = regexp.MustCompile(`^(\d{3})_(.+)\.sql$`)

type Migration struct {
	Version int
	Name    string
	SQL     string
}

func (m Migration) String() string {
	return fmt.Sprintf("%03d_%s.sql", m.Version, m.Name)
}

func ParseMigrationFilename(filename string) (version int, name string, err error) {
	matches := filenamePattern.FindStringSubmatch(filename)
	if len(matches) != 3 {
		return 0, "", fmt.Errorf("invalid migration filename format: %s", filename)
	}

	version, err = strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", fmt.Errorf("invalid version number in filename: %s", filename)
	}

	return version, matches[2], nil
}

func LoadMigrations(store MigrationStore) ([]Migration, error) {
	files, err := store.GetMigrationFiles()
	if err != nil {
		return nil, err
	}

	migrations := make([]Migration, 0, len(files))
	for _, file := range files {
		version, name, err := ParseMigrationFilename(filepath.Base(file))
		if err != nil {
			return nil, err
		}

		content, err := store.GetMigrationContent(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    name,
			SQL:     content,
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// GetPendingMigrations returns migrations that need to be applied
func GetPendingMigrations(currentVersion int, store MigrationStore) ([]Migration, error) {
	all, err := LoadMigrations(store)
	if err != nil {
		return nil, err
	}

	pending := make([]Migration, 0)
	for _, m := range all {
		if m.Version > currentVersion {
			pending = append(pending, m)
		}
	}

	return pending, nil
}

// ValidateMigrationSequence ensures migrations are sequential with no gaps
func ValidateMigrationSequence(migrations []Migration, startVersion int) error {
	expectedVersion := startVersion + 1
	for _, m := range migrations {
		if m.Version != expectedVersion {
			return fmt.Errorf("migration sequence gap: expected version %d, found %d", expectedVersion, m.Version)
		}
		expectedVersion++
	}
	return nil
}

// ApplyMigrations executes migrations in a single transaction.
func ApplyMigrations(ctx context.Context, migrations []Migration, store MigrationStore) error {
	if len(migrations) == 0 {
		return nil
	}

	tx, err := store.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, migration := range migrations {
		if _, err := tx.Exec(migration.SQL); err != nil {
			return &MigrationError{
				Version: migration.Version,
				Name:    migration.Name,
				Err:     err,
			}
		}

		if _, err := tx.Exec(store.GetInsertMigrationSQL(), migration.Version); err != nil {
			return fmt.Errorf("failed to update migrations table: %w", err)
		}

		slog.Info("applied migration", "store", store, "migration", migration)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Init brings a fresh database to the latest version. A database that
// already has a schema is never migrated implicitly, pending migrations
// must be applied with the migrate command.
func Init(ctx context.Context, store MigrationStore) error {
	version, err := store.GetCurrentVersion()
	if err != nil {
		return err
	}

	if version > 0 {
		return store.CheckMigrations()
	}

	pending, err := GetPendingMigrations(version, store)
	if err != nil {
		return err
	}

	if err := ValidateMigrationSequence(pending, version); err != nil {
		return err
	}

	return ApplyMigrations(ctx, pending, store)
}

func checkMigrations(store MigrationStore) error {
	version, err := store.GetCurrentVersion()
	if err != nil {
		return err
	}

	pending, err := GetPendingMigrations(version, store)
	if err != nil {
		return err
	}

	if len(pending) > 0 {
		return &MigrationError{
			Version: pending[0].Version,
			Name:    pending[0].Name,
			Err:     ErrPendingMigrations,
		}
	}

	return nil
}

// currentVersion returns the highest applied migration, or zero when
// the migrations table does not exist yet.
func currentVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(id), 0) FROM migrations").Scan(&version); err != nil {
		if isTableNotFoundError(err) {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

// db.QueryRow does not return a specific error type when the table
// does not exist so we need to check the error message.
func isTableNotFoundError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "does not exist")
}

type MigrationError struct {
	Version int
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %03d_%s failed: %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}
