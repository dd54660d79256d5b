package migrations

import "database/sql"

// MigrationStore defines the database specific parts of running
// migrations.
type MigrationStore interface {
	// GetMigrationFiles returns the embedded migration files for this store
	GetMigrationFiles() ([]string, error)

	// GetMigrationContent returns the content of a migration file
	GetMigrationContent(path string) (string, error)

	// GetInsertMigrationSQL returns the statement that records an applied
	// migration, using the placeholder syntax of the database
	GetInsertMigrationSQL() string

	GetDB() *sql.DB

	GetCurrentVersion() (int, error)

	// CheckMigrations returns a *MigrationError wrapping
	// ErrPendingMigrations if any migration has not been applied
	CheckMigrations() error

	String() string
}
