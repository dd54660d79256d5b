package migrations

import (
	"database/sql"

	"github.com/resonatehq/resmon/internal/migrationfiles"
)

type PostgresMigrationStore struct {
	db *sql.DB
}

func NewPostgresMigrationStore(db *sql.DB) *PostgresMigrationStore {
	return &PostgresMigrationStore{db: db}
}

func (s *PostgresMigrationStore) GetMigrationFiles() ([]string, error) {
	return migrationfiles.GetPostgresMigrationFiles()
}

func (s *PostgresMigrationStore) GetMigrationContent(path string) (string, error) {
	return migrationfiles.GetMigrationContent(path)
}

func (s *PostgresMigrationStore) GetInsertMigrationSQL() string {
	return "INSERT INTO migrations (id) VALUES ($1) ON CONFLICT(id) DO NOTHING"
}

func (s *PostgresMigrationStore) GetDB() *sql.DB {
	return s.db
}

func (s *PostgresMigrationStore) GetCurrentVersion() (int, error) {
	return currentVersion(s.db)
}

func (s *PostgresMigrationStore) CheckMigrations() error {
	return checkMigrations(s)
}

func (s *PostgresMigrationStore) String() string {
	return "postgres"
}
