package migrations

import (
	"database/sql"

	"github.com/resonatehq/resmon/internal/migrationfiles"
)

type SqliteMigrationStore struct {
	db *sql.DB
}

func NewSqliteMigrationStore(db *sql.DB) *SqliteMigrationStore {
	return &SqliteMigrationStore{db: db}
}

func (s *SqliteMigrationStore) GetMigrationFiles() ([]string, error) {
	return migrationfiles.GetSQLiteMigrationFiles()
}

func (s *SqliteMigrationStore) GetMigrationContent(path string) (string, error) {
	return migrationfiles.GetMigrationContent(path)
}

func (s *SqliteMigrationStore) GetInsertMigrationSQL() string {
	return "INSERT INTO migrations (id) VALUES (?) ON CONFLICT(id) DO NOTHING"
}

func (s *SqliteMigrationStore) GetDB() *sql.DB {
	return s.db
}

func (s *SqliteMigrationStore) GetCurrentVersion() (int, error) {
	return currentVersion(s.db)
}

func (s *SqliteMigrationStore) CheckMigrations() error {
	return checkMigrations(s)
}

func (s *SqliteMigrationStore) String() string {
	return "sqlite"
}
