package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store/migrations"
	"github.com/resonatehq/resmon/pkg/monitor"

	_ "github.com/mattn/go-sqlite3"
)

const (
	MONITOR_SELECT_STATEMENT = `
	SELECT
		id, resource_id, api_version, check_interval, current_representation, last_checked_at, last_changed_at, next_check_at, claimed_by, created_on
	FROM
		monitors
	WHERE
		id = ?`

	MONITOR_SEARCH_STATEMENT = `
	SELECT
		id, resource_id, api_version, check_interval, current_representation, last_checked_at, last_changed_at, next_check_at, claimed_by, created_on
	FROM
		monitors
	WHERE
		(? = '' OR id > ?)
	ORDER BY
		id ASC
	LIMIT
		?`

	MONITOR_SELECT_DUE_STATEMENT = `
	SELECT
		id, resource_id, api_version, check_interval, current_representation, last_checked_at, last_changed_at, next_check_at, claimed_by, created_on
	FROM
		monitors
	WHERE
		next_check_at <= ?
	ORDER BY
		next_check_at ASC, id ASC
	LIMIT
		?`

	MONITOR_INSERT_STATEMENT = `
	INSERT INTO monitors
		(id, resource_id, api_version, check_interval, next_check_at, created_on)
	VALUES
		(?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING`

	MONITOR_CLAIM_STATEMENT = `
	UPDATE
		monitors
	SET
		next_check_at = ?, claimed_by = ?
	WHERE
		id = ? AND next_check_at = ?`

	MONITOR_CHECKPOINT_STATEMENT = `
	UPDATE
		monitors
	SET
		current_representation = ?, last_checked_at = ?, last_changed_at = ?, next_check_at = ?, claimed_by = NULL
	WHERE
		id = ? AND next_check_at = ?`

	MONITOR_SCHEDULE_STATEMENT = `
	UPDATE
		monitors
	SET
		next_check_at = ?
	WHERE
		id = ? AND claimed_by IS NULL`

	MONITOR_DELETE_STATEMENT = `
	DELETE FROM monitors WHERE id = ?`
)

// Config
type Config struct {
	Path      string        `flag:"path" desc:"sqlite database path" default:"resmon.db"`
	TxTimeout time.Duration `flag:"tx-timeout" desc:"sqlite transaction timeout" default:"10s"`
	Reset     bool          `flag:"reset" desc:"reset sqlite db on shutdown" default:"false"`
}

// Subsystem
type SqliteStore struct {
	config *Config
	db     *sql.DB
}

func New(config *Config) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, err
	}

	// sqlite supports a single writer, an in-memory database is also
	// private to its connection
	db.SetMaxOpenConns(1)

	return &SqliteStore{
		config: config,
		db:     db,
	}, nil
}

func (s *SqliteStore) String() string {
	return "store:sqlite"
}

func (s *SqliteStore) Start(chan<- error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.TxTimeout)
	defer cancel()

	return migrations.Init(ctx, migrations.NewSqliteMigrationStore(s.db))
}

func (s *SqliteStore) Stop() error {
	if err := s.db.Close(); err != nil {
		return err
	}

	if s.config.Reset {
		return s.Reset()
	}

	return nil
}

func (s *SqliteStore) Reset() error {
	if _, err := os.Stat(s.config.Path); err != nil {
		return nil
	}

	return os.Remove(s.config.Path)
}

func (s *SqliteStore) DB() *sql.DB {
	return s.db
}

func (s *SqliteStore) CreateMonitor(ctx context.Context, cmd *store.CreateMonitorCommand) (bool, error) {
	return s.exec(ctx, MONITOR_INSERT_STATEMENT, cmd.Key, cmd.ResourceId, cmd.ApiVersion, cmd.CheckInterval, cmd.NextCheckAt, cmd.CreatedOn)
}

func (s *SqliteStore) ReadMonitor(ctx context.Context, key string) (*monitor.MonitorRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.TxTimeout)
	defer cancel()

	record, err := scan(s.db.QueryRowContext(ctx, MONITOR_SELECT_STATEMENT, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return record, err
}

func (s *SqliteStore) SearchMonitors(ctx context.Context, cmd *store.SearchMonitorsCommand) ([]*monitor.MonitorRecord, error) {
	return s.query(ctx, MONITOR_SEARCH_STATEMENT, cmd.Cursor, cmd.Cursor, cmd.Limit)
}

func (s *SqliteStore) ReadDueMonitors(ctx context.Context, now int64, limit int) ([]*monitor.MonitorRecord, error) {
	return s.query(ctx, MONITOR_SELECT_DUE_STATEMENT, now, limit)
}

func (s *SqliteStore) ClaimMonitor(ctx context.Context, cmd *store.ClaimMonitorCommand) (bool, error) {
	return s.exec(ctx, MONITOR_CLAIM_STATEMENT, cmd.ClaimedUntil, cmd.ProcessId, cmd.Key, cmd.ExpectedNextCheckAt)
}

func (s *SqliteStore) CheckpointMonitor(ctx context.Context, cmd *store.CheckpointMonitorCommand) (bool, error) {
	return s.exec(ctx, MONITOR_CHECKPOINT_STATEMENT,
		cmd.CurrentRepresentation,
		cmd.LastCheckedAt,
		cmd.LastChangedAt,
		cmd.NextCheckAt,
		cmd.Key,
		cmd.ExpectedNextCheckAt,
	)
}

func (s *SqliteStore) ScheduleMonitor(ctx context.Context, key string, now int64) (bool, error) {
	return s.exec(ctx, MONITOR_SCHEDULE_STATEMENT, now, key)
}

func (s *SqliteStore) DeleteMonitor(ctx context.Context, key string) (bool, error) {
	return s.exec(ctx, MONITOR_DELETE_STATEMENT, key)
}

func (s *SqliteStore) exec(ctx context.Context, stmt string, args ...any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.TxTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return false, err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

func (s *SqliteStore) query(ctx context.Context, stmt string, args ...any) ([]*monitor.MonitorRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.TxTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*monitor.MonitorRecord
	for rows.Next() {
		record, err := scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read monitors: %w", err)
	}

	return records, nil
}

func scan(row interface{ Scan(...any) error }) (*monitor.MonitorRecord, error) {
	record := &monitor.MonitorRecord{}
	if err := row.Scan(
		&record.Key,
		&record.ResourceId,
		&record.ApiVersion,
		&record.CheckInterval,
		&record.CurrentRepresentation,
		&record.LastCheckedAt,
		&record.LastChangedAt,
		&record.NextCheckAt,
		&record.ClaimedBy,
		&record.CreatedOn,
	); err != nil {
		return nil, err
	}

	return record, nil
}
