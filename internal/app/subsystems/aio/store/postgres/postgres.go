package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store/migrations"
	"github.com/resonatehq/resmon/pkg/monitor"

	_ "github.com/lib/pq"
)

const (
	MONITOR_SELECT_STATEMENT = `
	SELECT
		id, resource_id, api_version, check_interval, current_representation, last_checked_at, last_changed_at, next_check_at, claimed_by, created_on
	FROM
		monitors
	WHERE
		id = $1`

	MONITOR_SEARCH_STATEMENT = `
	SELECT
		id, resource_id, api_version, check_interval, current_representation, last_checked_at, last_changed_at, next_check_at, claimed_by, created_on
	FROM
		monitors
	WHERE
		($1 = '' OR id > $2)
	ORDER BY
		id ASC
	LIMIT
		$3`

	MONITOR_SELECT_DUE_STATEMENT = `
	SELECT
		id, resource_id, api_version, check_interval, current_representation, last_checked_at, last_changed_at, next_check_at, claimed_by, created_on
	FROM
		monitors
	WHERE
		next_check_at <= $1
	ORDER BY
		next_check_at ASC, id ASC
	LIMIT
		$2`

	MONITOR_INSERT_STATEMENT = `
	INSERT INTO monitors
		(id, resource_id, api_version, check_interval, next_check_at, created_on)
	VALUES
		($1, $2, $3, $4, $5, $6)
	ON CONFLICT(id) DO NOTHING`

	MONITOR_CLAIM_STATEMENT = `
	UPDATE
		monitors
	SET
		next_check_at = $1, claimed_by = $2
	WHERE
		id = $3 AND next_check_at = $4`

	MONITOR_CHECKPOINT_STATEMENT = `
	UPDATE
		monitors
	SET
		current_representation = $1, last_checked_at = $2, last_changed_at = $3, next_check_at = $4, claimed_by = NULL
	WHERE
		id = $5 AND next_check_at = $6`

	MONITOR_SCHEDULE_STATEMENT = `
	UPDATE
		monitors
	SET
		next_check_at = $1
	WHERE
		id = $2 AND claimed_by IS NULL`

	MONITOR_DELETE_STATEMENT = `
	DELETE FROM monitors WHERE id = $1`

	DROP_TABLE_STATEMENT = `
	DROP TABLE IF EXISTS monitors;
	DROP TABLE IF EXISTS migrations;`
)

// Config
type Config struct {
	Host         string            `flag:"host" desc:"postgres host" default:"localhost"`
	Port         string            `flag:"port" desc:"postgres port" default:"5432"`
	Username     string            `flag:"username" desc:"postgres username"`
	Password     string            `flag:"password" desc:"postgres password"`
	Database     string            `flag:"database" desc:"postgres database" default:"resmon"`
	Query        map[string]string `flag:"query" desc:"postgres query options"`
	MaxOpenConns int               `flag:"max-open-conns" desc:"maximum number of open connections" default:"10"`
	TxTimeout    time.Duration     `flag:"tx-timeout" desc:"postgres transaction timeout" default:"10s"`
	Reset        bool              `flag:"reset" desc:"reset postgres db on shutdown" default:"false"`
}

// Subsystem
type PostgresStore struct {
	config *Config
	db     *sql.DB
}

func New(config *Config) (*PostgresStore, error) {
	rawQuery := make([]string, 0, len(config.Query))
	for k, v := range config.Query {
		rawQuery = append(rawQuery, fmt.Sprintf("%s=%s", url.QueryEscape(k), url.QueryEscape(v)))
	}
	slices.Sort(rawQuery)

	dbUrl := &url.URL{
		User:     url.UserPassword(config.Username, config.Password),
		Host:     fmt.Sprintf("%s:%s", config.Host, config.Port),
		Path:     config.Database,
		Scheme:   "postgres",
		RawQuery: strings.Join(rawQuery, "&"),
	}

	db, err := sql.Open("postgres", dbUrl.String())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxOpenConns)
	db.SetConnMaxIdleTime(0)

	return &PostgresStore{
		config: config,
		db:     db,
	}, nil
}

func (s *PostgresStore) String() string {
	return "store:postgres"
}

func (s *PostgresStore) Start(chan<- error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.TxTimeout)
	defer cancel()

	return migrations.Init(ctx, migrations.NewPostgresMigrationStore(s.db))
}

func (s *PostgresStore) Stop() error {
	if s.config.Reset {
		if err := s.Reset(); err != nil {
			return err
		}
	}

	return s.db.Close()
}

func (s *PostgresStore) Reset() error {
	if _, err := s.db.Exec(DROP_TABLE_STATEMENT); err != nil {
		return err
	}

	return nil
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) CreateMonitor(ctx context.Context, cmd *store.CreateMonitorCommand) (bool, error) {
	return s.exec(ctx, MONITOR_INSERT_STATEMENT, cmd.Key, cmd.ResourceId, cmd.ApiVersion, cmd.CheckInterval, cmd.NextCheckAt, cmd.CreatedOn)
}

func (s *PostgresStore) ReadMonitor(ctx context.Context, key string) (*monitor.MonitorRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.TxTimeout)
	defer cancel()

	record, err := scan(s.db.QueryRowContext(ctx, MONITOR_SELECT_STATEMENT, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return record, err
}

func (s *PostgresStore) SearchMonitors(ctx context.Context, cmd *store.SearchMonitorsCommand) ([]*monitor.MonitorRecord, error) {
	return s.query(ctx, MONITOR_SEARCH_STATEMENT, cmd.Cursor, cmd.Cursor, cmd.Limit)
}

func (s *PostgresStore) ReadDueMonitors(ctx context.Context, now int64, limit int) ([]*monitor.MonitorRecord, error) {
	return s.query(ctx, MONITOR_SELECT_DUE_STATEMENT, now, limit)
}

func (s *PostgresStore) ClaimMonitor(ctx context.Context, cmd *store.ClaimMonitorCommand) (bool, error) {
	return s.exec(ctx, MONITOR_CLAIM_STATEMENT, cmd.ClaimedUntil, cmd.ProcessId, cmd.Key, cmd.ExpectedNextCheckAt)
}

func (s *PostgresStore) CheckpointMonitor(ctx context.Context, cmd *store.CheckpointMonitorCommand) (bool, error) {
	return s.exec(ctx, MONITOR_CHECKPOINT_STATEMENT,
		cmd.CurrentRepresentation,
		cmd.LastCheckedAt,
		cmd.LastChangedAt,
		cmd.NextCheckAt,
		cmd.Key,
		cmd.ExpectedNextCheckAt,
	)
}

func (s *PostgresStore) ScheduleMonitor(ctx context.Context, key string, now int64) (bool, error) {
	return s.exec(ctx, MONITOR_SCHEDULE_STATEMENT, now, key)
}

func (s *PostgresStore) DeleteMonitor(ctx context.Context, key string) (bool, error) {
	return s.exec(ctx, MONITOR_DELETE_STATEMENT, key)
}

func (s *PostgresStore) exec(ctx context.Context, stmt string, args ...any) (bool, error) {
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

func (s *PostgresStore) query(ctx context.Context, stmt string, args ...any) ([]*monitor.MonitorRecord, error) {
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
