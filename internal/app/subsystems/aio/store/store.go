package store

import (
	"context"

	"github.com/resonatehq/resmon/internal/aio"
	"github.com/resonatehq/resmon/pkg/monitor"
)

// Store persists monitors. Every write that follows a claim is a
// compare and set on next_check_at, a write that loses the race
// affects no rows and reports false.
type Store interface {
	aio.Subsystem

	// Reset removes all persisted state, used by tests and dev mode
	Reset() error

	CreateMonitor(context.Context, *CreateMonitorCommand) (bool, error)
	ReadMonitor(ctx context.Context, key string) (*monitor.MonitorRecord, error)
	SearchMonitors(context.Context, *SearchMonitorsCommand) ([]*monitor.MonitorRecord, error)
	ReadDueMonitors(ctx context.Context, now int64, limit int) ([]*monitor.MonitorRecord, error)
	ClaimMonitor(context.Context, *ClaimMonitorCommand) (bool, error)
	CheckpointMonitor(context.Context, *CheckpointMonitorCommand) (bool, error)
	ScheduleMonitor(ctx context.Context, key string, now int64) (bool, error)
	DeleteMonitor(ctx context.Context, key string) (bool, error)
}

type CreateMonitorCommand struct {
	Key           string
	ResourceId    string
	ApiVersion    string
	CheckInterval int64
	NextCheckAt   int64
	CreatedOn     int64
}

type SearchMonitorsCommand struct {
	Cursor string
	Limit  int
}

type ClaimMonitorCommand struct {
	Key                 string
	ExpectedNextCheckAt int64
	ClaimedUntil        int64
	ProcessId           string
}

type CheckpointMonitorCommand struct {
	Key                   string
	ExpectedNextCheckAt   int64
	CurrentRepresentation *string
	LastCheckedAt         int64
	LastChangedAt         *int64
	NextCheckAt           int64
}
