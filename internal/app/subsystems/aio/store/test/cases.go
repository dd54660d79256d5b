package test

import (
	"context"
	"testing"

	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store"
	"github.com/resonatehq/resmon/internal/util"
	"github.com/resonatehq/resmon/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCase struct {
	name string
	run  func(*testing.T, context.Context, store.Store)
}

func (c *testCase) Run(t *testing.T, s store.Store) {
	t.Run(c.name, func(t *testing.T) {
		c.run(t, context.Background(), s)
	})
}

func create(t *testing.T, ctx context.Context, s store.Store, key string, next int64) {
	ok, err := s.CreateMonitor(ctx, &store.CreateMonitorCommand{
		Key:           key,
		ResourceId:    "/subscriptions/s/" + key,
		ApiVersion:    "2024-01-01",
		CheckInterval: 1000,
		NextCheckAt:   next,
		CreatedOn:     next,
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func keys(records []*monitor.MonitorRecord) []string {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	return keys
}

var TestCases = []*testCase{
	{
		name: "CreateMonitorIsInsertIfAbsent",
		run: func(t *testing.T, ctx context.Context, s store.Store) {
			create(t, ctx, s, "foo", 1)

			ok, err := s.CreateMonitor(ctx, &store.CreateMonitorCommand{
				Key:           "foo",
				ResourceId:    "/other",
				ApiVersion:    "2020-01-01",
				CheckInterval: 5000,
				NextCheckAt:   2,
				CreatedOn:     2,
			})
			require.NoError(t, err)
			assert.False(t, ok)

			record, err := s.ReadMonitor(ctx, "foo")
			require.NoError(t, err)
			assert.Equal(t, &monitor.MonitorRecord{
				Key:           "foo",
				ResourceId:    "/subscriptions/s/foo",
				ApiVersion:    "2024-01-01",
				CheckInterval: 1000,
				NextCheckAt:   1,
				CreatedOn:     1,
			}, record)
		},
	},
	{
		name: "ReadMonitorNotFound",
		run: func(t *testing.T, ctx context.Context, s store.Store) {
			record, err := s.ReadMonitor(ctx, "missing")
			require.NoError(t, err)
			assert.Nil(t, record)
		},
	},
	{
		name: "SearchMonitorsPaginates",
		run: func(t *testing.T, ctx context.Context, s store.Store) {
			create(t, ctx, s, "c", 0)
			create(t, ctx, s, "a", 0)
			create(t, ctx, s, "b", 0)

			records, err := s.SearchMonitors(ctx, &store.SearchMonitorsCommand{Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, keys(records))

			records, err = s.SearchMonitors(ctx, &store.SearchMonitorsCommand{Cursor: "b", Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, []string{"c"}, keys(records))

			records, err = s.SearchMonitors(ctx, &store.SearchMonitorsCommand{Cursor: "c", Limit: 2})
			require.NoError(t, err)
			assert.Empty(t, records)
		},
	},
	{
		name: "ReadDueMonitorsOrdersByNextCheckAt",
		run: func(t *testing.T, ctx context.Context, s store.Store) {
			create(t, ctx, s, "late", 10)
			create(t, ctx, s, "mid", 5)
			create(t, ctx, s, "early", 0)

			records, err := s.ReadDueMonitors(ctx, 5, 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"early", "mid"}, keys(records))

			records, err = s.ReadDueMonitors(ctx, 100, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"early"}, keys(records))
		},
	},
	{
		name: "ClaimMonitorIsCompareAndSet",
		run: func(t *testing.T, ctx context.Context, s store.Store) {
			create(t, ctx, s, "foo", 1)

			ok, err := s.ClaimMonitor(ctx, &store.ClaimMonitorCommand{Key: "foo", ExpectedNextCheckAt: 1, ClaimedUntil: 100, ProcessId: "p1"})
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.ClaimMonitor(ctx, &store.ClaimMonitorCommand{Key: "foo", ExpectedNextCheckAt: 1, ClaimedUntil: 200, ProcessId: "p2"})
			require.NoError(t, err)
			assert.False(t, ok)

			record, err := s.ReadMonitor(ctx, "foo")
			require.NoError(t, err)
			assert.Equal(t, int64(100), record.NextCheckAt)
			assert.Equal(t, util.ToPointer("p1"), record.ClaimedBy)

			records, err := s.ReadDueMonitors(ctx, 50, 10)
			require.NoError(t, err)
			assert.Empty(t, records)
		},
	},
	{
		name: "CheckpointMonitorIsCompareAndSet",
		run: func(t *testing.T, ctx context.Context, s store.Store) {
			create(t, ctx, s, "foo", 1)

			ok, err := s.ClaimMonitor(ctx, &store.ClaimMonitorCommand{Key: "foo", ExpectedNextCheckAt: 1, ClaimedUntil: 100, ProcessId: "p1"})
			require.NoError(t, err)
			require.True(t, ok)

			// stale
			ok, err = s.CheckpointMonitor(ctx, &store.CheckpointMonitorCommand{Key: "foo", ExpectedNextCheckAt: 1, LastCheckedAt: 1, NextCheckAt: 1001})
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = s.CheckpointMonitor(ctx, &store.CheckpointMonitorCommand{
				Key:                   "foo",
				ExpectedNextCheckAt:   100,
				CurrentRepresentation: util.ToPointer(`{"a":1}`),
				LastCheckedAt:         2,
				LastChangedAt:         util.ToPointer(int64(2)),
				NextCheckAt:           1002,
			})
			require.NoError(t, err)
			assert.True(t, ok)

			record, err := s.ReadMonitor(ctx, "foo")
			require.NoError(t, err)
			assert.Equal(t, &monitor.MonitorRecord{
				Key:                   "foo",
				ResourceId:            "/subscriptions/s/foo",
				ApiVersion:            "2024-01-01",
				CheckInterval:         1000,
				CurrentRepresentation: util.ToPointer(`{"a":1}`),
				LastCheckedAt:         util.ToPointer(int64(2)),
				LastChangedAt:         util.ToPointer(int64(2)),
				NextCheckAt:           1002,
				CreatedOn:             1,
			}, record)
		},
	},
	{
		name: "ScheduleMonitorSkipsClaimed",
		run: func(t *testing.T, ctx context.Context, s store.Store) {
			create(t, ctx, s, "foo", 1000)
			create(t, ctx, s, "bar", 1000)

			ok, err := s.ClaimMonitor(ctx, &store.ClaimMonitorCommand{Key: "bar", ExpectedNextCheckAt: 1000, ClaimedUntil: 2000, ProcessId: "p1"})
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = s.ScheduleMonitor(ctx, "foo", 5)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.ScheduleMonitor(ctx, "bar", 5)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = s.ScheduleMonitor(ctx, "missing", 5)
			require.NoError(t, err)
			assert.False(t, ok)

			records, err := s.ReadDueMonitors(ctx, 5, 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"foo"}, keys(records))
		},
	},
	{
		name: "DeleteMonitor",
		run: func(t *testing.T, ctx context.Context, s store.Store) {
			create(t, ctx, s, "foo", 1)

			ok, err := s.DeleteMonitor(ctx, "foo")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.DeleteMonitor(ctx, "foo")
			require.NoError(t, err)
			assert.False(t, ok)

			record, err := s.ReadMonitor(ctx, "foo")
			require.NoError(t, err)
			assert.Nil(t, record)
		},
	},
}
