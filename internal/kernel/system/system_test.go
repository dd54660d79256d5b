package system

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store/sqlite"
	"github.com/resonatehq/resmon/internal/kernel/dispatch"
	"github.com/resonatehq/resmon/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checker struct {
	mu      sync.Mutex
	checked []string
	release chan struct{}
	err     error
}

func (c *checker) CheckResource(ctx context.Context, key string) error {
	if c.release != nil {
		<-c.release
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.checked = append(c.checked, key)
	return c.err
}

func (c *checker) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.checked...)
}

func setup(t *testing.T, c *checker) (*System, *sqlite.SqliteStore, *dispatch.Dispatcher) {
	m := metrics.New(prometheus.NewRegistry())

	s, err := sqlite.New(&sqlite.Config{Path: ":memory:", TxTimeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, s.Start(nil))
	t.Cleanup(func() { _ = s.Stop() })

	d := dispatch.New(&dispatch.Config{Partitions: 4, Size: 10}, m)
	require.NoError(t, d.Start(nil))

	config := &Config{PollInterval: 10 * time.Millisecond, BatchSize: 10, ClaimTimeout: time.Minute}
	return New(config, s, d, c, m), s, d
}

func create(t *testing.T, s store.Store, key string, next int64) {
	ok, err := s.CreateMonitor(context.Background(), &store.CreateMonitorCommand{
		Key:           key,
		ResourceId:    "/" + key,
		ApiVersion:    "v1",
		CheckInterval: 1000,
		NextCheckAt:   next,
		CreatedOn:     0,
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTickClaimsDueMonitors(t *testing.T) {
	c := &checker{}
	sys, s, d := setup(t, c)

	create(t, s, "due", 100)
	create(t, s, "later", 5000)

	sys.Tick(1000)
	require.NoError(t, d.Stop())

	assert.Equal(t, []string{"due"}, c.keys())

	record, err := s.ReadMonitor(context.Background(), "due")
	require.NoError(t, err)
	assert.Equal(t, int64(1000)+time.Minute.Milliseconds(), record.NextCheckAt)
	require.NotNil(t, record.ClaimedBy)
	assert.Equal(t, sys.ProcessId(), *record.ClaimedBy)

	record, err = s.ReadMonitor(context.Background(), "later")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), record.NextCheckAt)
	assert.Nil(t, record.ClaimedBy)
}

func TestTickSkipsInflight(t *testing.T) {
	c := &checker{release: make(chan struct{})}
	sys, s, d := setup(t, c)

	create(t, s, "foo", 0)

	sys.Tick(1000)
	assert.Equal(t, 1, sys.inflight.len())

	// the claim has expired but the check is still running
	sys.Tick(1000 + time.Minute.Milliseconds() + 1)

	close(c.release)
	require.NoError(t, d.Stop())

	assert.Equal(t, []string{"foo"}, c.keys())
	assert.Equal(t, 0, sys.inflight.len())
}

func TestTickRedeliversAfterClaimTimeout(t *testing.T) {
	c := &checker{err: errors.New("faulted")}
	sys, s, d := setup(t, c)

	create(t, s, "foo", 0)

	sys.Tick(1000)
	require.Eventually(t, func() bool { return sys.inflight.len() == 0 }, time.Second, time.Millisecond)

	// still claimed
	sys.Tick(2000)
	require.Eventually(t, func() bool { return sys.inflight.len() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"foo"}, c.keys())

	sys.Tick(1000 + time.Minute.Milliseconds())
	require.NoError(t, d.Stop())
	assert.Equal(t, []string{"foo", "foo"}, c.keys())
}

func TestLoopShutdown(t *testing.T) {
	c := &checker{}
	sys, s, d := setup(t, c)

	create(t, s, "foo", 0)

	go func() {
		_ = sys.Loop()
	}()

	require.Eventually(t, func() bool { return len(c.keys()) == 1 }, time.Second, time.Millisecond)

	select {
	case <-sys.Shutdown():
	case <-time.After(time.Second):
		t.Fatal("system did not shut down")
	}

	// idempotent
	<-sys.Shutdown()
	require.NoError(t, d.Stop())
}
