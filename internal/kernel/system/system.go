package system

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store"
	"github.com/resonatehq/resmon/internal/kernel/dispatch"
	"github.com/resonatehq/resmon/internal/metrics"
	"github.com/resonatehq/resmon/internal/util"
)

type Config struct {
	PollInterval time.Duration `flag:"poll-interval" desc:"time between reads of due monitors" default:"1s"`
	BatchSize    int           `flag:"batch-size" desc:"max due monitors claimed per tick" default:"100"`
	ClaimTimeout time.Duration `flag:"claim-timeout" desc:"time after which an unfinished check is redelivered" default:"5m"`
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Config(pi=%s, bs=%d, ct=%s)",
		c.PollInterval,
		c.BatchSize,
		c.ClaimTimeout,
	)
}

// Checker runs a single check of a monitor.
type Checker interface {
	CheckResource(ctx context.Context, key string) error
}

// System is the durable timer of the monitors. Every tick it reads the
// monitors that are due, claims each one by pushing its due time out by
// the claim timeout, and dispatches a check. A check that never
// checkpoints leaves the claim to expire and is picked up again.
type System struct {
	config       *Config
	store        store.Store
	dispatcher   *dispatch.Dispatcher
	checker      Checker
	metrics      *metrics.Metrics
	pid          string
	inflight     *inflight
	shutdown     chan any
	shortCircuit chan any
	once         sync.Once
}

func New(config *Config, store store.Store, dispatcher *dispatch.Dispatcher, checker Checker, metrics *metrics.Metrics) *System {
	return &System{
		config:       config,
		store:        store,
		dispatcher:   dispatcher,
		checker:      checker,
		metrics:      metrics,
		pid:          uuid.New().String(),
		inflight:     &inflight{keys: map[string]bool{}},
		shutdown:     make(chan any),
		shortCircuit: make(chan any),
	}
}

func (s *System) String() string {
	return fmt.Sprintf(
		"System(pid=%s, store=%s, dispatcher=%s, config=%s)",
		s.pid,
		s.store,
		s.dispatcher,
		s.config,
	)
}

func (s *System) ProcessId() string {
	return s.pid
}

func (s *System) Loop() error {
	defer close(s.shutdown)

	for {
		// tick first
		s.Tick(time.Now().UnixMilli())

		// wait for the poll interval or short circuit, whichever
		// occurs first
		select {
		case <-s.shortCircuit:
			return nil
		case <-time.After(s.config.PollInterval):
		}
	}
}

func (s *System) Tick(t int64) {
	util.Assert(s.config.BatchSize > 0, "batch size must be greater than zero")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.PollInterval+s.config.ClaimTimeout)
	defer cancel()

	records, err := s.store.ReadDueMonitors(ctx, t, s.config.BatchSize)
	if err != nil {
		slog.Error("failed to read due monitors", "err", err)
		return
	}
	util.Assert(len(records) <= s.config.BatchSize, "records must be no greater than the batch size")

	s.metrics.SchedulerDue.Set(float64(len(records)))

	for _, record := range records {
		key := record.Key

		if s.inflight.get(key) {
			continue
		}

		ok, err := s.store.ClaimMonitor(ctx, &store.ClaimMonitorCommand{
			Key:                 key,
			ExpectedNextCheckAt: record.NextCheckAt,
			ClaimedUntil:        util.ClampAddInt64(t, s.config.ClaimTimeout.Milliseconds()),
			ProcessId:           s.pid,
		})
		if err != nil {
			slog.Error("failed to claim monitor", "key", key, "err", err)
			s.metrics.SchedulerClaimed.WithLabelValues("error").Inc()
			continue
		}
		if !ok {
			// claimed by another process, rescheduled, or deleted
			s.metrics.SchedulerClaimed.WithLabelValues("lost").Inc()
			continue
		}

		s.metrics.SchedulerClaimed.WithLabelValues("claimed").Inc()
		s.inflight.add(key)

		if err := s.dispatcher.Enqueue(&dispatch.Job{
			Kind: "check",
			Key:  key,
			Run: func(ctx context.Context) error {
				return s.checker.CheckResource(ctx, key)
			},
			Done: func(error) {
				s.inflight.remove(key)
			},
		}); err != nil {
			s.inflight.remove(key)
			slog.Warn("failed to dispatch check, will retry after claim timeout", "key", key, "err", err)
		}
	}
}

func (s *System) Shutdown() <-chan any {
	s.once.Do(func() {
		close(s.shortCircuit)
	})

	return s.shutdown
}

type inflight struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (i *inflight) get(key string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.keys[key]
}

func (i *inflight) add(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.keys[key] = true
}

func (i *inflight) remove(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.keys, key)
}

func (i *inflight) len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.keys)
}
