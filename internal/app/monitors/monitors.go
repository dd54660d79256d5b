package monitors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resonatehq/resmon/internal/app/fetcher"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store"
	"github.com/resonatehq/resmon/internal/metrics"
	"github.com/resonatehq/resmon/internal/util"
	"github.com/resonatehq/resmon/pkg/diff"
	"github.com/resonatehq/resmon/pkg/message"
	"github.com/resonatehq/resmon/pkg/monitor"
)

//go:generate mockgen -source=monitors.go -destination=mock_sender.go -package=monitors

// Sender publishes an event and returns once it has been accepted
// downstream.
type Sender interface {
	Send(ctx context.Context, t message.Type, msg *message.Message) error
}

// Outcome of a single check, used as the metrics label.
const (
	outcomeBaseline   = "baseline"
	outcomeChanged    = "changed"
	outcomeUnchanged  = "unchanged"
	outcomeFailed     = "failed"
	outcomeFaulted    = "faulted"
	outcomeSuperseded = "superseded"
)

// Actor owns the state machine of every monitor. Callers must ensure
// that at most one operation per key runs at a time, see dispatch.
type Actor struct {
	store   store.Store
	fetcher fetcher.Fetcher
	differ  diff.Engine
	sender  Sender
	metrics *metrics.Metrics
	now     func() int64
}

func New(store store.Store, fetcher fetcher.Fetcher, differ diff.Engine, sender Sender, metrics *metrics.Metrics) *Actor {
	return &Actor{
		store:   store,
		fetcher: fetcher,
		differ:  differ,
		sender:  sender,
		metrics: metrics,
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// Initialize stores the immutable config of a monitor and schedules its
// first check immediately. Initializing a key that already exists is a
// no-op and returns false.
func (a *Actor) Initialize(ctx context.Context, key string, config monitor.Config) (bool, error) {
	if err := config.Validate(); err != nil {
		return false, err
	}

	now := a.now()

	created, err := a.store.CreateMonitor(ctx, &store.CreateMonitorCommand{
		Key:           key,
		ResourceId:    config.ResourceId,
		ApiVersion:    config.ApiVersion,
		CheckInterval: config.CheckInterval.Milliseconds(),
		NextCheckAt:   now,
		CreatedOn:     now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create monitor %s: %w", key, err)
	}

	if created {
		slog.Info("monitor initialized", "key", key, "config", config)
	} else {
		slog.Debug("monitor already initialized", "key", key)
	}

	return created, nil
}

// CheckResource fetches the current representation of the monitored
// resource, publishes a change event when it differs from the last
// recorded representation and an error event when it cannot be fetched,
// and schedules the next check one interval after this one was
// requested.
//
// A failure to diff, to publish, or to persist is returned and nothing
// is checkpointed, the check is retried once the claim on the monitor
// expires.
func (a *Actor) CheckResource(ctx context.Context, key string) error {
	timeRequested := a.now()

	record, err := a.store.ReadMonitor(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read monitor %s: %w", key, err)
	}
	if record == nil {
		slog.Debug("monitor not initialized, ignoring check", "key", key)
		return nil
	}

	m := record.Monitor()
	util.Assert(m.CheckInterval > 0, "check interval must be greater than zero")

	outcome, err := a.check(ctx, m, record.NextCheckAt, timeRequested)
	if err != nil {
		outcome = outcomeFaulted
		slog.Error("monitor check faulted", "key", key, "err", err)
	}

	a.metrics.ChecksTotal.WithLabelValues(outcome).Inc()
	a.metrics.CheckDuration.WithLabelValues(outcome).Observe(time.Duration((a.now() - timeRequested) * int64(time.Millisecond)).Seconds())

	return err
}

func (a *Actor) check(ctx context.Context, m *monitor.Monitor, expectedNextCheckAt int64, timeRequested int64) (string, error) {
	cmd := &store.CheckpointMonitorCommand{
		Key:                   m.Key,
		ExpectedNextCheckAt:   expectedNextCheckAt,
		CurrentRepresentation: m.CurrentRepresentation,
		LastCheckedAt:         timeRequested,
		LastChangedAt:         m.LastChangedAt,
		NextCheckAt:           util.ClampAddInt64(timeRequested, m.CheckInterval.Milliseconds()),
	}

	var outcome string

	representation, err := a.fetcher.Get(ctx, m.ResourceId, m.ApiVersion)
	if err != nil {
		outcome = outcomeFailed
		slog.Warn("failed to fetch resource", "key", m.Key, "resourceId", m.ResourceId, "err", err)

		if err := a.sender.Send(ctx, message.Error, &message.Message{ResourceId: m.ResourceId}); err != nil {
			return "", err
		}
	} else {
		changed, patch, err := a.differ.Compare(m.CurrentRepresentation, &representation)
		if err != nil {
			return "", err
		}

		switch {
		case !changed:
			outcome = outcomeUnchanged
		case m.CurrentRepresentation == nil:
			outcome = outcomeBaseline
			slog.Info("baseline recorded", "key", m.Key)
		default:
			outcome = outcomeChanged
			slog.Info("change detected", "key", m.Key, "resourceId", m.ResourceId)
			slog.Debug("change detected", "key", m.Key, "diff", util.SafeDeref(patch))

			if err := a.sender.Send(ctx, message.Change, &message.Message{ResourceId: m.ResourceId}); err != nil {
				return "", err
			}
		}

		if changed {
			cmd.CurrentRepresentation = &representation
			cmd.LastChangedAt = &timeRequested
		}
	}

	ok, err := a.store.CheckpointMonitor(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("failed to checkpoint monitor %s: %w", m.Key, err)
	}
	if !ok {
		// deleted or claimed by another process since it was read
		slog.Warn("monitor checkpoint superseded", "key", m.Key, "expectedNextCheckAt", expectedNextCheckAt)
		return outcomeSuperseded, nil
	}

	slog.Debug("monitor checked", "key", m.Key, "outcome", outcome, "nextCheckAt", cmd.NextCheckAt)
	return outcome, nil
}
