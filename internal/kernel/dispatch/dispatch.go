package dispatch

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"

	"github.com/resonatehq/resmon/internal/metrics"
)

var (
	ErrQueueFull = errors.New("dispatch queue full")
	ErrStopped   = errors.New("dispatcher stopped")
)

type Config struct {
	Partitions int `flag:"partitions" desc:"number of partitions, each partition processes one monitor at a time" default:"16"`
	Size       int `flag:"size" desc:"buffered channel size per partition" default:"100"`
}

func (c *Config) String() string {
	return fmt.Sprintf("Config(partitions=%d, size=%d)", c.Partitions, c.Size)
}

// Job is a unit of work for a single monitor. Jobs that share a key are
// routed to the same partition and therefore never run concurrently.
type Job struct {
	Kind string
	Key  string
	Run  func(context.Context) error
	Done func(error)
}

type Dispatcher struct {
	config     *Config
	metrics    *metrics.Metrics
	partitions []chan *Job
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	stopped    bool
}

func New(config *Config, metrics *metrics.Metrics) *Dispatcher {
	partitions := make([]chan *Job, config.Partitions)
	for i := range partitions {
		partitions[i] = make(chan *Job, config.Size)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		config:     config,
		metrics:    metrics,
		partitions: partitions,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (d *Dispatcher) String() string {
	return fmt.Sprintf("dispatch:%d", len(d.partitions))
}

func (d *Dispatcher) Start(chan<- error) error {
	for i, mailbox := range d.partitions {
		d.wg.Add(1)
		go d.worker(i, mailbox)
	}
	return nil
}

// Stop rejects new jobs, lets every partition drain its mailbox, and
// waits for the workers to exit.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	for _, mailbox := range d.partitions {
		close(mailbox)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	return nil
}

// Partition returns the partition a key is routed to.
func (d *Dispatcher) Partition(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.partitions)))
}

// Enqueue never blocks, a full partition rejects the job.
func (d *Dispatcher) Enqueue(job *Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrStopped
	}

	select {
	case d.partitions[d.Partition(job.Key)] <- job:
		return nil
	default:
		d.metrics.DispatchTotal.WithLabelValues(job.Kind, "rejected").Inc()
		return ErrQueueFull
	}
}

// Submit enqueues a job and waits for it to complete. Cancelling ctx
// stops the wait, the job itself still runs to completion.
func (d *Dispatcher) Submit(ctx context.Context, kind string, key string, run func(context.Context) error) error {
	done := make(chan error, 1)

	if err := d.Enqueue(&Job{
		Kind: kind,
		Key:  key,
		Run:  run,
		Done: func(err error) { done <- err },
	}); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(i int, mailbox <-chan *Job) {
	defer d.wg.Done()

	inflight := d.metrics.DispatchInFlight.WithLabelValues(strconv.Itoa(i))

	for job := range mailbox {
		inflight.Inc()
		err := d.run(job)
		inflight.Dec()

		status := "success"
		if err != nil {
			status = "failure"
		}
		d.metrics.DispatchTotal.WithLabelValues(job.Kind, status).Inc()

		if job.Done != nil {
			job.Done(err)
		}
	}
}

func (d *Dispatcher) run(job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch job panicked", "kind", job.Kind, "key", job.Key, "panic", r)
			err = fmt.Errorf("job %s for %s panicked: %v", job.Kind, job.Key, r)
		}
	}()

	return job.Run(d.ctx)
}
