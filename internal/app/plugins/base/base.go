package base

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/resonatehq/resmon/internal/aio"
	"github.com/resonatehq/resmon/internal/metrics"
)

type Config struct {
	Size    int `flag:"size" desc:"submission buffered channel size" default:"100"`
	Workers int `flag:"workers" desc:"number of workers" default:"2"`
}

// Processor delivers a single message body to a plugin specific target.
type Processor interface {
	Process(target string, body []byte) (bool, error)
}

type Worker struct {
	id        int
	sq        <-chan *aio.Message
	processor Processor
	metrics   *metrics.Metrics
	name      string
}

type Plugin struct {
	name    string
	sq      chan *aio.Message
	workers []*Worker
	cleanup func() error
}

func NewPlugin(name string, config *Config, metrics *metrics.Metrics, processor Processor, cleanup func() error) *Plugin {
	sq := make(chan *aio.Message, config.Size)
	workers := make([]*Worker, config.Workers)

	for i := 0; i < config.Workers; i++ {
		workers[i] = &Worker{
			id:        i,
			sq:        sq,
			processor: processor,
			metrics:   metrics,
			name:      name,
		}
	}

	return &Plugin{
		name:    name,
		sq:      sq,
		workers: workers,
		cleanup: cleanup,
	}
}

func (p *Plugin) String() string {
	return fmt.Sprintf("sender:%s", p.name)
}

func (p *Plugin) Type() string {
	return p.name
}

func (p *Plugin) Start(chan<- error) error {
	for _, worker := range p.workers {
		go worker.Start()
	}
	return nil
}

func (p *Plugin) Stop() error {
	if p.sq != nil {
		close(p.sq)
	}
	if p.cleanup != nil {
		return p.cleanup()
	}
	return nil
}

// Enqueue never blocks, a full submission queue rejects the message.
func (p *Plugin) Enqueue(msg *aio.Message) bool {
	if p.sq == nil || msg == nil {
		return false
	}

	select {
	case p.sq <- msg:
		return true
	default:
		return false
	}
}

func (w *Worker) String() string {
	return fmt.Sprintf("sender:%s", w.name)
}

func (w *Worker) Start() {
	counter := w.metrics.SenderInFlight.WithLabelValues(w.name, strconv.Itoa(w.id))
	w.metrics.SenderWorker.WithLabelValues(w.name).Inc()
	defer w.metrics.SenderWorker.WithLabelValues(w.name).Dec()

	for {
		msg, ok := <-w.sq
		if !ok {
			return
		}

		counter.Inc()
		success, err := w.processor.Process(msg.Target, msg.Body)
		if err != nil {
			slog.Warn("failed to process message", "plugin", w.name, "type", msg.Type, "err", err)
		}

		if msg.Done != nil {
			msg.Done(success, err)
		}
		counter.Dec()
	}
}
