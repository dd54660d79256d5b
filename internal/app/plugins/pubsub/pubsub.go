package pubsub

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"

	"github.com/resonatehq/resmon/internal/app/plugins/base"
	"github.com/resonatehq/resmon/internal/metrics"
)

type Config struct {
	Size      int           `flag:"size" desc:"submission buffered channel size" default:"100"`
	Workers   int           `flag:"workers" desc:"number of workers" default:"2"`
	Timeout   time.Duration `flag:"timeout" desc:"request timeout" default:"30s"`
	ProjectID string        `flag:"project-id" desc:"GCP project ID" default:""`
}

type PubSub struct {
	*base.Plugin
}

type Client interface {
	Publish(ctx context.Context, topic string, data []byte) (string, error)
	Close() error
}

type clientWrapper struct {
	*pubsub.Client
}

func (w *clientWrapper) Publish(ctx context.Context, topic string, data []byte) (string, error) {
	publisher := w.Client.Publisher(topic)
	result := publisher.Publish(ctx, &pubsub.Message{Data: data})
	return result.Get(ctx)
}

type processor struct {
	client  Client
	timeout time.Duration
}

func New(metrics *metrics.Metrics, config *Config) (*PubSub, error) {
	if config.ProjectID == "" {
		return nil, fmt.Errorf("GCP project ID is required")
	}

	client, err := pubsub.NewClient(context.Background(), config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}

	return NewWithClient(metrics, config, &clientWrapper{client})
}

func NewWithClient(metrics *metrics.Metrics, config *Config, client Client) (*PubSub, error) {
	proc := &processor{
		client:  client,
		timeout: config.Timeout,
	}

	plugin := base.NewPlugin("pubsub", &base.Config{Size: config.Size, Workers: config.Workers}, metrics, proc, func() error {
		if client != nil {
			return client.Close()
		}
		return nil
	})

	return &PubSub{
		Plugin: plugin,
	}, nil
}

// Process publishes body to the topic named by target.
func (p *processor) Process(target string, body []byte) (bool, error) {
	if target == "" {
		return false, fmt.Errorf("missing topic")
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if _, err := p.client.Publish(ctx, target, body); err != nil {
		return false, err
	}

	return true, nil
}
