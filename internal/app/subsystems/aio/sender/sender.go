package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/resonatehq/resmon/internal/aio"
	"github.com/resonatehq/resmon/internal/metrics"
	"github.com/resonatehq/resmon/pkg/message"
)

// Config

type Config struct {
	Timeout time.Duration `flag:"timeout" desc:"max time to wait for a plugin to deliver an event" default:"30s"`
	Change  Route         `flag:"change"`
	Error   Route         `flag:"error"`
}

// Route binds an event channel to a plugin and a plugin specific
// target, for example a queue url or a topic.
type Route struct {
	Plugin string `flag:"plugin" desc:"plugin that delivers events, one of: logger, http, sqs, pubsub" default:"logger"`
	Target string `flag:"target" desc:"plugin target, for example a queue url, topic, or webhook url, defaults to the queue name of the channel"`
}

func (r Route) String() string {
	return fmt.Sprintf("%s:%s", r.Plugin, r.Target)
}

// Subsystem

type Sender struct {
	config  *Config
	plugins map[string]aio.Plugin
	routes  map[message.Type]Route
	metrics *metrics.Metrics
}

func New(config *Config, metrics *metrics.Metrics, plugins []aio.Plugin) (*Sender, error) {
	s := &Sender{
		config:  config,
		plugins: map[string]aio.Plugin{},
		routes: map[message.Type]Route{
			message.Change: config.Change,
			message.Error:  config.Error,
		},
		metrics: metrics,
	}

	for _, plugin := range plugins {
		s.plugins[plugin.Type()] = plugin
	}

	for t, route := range s.routes { // nosemgrep: range-over-map
		if _, ok := s.plugins[route.Plugin]; !ok {
			return nil, fmt.Errorf("%s events routed to plugin %q which is not enabled", t, route.Plugin)
		}
		if route.Target == "" {
			route.Target = t.Queue()
			s.routes[t] = route
		}
	}

	return s, nil
}

func (s *Sender) String() string {
	return fmt.Sprintf("sender(change=%s, error=%s)", s.routes[message.Change], s.routes[message.Error])
}

func (s *Sender) Start(errors chan<- error) error {
	for _, plugin := range s.plugins { // nosemgrep: range-over-map
		if err := plugin.Start(errors); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sender) Stop() error {
	var errs []error
	for _, plugin := range s.plugins { // nosemgrep: range-over-map
		if err := plugin.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send publishes msg on the channel t and blocks until the routed
// plugin reports the outcome. Any failure is returned as an
// *aio.DeliveryError.
func (s *Sender) Send(ctx context.Context, t message.Type, msg *message.Message) error {
	route, ok := s.routes[t]
	if !ok {
		return &aio.DeliveryError{Type: t, Err: fmt.Errorf("unknown event type")}
	}

	plugin := s.plugins[route.Plugin]

	body, err := msg.Marshal()
	if err != nil {
		return s.fail(t, route, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	done := make(chan error, 1)

	ok = plugin.Enqueue(&aio.Message{
		Type:   t,
		Target: route.Target,
		Body:   body,
		Done: func(success bool, err error) {
			if err == nil && !success {
				err = fmt.Errorf("rejected")
			}
			done <- err
		},
	})
	if !ok {
		return s.fail(t, route, fmt.Errorf("%s submission queue full", plugin))
	}

	select {
	case err := <-done:
		if err != nil {
			return s.fail(t, route, err)
		}
	case <-ctx.Done():
		return s.fail(t, route, ctx.Err())
	}

	slog.Debug("sender:send", "type", t, "route", route, "msg", msg)
	s.metrics.EventsTotal.WithLabelValues(t.String(), "success").Inc()

	return nil
}

func (s *Sender) fail(t message.Type, route Route, err error) error {
	s.metrics.EventsTotal.WithLabelValues(t.String(), "failure").Inc()
	return &aio.DeliveryError{Type: t, Plugin: route.Plugin, Err: err}
}
