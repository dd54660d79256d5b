package logger

import (
	"context"
	"log/slog"

	"github.com/resonatehq/resmon/internal/app/plugins/base"
	"github.com/resonatehq/resmon/internal/metrics"
)

type Config struct {
	Size    int    `flag:"size" desc:"submission buffered channel size" default:"100"`
	Workers int    `flag:"workers" desc:"number of workers" default:"1"`
	Level   string `flag:"level" desc:"level events are logged at, one of: debug, info, warn, error" default:"info"`
}

// Logger writes events to the process log, useful when no queue is
// available.
type Logger struct {
	*base.Plugin
}

type processor struct {
	logger *slog.Logger
	level  slog.Level
}

func New(metrics *metrics.Metrics, config *Config) (*Logger, error) {
	return NewWithLogger(metrics, config, slog.Default())
}

func NewWithLogger(metrics *metrics.Metrics, config *Config, logger *slog.Logger) (*Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(config.Level)); err != nil {
		return nil, err
	}

	proc := &processor{
		logger: logger,
		level:  level,
	}

	return &Logger{
		Plugin: base.NewPlugin("logger", &base.Config{Size: config.Size, Workers: config.Workers}, metrics, proc, nil),
	}, nil
}

func (p *processor) Process(target string, body []byte) (bool, error) {
	p.logger.Log(context.Background(), p.level, "event", "target", target, "body", string(body))
	return true, nil
}
