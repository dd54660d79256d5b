package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DebugLevel = slog.LevelDebug
	InfoLevel  = slog.LevelInfo
	WarnLevel  = slog.LevelWarn
	ErrorLevel = slog.LevelError
	OffLevel   = slog.Level(1000)
)

type Config struct {
	Level      string `flag:"level" desc:"log level (debug,info,warn,error,off)" default:"info"`
	Format     string `flag:"format" desc:"log format (text,json)" default:"text"`
	File       string `flag:"file" desc:"log file, logs go to stdout when empty"`
	MaxSize    int    `flag:"max-size" desc:"max size in megabytes of a log file before rotation" default:"100"`
	MaxBackups int    `flag:"max-backups" desc:"max number of rotated log files to keep" default:"5"`
	MaxAge     int    `flag:"max-age" desc:"max days to keep rotated log files" default:"30"`
}

// ParseLevel takes a string level and returns the slog log level constant.
func ParseLevel(lvl string) (slog.Level, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "off":
		return OffLevel, nil
	default:
		return 0, fmt.Errorf("unrecognized level: %s", lvl)
	}
}

// New builds a logger from config. The returned closer releases the
// log file, if any.
func New(config *Config) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if config.File != "" {
		file := &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			LocalTime:  true,
		}
		w = file
		closer = file
	}

	return slog.New(newHandler(w, config.Format, level)), closer, nil
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(format) {
	case "json":
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
