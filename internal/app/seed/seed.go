package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/resonatehq/resmon/internal/app/subsystems/api/service"
	"gopkg.in/yaml.v3"
)

type Config struct {
	File     string        `flag:"file" desc:"yaml file of monitors to admit on start and on change"`
	Debounce time.Duration `flag:"debounce" desc:"delay before re-reading the seed file after a change" default:"500ms"`
	Timeout  time.Duration `flag:"timeout" desc:"timeout for admitting the seed file" default:"30s"`
}

// Admitter admits monitors, repeated admission of a resource is a no-op.
type Admitter interface {
	CreateMonitor(ctx context.Context, header *service.Header, body *service.CreateMonitorBody) (*service.CreateMonitorResponse, *service.Error)
}

type Document struct {
	Monitors []*service.CreateMonitorBody `yaml:"monitors"`
}

func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	for i, m := range doc.Monitors {
		if m == nil {
			return nil, fmt.Errorf("failed to parse seed file %s: monitor %d is empty", path, i)
		}
	}

	return &doc, nil
}

type Seed struct {
	config   *Config
	admitter Admitter
	watcher  *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
}

func New(config *Config, admitter Admitter) *Seed {
	return &Seed{
		config:   config,
		admitter: admitter,
		done:     make(chan struct{}),
	}
}

func (s *Seed) String() string {
	return "seed"
}

func (s *Seed) Start(chan<- error) error {
	if s.config.File == "" {
		return nil
	}

	if _, err := s.Apply(context.Background()); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create seed file watcher: %w", err)
	}

	// editors often replace the file, so the directory is watched
	if err := watcher.Add(filepath.Dir(s.config.File)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch seed file %s: %w", s.config.File, err)
	}
	s.watcher = watcher

	s.wg.Add(1)
	go s.loop()

	return nil
}

func (s *Seed) Stop() error {
	if s.watcher == nil {
		return nil
	}

	close(s.done)
	err := s.watcher.Close()
	s.wg.Wait()

	return err
}

// Apply admits every monitor in the seed file and returns how many were
// admitted. Only an unreadable file is an error, failed entries are
// logged and skipped.
func (s *Seed) Apply(ctx context.Context) (int, error) {
	doc, err := Load(s.config.File)
	if err != nil {
		return 0, err
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	admitted, failed := 0, 0

	for _, body := range doc.Monitors {
		res, err := s.admitter.CreateMonitor(ctx, &service.Header{}, body)
		if err != nil {
			slog.Warn("failed to admit seed monitor", "resourceId", body.ResourceId, "err", err)
			failed++
			continue
		}

		admitted++
		slog.Debug("admitted seed monitor", "key", res.Key, "created", res.Created)
	}

	slog.Info("applied seed file", "file", s.config.File, "admitted", admitted, "failed", failed)

	return admitted, nil
}

func (s *Seed) loop() {
	defer s.wg.Done()

	file := filepath.Clean(s.config.File)

	timer := time.NewTimer(0)
	timer.Stop()

	for {
		select {
		case <-s.done:
			timer.Stop()
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == file && (event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create)) {
				slog.Debug("seed file changed", "file", event.Name, "op", event.Op)
				timer.Reset(s.config.Debounce)
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("seed file watcher error", "err", err)

		case <-timer.C:
			if _, err := s.Apply(context.Background()); err != nil {
				slog.Error("failed to apply seed file", "file", s.config.File, "err", err)
			}
		}
	}
}
