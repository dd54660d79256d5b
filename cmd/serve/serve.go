package serve

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/resonatehq/resmon/cmd/config"
	"github.com/resonatehq/resmon/internal/aio"
	"github.com/resonatehq/resmon/internal/app/credentials"
	"github.com/resonatehq/resmon/internal/app/fetcher"
	"github.com/resonatehq/resmon/internal/app/monitors"
	"github.com/resonatehq/resmon/internal/app/seed"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/sender"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store/migrations"
	httpApi "github.com/resonatehq/resmon/internal/app/subsystems/api/http"
	"github.com/resonatehq/resmon/internal/app/subsystems/api/service"
	"github.com/resonatehq/resmon/internal/kernel/dispatch"
	"github.com/resonatehq/resmon/internal/kernel/system"
	"github.com/resonatehq/resmon/internal/metrics"
	"github.com/resonatehq/resmon/pkg/diff"
	"github.com/resonatehq/resmon/pkg/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewCmd(cfg *config.Config, vip *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the resource monitor server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("config")
			return config.ReadInConfig(vip, file)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Parse(vip); err != nil {
				return err
			}

			return Serve(cfg)
		},
	}

	// bind config file flag
	cmd.Flags().StringP("config", "c", "", "config file (default resmon.yaml)")

	// bind config
	_ = cfg.Bind(cmd.Flags(), vip)

	// bind other flags
	cmd.Flags().Bool("ignore-asserts", false, "ignore-asserts mode")
	_ = viper.BindPFlag("ignore-asserts", cmd.Flags().Lookup("ignore-asserts"))

	return cmd
}

func Serve(cfg *config.Config) error {
	// logger
	logger, closer, err := log.New(&cfg.Log)
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	// metrics
	reg := prometheus.NewRegistry()
	metrics := metrics.New(reg)

	// store
	store, err := cfg.NewStore()
	if err != nil {
		return err
	}

	// event sinks
	plugins, err := cfg.Plugins.Instantiate(metrics)
	if err != nil {
		return err
	}
	sender, err := sender.New(&cfg.Events, metrics, plugins)
	if err != nil {
		return err
	}

	// fetcher
	creds, err := credentials.New(&cfg.Credentials)
	if err != nil {
		return err
	}
	fetcher := fetcher.New(&cfg.Fetcher, creds)

	differ, err := diff.New(diff.Mode(cfg.Diff.Mode))
	if err != nil {
		return err
	}

	// actor, dispatcher and admission
	dispatcher := dispatch.New(&cfg.Dispatch, metrics)
	actor := monitors.New(store, fetcher, differ, sender, metrics)
	service := service.New(store, dispatcher, actor, fetcher, "http")

	api, err := httpApi.New(service, metrics, &cfg.API.Http)
	if err != nil {
		return err
	}

	// backend subsystems start first and stop last
	backend := aio.New(10)
	backend.AddSubsystem(store)
	backend.AddSubsystem(sender)
	backend.AddSubsystem(dispatcher)

	frontend := aio.New(10)
	frontend.AddSubsystem(api)
	frontend.AddSubsystem(seed.New(&cfg.Seed, service))

	if err := backend.Start(); err != nil {
		var migrationErr *migrations.MigrationError
		if errors.As(err, &migrationErr) {
			slog.Error("failed to start store", "error", fmt.Sprintf("migration %03d_%s failed: %v", migrationErr.Version, migrationErr.Name, migrationErr.Err))
		} else {
			slog.Error("failed to start subsystems", "error", err)
		}
		_ = backend.Stop()
		return err
	}
	if err := frontend.Start(); err != nil {
		slog.Error("failed to start api", "error", err)
		_ = frontend.Stop()
		_ = backend.Stop()
		return err
	}

	// poller
	system := system.New(&cfg.Scheduler, store, dispatcher, actor, metrics)
	slog.Info("starting system", "system", system)

	// metrics server
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		for {
			slog.Info("starting metrics server", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err == http.ErrServerClosed {
				return
			}

			slog.Error("restarting metrics server...", "error", err)
			time.Sleep(5 * time.Second)
		}
	}()

	// listen for shutdown signal
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		// halt until we get a shutdown signal or an error
		// occurs, whichever happens first
		select {
		case s := <-sig:
			slog.Info("shutdown signal received, shutting down", "signal", s)
		case err := <-frontend.Errors():
			slog.Error("api error received, shutting down", "error", err)
		case err := <-backend.Errors():
			slog.Error("subsystem error received, shutting down", "error", err)
		}

		// shutdown system
		<-system.Shutdown()

		// shutdown metrics server
		if err := metricsServer.Close(); err != nil {
			slog.Warn("error stopping metrics server", "error", err)
		}
	}()

	// control loop
	if err := system.Loop(); err != nil {
		slog.Error("control loop failed", "error", err)
		return err
	}

	// stop api, then drain the dispatcher and close the store
	if err := frontend.Stop(); err != nil {
		slog.Error("failed to stop api", "error", err)
		return err
	}
	if err := backend.Stop(); err != nil {
		slog.Error("failed to stop subsystems", "error", err)
		return err
	}

	return nil
}
