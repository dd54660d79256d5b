package migrate

import (
	"fmt"
	"io"

	"github.com/go-viper/mapstructure/v2"
	"github.com/resonatehq/resmon/cmd/config"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store/migrations"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store/postgres"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewCmd(cfg *config.Config, vip *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("config")
			if err := config.ReadInConfig(vip, file); err != nil {
				return err
			}

			hooks := mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			)
			return vip.Unmarshal(cfg, viper.DecodeHook(hooks))
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "config file (default resmon.yaml)")
	_ = config.BindSection(&cfg.Store, cmd.PersistentFlags(), vip, "store")

	cmd.AddCommand(newStatusCmd(cfg))
	cmd.AddCommand(newDryRunCmd(cfg))
	cmd.AddCommand(newUpCmd(cfg))

	return cmd
}

func newStatusCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := open(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			current, err := store.GetCurrentVersion()
			if err != nil {
				return fmt.Errorf("failed to get current version: %w", err)
			}

			all, err := migrations.LoadMigrations(store)
			if err != nil {
				return fmt.Errorf("failed to load migrations: %w", err)
			}

			latest := current
			if len(all) > 0 {
				latest = all[len(all)-1].Version
			}

			pending, err := migrations.GetPendingMigrations(current, store)
			if err != nil {
				return fmt.Errorf("failed to get pending migrations: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Store: %s\n", store)
			fmt.Fprintf(out, "Current version: %d\n", current)
			fmt.Fprintf(out, "Latest version: %d\n", latest)
			fmt.Fprintf(out, "Pending migrations: %d\n", len(pending))

			if len(pending) > 0 {
				fmt.Fprintln(out, "Status: MIGRATIONS PENDING")
			} else {
				fmt.Fprintln(out, "Status: UP TO DATE")
			}

			return nil
		},
	}
}

func newDryRunCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show which migrations would be applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := open(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			pending, err := pendingMigrations(store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "No pending migrations")
				return nil
			}

			fmt.Fprintf(out, "Would apply %d migration(s):\n", len(pending))
			for _, m := range pending {
				fmt.Fprintf(out, "  %s\n", m)
			}

			return nil
		},
	}
}

func newUpCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := open(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			pending, err := pendingMigrations(store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "No pending migrations")
				return nil
			}

			if err := migrations.ApplyMigrations(cmd.Context(), pending, store); err != nil {
				return err
			}

			fmt.Fprintf(out, "Applied %d migration(s), database is at version %d\n", len(pending), pending[len(pending)-1].Version)
			return nil
		},
	}
}

func pendingMigrations(store migrations.MigrationStore) ([]migrations.Migration, error) {
	current, err := store.GetCurrentVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}

	pending, err := migrations.GetPendingMigrations(current, store)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if err := migrations.ValidateMigrationSequence(pending, current); err != nil {
		return nil, err
	}

	return pending, nil
}

// open connects to the configured store without running its startup
// migrations.
func open(cfg *config.Config) (migrations.MigrationStore, io.Closer, error) {
	switch cfg.Store.Kind {
	case "sqlite":
		s, err := sqlite.New(&cfg.Store.Sqlite)
		if err != nil {
			return nil, nil, err
		}
		return migrations.NewSqliteMigrationStore(s.DB()), s.DB(), nil
	case "postgres":
		s, err := postgres.New(&cfg.Store.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return migrations.NewPostgresMigrationStore(s.DB()), s.DB(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported store %q", cfg.Store.Kind)
	}
}
