package cmd

import (
	"os"

	"github.com/resonatehq/resmon/cmd/config"
	"github.com/resonatehq/resmon/cmd/migrate"
	"github.com/resonatehq/resmon/cmd/monitors"
	"github.com/resonatehq/resmon/cmd/serve"
	"github.com/resonatehq/resmon/cmd/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "resmon",
		Short:        "Watch cloud resources and publish their changes",
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(serve.NewCmd(&config.Config{}, viper.New()))
	cmd.AddCommand(migrate.NewCmd(&config.Config{}, viper.New()))
	cmd.AddCommand(monitors.NewCmd())
	cmd.AddCommand(version.NewCmd())

	// Set default output
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
