package monitors

import (
	"github.com/resonatehq/resmon/pkg/client"
	"github.com/spf13/cobra"
)

func CheckMonitorCmd(c client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "check <key>",
		Short: "Check a monitored resource as soon as possible",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.CheckMonitor(cmd.Context(), args[0]); err != nil {
				return err
			}

			cmd.Printf("Check requested for %s\n", args[0])
			return nil
		},
	}
}
