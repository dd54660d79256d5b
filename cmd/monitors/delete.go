package monitors

import (
	"github.com/resonatehq/resmon/pkg/client"
	"github.com/spf13/cobra"
)

func DeleteMonitorCmd(c client.Client) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"rm"},
		Short:   "Stop monitoring a resource",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.DeleteMonitor(cmd.Context(), args[0]); err != nil {
				return err
			}

			cmd.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}
