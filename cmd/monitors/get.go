package monitors

import (
	"encoding/json"

	"github.com/resonatehq/resmon/pkg/client"
	"github.com/spf13/cobra"
)

func GetMonitorCmd(c client.Client) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a monitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.ReadMonitor(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if output == "json" {
				b, err := json.Marshal(m)
				if err != nil {
					return err
				}
				cmd.Println(string(b))
				return nil
			}

			prettyPrintMonitor(cmd, m)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output format, can be one of: json")

	return cmd
}
