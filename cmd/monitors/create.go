package monitors

import (
	"github.com/resonatehq/resmon/pkg/client"
	"github.com/resonatehq/resmon/pkg/monitor"
	"github.com/spf13/cobra"
)

var createMonitorExample = `
# Monitor a resource once a day
resmon monitors create /subscriptions/<sub>/resourceGroups/<rg>/providers/Microsoft.Network/frontDoors/<name>

# Monitor a resource every 30 seconds with a fixed api version
resmon monitors create /subscriptions/<sub>/resourceGroups/<rg>/providers/Microsoft.Network/frontDoors/<name> --api-version 2019-05-01 --check-frequency 30s

# Monitor a resource every hour
resmon monitors create /subscriptions/<sub>/resourceGroups/<rg>/providers/Microsoft.Network/frontDoors/<name> --check-frequency "@every 1h"`

func CreateMonitorCmd(c client.Client) *cobra.Command {
	var (
		apiVersion     string
		checkFrequency string
	)

	cmd := &cobra.Command{
		Use:     "create <resource-id>",
		Short:   "Start monitoring a resource",
		Example: createMonitorExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := c.CreateMonitor(cmd.Context(), &client.CreateMonitorRequest{
				ResourceId:     args[0],
				ApiVersion:     apiVersion,
				CheckFrequency: checkFrequency,
			})
			if err != nil {
				return err
			}

			cmd.Printf("Monitoring %s\n", monitor.Key(args[0]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&apiVersion, "api-version", "a", "", "resource api version, resolved from the resource provider when omitted")
	cmd.Flags().StringVarP(&checkFrequency, "check-frequency", "f", "", "time between checks, for example 30s or @every 1h (default 24h)")

	return cmd
}
