package monitors

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/resonatehq/resmon/internal/util"
	"github.com/resonatehq/resmon/pkg/client"
	"github.com/resonatehq/resmon/pkg/monitor"
	"github.com/spf13/cobra"
)

func NewCmd() *cobra.Command {
	var (
		c        = client.New()
		server   string
		username string
		password string
		token    string
	)

	cmd := &cobra.Command{
		Use:     "monitors",
		Aliases: []string{"monitor"},
		Short:   "Manage resource monitors",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if username != "" || password != "" {
				c.SetBasicAuth(username, password)
			}

			if token != "" {
				c.SetBearerToken(token)
			}

			return c.Setup(server)
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	// Add subcommands
	cmd.AddCommand(CreateMonitorCmd(c))
	cmd.AddCommand(GetMonitorCmd(c))
	cmd.AddCommand(ListMonitorsCmd(c))
	cmd.AddCommand(CheckMonitorCmd(c))
	cmd.AddCommand(DeleteMonitorCmd(c))

	// Flags
	cmd.PersistentFlags().StringVarP(&server, "server", "", "http://localhost:8001", "resmon url")
	cmd.PersistentFlags().StringVarP(&username, "username", "U", "", "basic auth username")
	cmd.PersistentFlags().StringVarP(&password, "password", "P", "", "basic auth password")
	cmd.PersistentFlags().StringVarP(&token, "token", "T", "", "JWT bearer token")

	return cmd
}

func prettyPrintMonitors(cmd *cobra.Command, monitors ...*monitor.Monitor) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	formatted := func(row ...any) {
		_, _ = fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", row...)
	}

	formatted(
		"KEY",
		"API VERSION",
		"INTERVAL",
		"LAST CHECKED",
		"NEXT CHECK",
	)

	for _, m := range monitors {
		formatted(
			m.Key,
			m.ApiVersion,
			m.CheckInterval,
			millis(m.LastCheckedAt),
			millis(&m.NextCheckAt),
		)
	}

	_ = w.Flush()
}

func prettyPrintMonitor(cmd *cobra.Command, m *monitor.Monitor) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "Key:\t%s\n", m.Key)
	_, _ = fmt.Fprintf(w, "Resource Id:\t%s\n", m.ResourceId)
	_, _ = fmt.Fprintf(w, "Api Version:\t%s\n", m.ApiVersion)
	_, _ = fmt.Fprintf(w, "Check Interval:\t%s\n", m.CheckInterval)
	_, _ = fmt.Fprintf(w, "\n")

	_, _ = fmt.Fprintf(w, "Created On:\t%s\n", millis(&m.CreatedOn))
	_, _ = fmt.Fprintf(w, "Last Checked:\t%s\n", millis(m.LastCheckedAt))
	_, _ = fmt.Fprintf(w, "Last Changed:\t%s\n", millis(m.LastChangedAt))
	_, _ = fmt.Fprintf(w, "Next Check:\t%s\n", millis(&m.NextCheckAt))
	_, _ = fmt.Fprintf(w, "\n")

	_, _ = fmt.Fprintf(w, "Representation:\n")
	if m.CurrentRepresentation != nil {
		_, _ = fmt.Fprintf(w, "%s\n", util.SafeDeref(m.CurrentRepresentation))
	}

	_ = w.Flush()
}

func millis(v *int64) string {
	if v == nil {
		return "-"
	}
	return time.UnixMilli(*v).UTC().Format(time.RFC3339)
}
