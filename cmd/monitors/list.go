package monitors

import (
	"encoding/json"

	"github.com/resonatehq/resmon/pkg/client"
	"github.com/resonatehq/resmon/pkg/monitor"
	"github.com/spf13/cobra"
)

func ListMonitorsCmd(c client.Client) *cobra.Command {
	var (
		limit  int
		cursor string
		all    bool
		output string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List monitors ordered by key",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var monitors []*monitor.Monitor

			for {
				res, err := c.SearchMonitors(cmd.Context(), cursor, limit)
				if err != nil {
					return err
				}
				monitors = append(monitors, res.Monitors...)

				cursor = res.Cursor
				if !all || cursor == "" {
					break
				}
			}

			if output == "json" {
				for _, m := range monitors {
					b, err := json.Marshal(m)
					if err != nil {
						return err
					}
					cmd.Println(string(b))
				}
				return nil
			}

			prettyPrintMonitors(cmd, monitors...)
			if cursor != "" {
				cmd.Printf("\nnext cursor: %s\n", cursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 100, "number of results per request")
	cmd.Flags().StringVarP(&cursor, "cursor", "c", "", "pagination cursor")
	cmd.Flags().BoolVarP(&all, "all", "A", false, "follow cursors until every monitor is listed")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format, can be one of: json")

	return cmd
}
