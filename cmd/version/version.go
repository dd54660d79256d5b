package version

import (
	"github.com/resonatehq/resmon/internal/version"
	"github.com/spf13/cobra"
)

func NewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the resmon version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("resmon %s\n", version.Full())
		},
	}
}
