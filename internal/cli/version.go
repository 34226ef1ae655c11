package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/corohost/internal/engine"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and available engines",
		Run: func(cmd *cobra.Command, args []string) {
			names := make([]string, 0, 2)
			for _, n := range engine.Registered() {
				names = append(names, string(n))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "corohost %s (engines: %s)\n", Version, strings.Join(names, ", "))
		},
	}
}
