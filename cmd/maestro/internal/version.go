package internal

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set via -ldflags at release build time; it defaults to "dev"
// for local builds, mirroring tako's version command.
var Version = "dev"

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of maestro",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "maestro "+Version)
		},
	}
}
