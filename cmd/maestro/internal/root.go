// Package internal holds maestro's cobra command tree, grounded in tako's
// cmd/tako/internal/root.go: a NewRootCmd() that wires subcommands and an
// Execute() the top-level main.go calls.
package internal

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "maestro",
		Short: "Maestro is a workflow orchestration service.",
		Long: `Maestro registers versioned workflow definitions expressed in a declarative
document, then runs a specific revision synchronously against typed input
parameters, persisting every step outcome as it happens.`,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "maestro.yaml", "Path to the service configuration file.")
	cmd.AddCommand(NewServeCmd(&configPath))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
