// Command report-mailer delivers generated monthly accounting reports by
// email. It runs the queue worker, the admin API and a few operator
// commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "report-mailer",
		Short:         "Deliver monthly accounting reports by email",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml or its directory")

	root.AddCommand(
		newWorkerCmd(&configPath),
		newServeCmd(&configPath),
		newEnqueueCmd(&configPath),
		newReprocessCmd(&configPath),
		newMigrateCmd(&configPath),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
