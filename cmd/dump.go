// Package cmd provides the command-line interface for the ESS EPM telemetry poller.
package cmd

import (
	"fmt"

	"github.com/geekxflood/common/logging"
	"github.com/spf13/cobra"

	"github.com/lsst-ts/ts-ess-epm/internal/mibtree"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the embedded OID tree",
	Long:  `Build the OID tree from the embedded MIB definitions and print it in depth-first order.`,
	Example: `# Print the full OID tree
	ts-ess-epm dump`,
	RunE: dumpTree,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

func dumpTree(cmd *cobra.Command, args []string) error {
	logger, cleanup, err := logging.NewLogger(logging.Config{
		Level:  "error",
		Format: "json",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer cleanup.Close()

	tree, err := mibtree.Build(logger)
	if err != nil {
		return fmt.Errorf("failed to build OID tree: %w", err)
	}

	fmt.Print(tree.Dump())
	return nil
}
