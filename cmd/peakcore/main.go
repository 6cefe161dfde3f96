// Command peakcore runs the peak-detection and meta-grouping core
// either as a one-shot batch job or as a long-running HTTP service: the
// root command only dispatches to the detect and serve subcommands,
// which build Parameters (from a YAML file or a request) and call the
// library.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "peakcore",
		Short: "LC-MS peak detection and cross-sample meta-grouping",
	}
	root.AddCommand(newDetectCmd())
	root.AddCommand(newServeCmd())
	return root
}
