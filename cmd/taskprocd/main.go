// Command taskprocd demonstrates the engine package's external
// collaborators named in the design's §1 scope cut: configuration
// loading from TOML, a /metrics HTTP handler, and clean shutdown on
// SIGINT/SIGTERM. It is not part of the core — everything it does is
// wiring, the way a sample main package wires up a library.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskprocd",
	Short: "Runs a standalone task processor with a Prometheus metrics endpoint",
}

func main() {
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
