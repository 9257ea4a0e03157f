// Command hioload-tcp runs a selector-driven TCP endpoint that logs
// connection events and optionally echoes received bytes.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hioload-tcp",
		Short: "Single-threaded, selector-driven TCP endpoint",
		Long: `hioload-tcp accepts TCP connections on one port, multiplexes them on a
single event-loop thread, and reports connect, receive and disconnect
events. An admin HTTP endpoint serves Prometheus metrics and debug state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
