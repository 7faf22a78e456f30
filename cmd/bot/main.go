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
	var configPath string

	cmd := &cobra.Command{
		Use:           "signaldesk",
		Short:         "Market signal scanner with a paper-trading ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to the YAML config")

	cmd.AddCommand(
		newRunCmd(&configPath),
		newOnceCmd(&configPath),
		newStatsCmd(&configPath),
		newTradesCmd(&configPath),
		newDecisionsCmd(&configPath),
		newCheckCmd(&configPath),
	)
	return cmd
}
