package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOnceCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Collect and evaluate a single cycle, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			report := a.scheduler.RunOnce(cmd.Context())
			out := cmd.OutOrStdout()
			o := report.Overview
			fmt.Fprintf(out, "evaluated %d/%d degraded=%t\n", o.Evaluated, o.Requested, o.Degraded)
			fmt.Fprintf(out, "candidates long=%d short=%d spike=%d accepted=%d suppressed=%d\n",
				len(report.Detection.Longs), len(report.Detection.Shorts), len(report.Detection.Spikes),
				len(report.Accepted), report.Suppressed)
			for _, d := range report.Decisions {
				fmt.Fprintf(out, "%-6s %-12s %-5s %s\n", d.Outcome, d.Symbol, d.SignalKind, d.Reason)
			}
			fmt.Fprintf(out, "balance %.2f\n", o.Balance)
			return nil
		},
	}
}
