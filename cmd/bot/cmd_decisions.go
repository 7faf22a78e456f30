package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newDecisionsCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "Show the decision journal, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadBase(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			decisions, err := a.store.ListDecisions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSYMBOL\tKIND\tOUTCOME\tREASON")
			for _, d := range decisions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					d.Timestamp.Local().Format(time.DateTime), d.Symbol, d.SignalKind, d.Outcome, d.Reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of decisions to show")
	return cmd
}
