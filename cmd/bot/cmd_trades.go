package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newTradesCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List closed trades, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadBase(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			trades, err := a.store.ListTrades(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CLOSED\tSYMBOL\tSIDE\tENTRY\tEXIT\tAMOUNT\tPNL\tREASON")
			for _, t := range trades {
				fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%g\t%g\t%.2f\t%s\n",
					t.ClosedAt.Local().Format(time.DateTime), t.Symbol, t.Side,
					t.EntryPrice, t.ExitPrice, t.AmountClosed, t.PnL, t.Reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of trades to show, 0 for all")
	return cmd
}
