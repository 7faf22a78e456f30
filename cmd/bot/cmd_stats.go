package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print ledger statistics and open positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadBase(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			s := a.ledger.Stats()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "balance\t%.2f\n", s.Balance)
			fmt.Fprintf(w, "realized pnl\t%.2f\n", s.RealizedPnL)
			fmt.Fprintf(w, "trades\t%d\n", s.Trades)
			fmt.Fprintf(w, "win rate\t%.1f%%\n", s.WinRate*100)
			fmt.Fprintf(w, "risk/reward\t%.2f\n", s.RiskReward)
			fmt.Fprintf(w, "open positions\t%d\n", s.OpenPositions)
			for _, p := range a.ledger.Positions() {
				fmt.Fprintf(w, "  %s\t%s amount %g @ %g tp %g sl %g\n",
					p.Symbol, p.Side, p.Amount, p.EntryPrice, p.TakeProfit, p.StopLoss)
			}
			return w.Flush()
		},
	}
}
