package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vitos/crypto_signal_desk/internal/config"
	"github.com/vitos/crypto_signal_desk/internal/infrastructure/exchange"
	"github.com/vitos/crypto_signal_desk/internal/usecase"
	"go.uber.org/zap"
)

// newCheckCmd probes exchange connectivity and prints the metrics the
// detector would see for the given symbols.
func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check [symbol...]",
		Short: "Fetch live metrics for symbols without touching the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := zap.NewNop()
			market := exchange.NewBybitAdapter(
				cfg.Exchange.APIKey, cfg.Exchange.APISecret,
				cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint,
				cfg.Exchange.Category, log)
			collector := usecase.NewMarketCollector(market, cfg.Exchange.Category, cfg.Collector, log)

			symbols := args
			if len(symbols) == 0 {
				symbols, err = collector.Universe(cmd.Context(), cfg.Universe)
				if err != nil {
					return fmt.Errorf("resolve universe: %w", err)
				}
			}

			batch, err := collector.Collect(cmd.Context(), symbols)
			if err != nil {
				return fmt.Errorf("collect: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tPRICE\t24H%\t1H%\tVOL%\t15M X\tFUNDING\tOI")
			for _, s := range batch.Snapshots {
				fmt.Fprintf(w, "%s\t%g\t%.2f\t%.2f\t%.1f\t%.2f\t%.4f%%\t%.0f\n",
					s.Symbol, s.LastPrice, s.Change24h, s.Change1h, s.VolumeChangePct,
					s.Volume15mMultiple, s.FundingRate*100, s.OpenInterest)
			}
			fmt.Fprintf(w, "collected %d/%d\tdegraded=%t\n", len(batch.Snapshots), batch.Requested, batch.Degraded)
			return w.Flush()
		},
	}
}
