package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitos/crypto_signal_desk/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run scheduled cycles, the live exit monitor and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.run(ctx)
		},
	}
}

func (a *app) run(ctx context.Context) error {
	log := a.log

	// Live prices drive exits between cycles.
	a.market.OnPriceUpdate(func(symbol string, price float64) {
		if err := a.orchestrator.OnPrice(ctx, symbol, price); err != nil {
			log.Error("Error processing price update", zap.String("symbol", symbol), zap.Error(err))
		}
	})

	server := web.NewServer(a.cfg.Server.Port, a.ledger, a.store, a.scheduler, a.market, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.scheduler.Start(gctx)
		return nil
	})
	g.Go(func() error {
		symbols, err := a.collector.Universe(gctx, a.cfg.Universe)
		if err != nil {
			log.Error("Failed to resolve universe for price stream", zap.Error(err))
		}
		for _, p := range a.ledger.Positions() {
			symbols = appendMissing(symbols, p.Symbol)
		}
		if len(symbols) == 0 {
			return nil
		}
		if err := a.market.StreamPrices(gctx, symbols); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func appendMissing(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
