package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/vitos/crypto_signal_desk/internal/config"
	"github.com/vitos/crypto_signal_desk/internal/domain"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	volumeWindowHours = 24
	spikeLookback     = 20
)

// MarketCollector builds metric snapshots from exchange tickers and klines.
// Per-instrument kline requests fan out with bounded concurrency; a failed or
// timed-out request leaves its metric at zero and marks the batch degraded.
type MarketCollector struct {
	market      domain.MarketData
	category    string
	concurrency int
	retry       RetryPolicy
	logger      *zap.Logger
	timeNow     func() time.Time
}

func NewMarketCollector(market domain.MarketData, category string, cfg config.Collector, logger *zap.Logger) *MarketCollector {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if category == "" {
		category = "linear"
	}
	return &MarketCollector{
		market:      market,
		category:    category,
		concurrency: concurrency,
		retry:       NewRetryPolicy(cfg.Retry),
		logger:      logger,
		timeNow:     time.Now,
	}
}

// Universe resolves the symbols to watch. Configured symbols are used as is;
// otherwise trading instruments in the quote coin are ranked by turnover.
func (c *MarketCollector) Universe(ctx context.Context, u config.Universe) ([]string, error) {
	if len(u.Symbols) > 0 {
		return u.Symbols, nil
	}

	instruments, err := retryValue(ctx, c.retry, func() ([]domain.Instrument, error) {
		return c.market.GetInstruments(ctx, c.category)
	})
	if err != nil {
		return nil, err
	}
	tickers, err := retryValue(ctx, c.retry, func() ([]domain.Ticker, error) {
		return c.market.GetTickers(ctx, c.category)
	})
	if err != nil {
		return nil, err
	}

	turnover := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		turnover[t.Symbol] = t.Turnover24h
	}

	var symbols []string
	for _, inst := range instruments {
		if inst.Status != "Trading" {
			continue
		}
		if u.QuoteCoin != "" && !strings.EqualFold(inst.QuoteCoin, u.QuoteCoin) {
			continue
		}
		if _, ok := turnover[inst.Symbol]; !ok {
			continue
		}
		symbols = append(symbols, inst.Symbol)
	}
	sort.SliceStable(symbols, func(i, j int) bool { return turnover[symbols[i]] > turnover[symbols[j]] })
	if u.MaxInstruments > 0 && len(symbols) > u.MaxInstruments {
		symbols = symbols[:u.MaxInstruments]
	}
	return symbols, nil
}

// Collect returns one snapshot per symbol that has a ticker, in input order.
// An error is returned only when no tickers could be fetched at all.
func (c *MarketCollector) Collect(ctx context.Context, symbols []string) (domain.MetricBatch, error) {
	batch := domain.MetricBatch{Requested: len(symbols), CollectedAt: c.timeNow()}

	tickers, err := retryValue(ctx, c.retry, func() ([]domain.Ticker, error) {
		return c.market.GetTickers(ctx, c.category)
	})
	if err != nil {
		batch.Degraded = true
		return batch, err
	}
	bySymbol := make(map[string]domain.Ticker, len(tickers))
	for _, t := range tickers {
		bySymbol[t.Symbol] = t
	}

	var degraded atomic.Bool
	results := make([]*domain.MetricSnapshot, len(symbols))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, symbol := range symbols {
		t, ok := bySymbol[symbol]
		if !ok {
			c.logger.Debug("No ticker for symbol", zap.String("symbol", symbol))
			degraded.Store(true)
			continue
		}
		g.Go(func() error {
			snap, complete := c.snapshot(ctx, t)
			if !complete {
				degraded.Store(true)
			}
			results[i] = &snap
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r != nil {
			batch.Snapshots = append(batch.Snapshots, *r)
		}
	}
	batch.Degraded = degraded.Load() || ctx.Err() != nil
	return batch, nil
}

func (c *MarketCollector) snapshot(ctx context.Context, t domain.Ticker) (domain.MetricSnapshot, bool) {
	snap := domain.MetricSnapshot{
		Symbol:       t.Symbol,
		LastPrice:    t.LastPrice,
		Change24h:    t.Price24hPcnt * 100,
		FundingRate:  t.FundingRate,
		OpenInterest: t.OpenInterest,
	}
	if t.PrevPrice1h > 0 {
		snap.Change1h = (t.LastPrice/t.PrevPrice1h - 1) * 100
	}

	complete := true
	hourly, err := retryValue(ctx, c.retry, func() ([]domain.Candle, error) {
		return c.market.GetCandles(ctx, t.Symbol, "60", 2*volumeWindowHours)
	})
	if err != nil {
		c.logger.Debug("Hourly candles unavailable", zap.String("symbol", t.Symbol), zap.Error(err))
		complete = false
	} else {
		snap.VolumeChangePct = volumeChangePct(hourly)
	}

	quarter, err := retryValue(ctx, c.retry, func() ([]domain.Candle, error) {
		return c.market.GetCandles(ctx, t.Symbol, "15", spikeLookback+1)
	})
	if err != nil {
		c.logger.Debug("15m candles unavailable", zap.String("symbol", t.Symbol), zap.Error(err))
		complete = false
	} else {
		snap.Volume15mMultiple = volumeMultiple(quarter)
	}
	return snap, complete
}

// volumeChangePct compares the volume of the newer half of chronological
// candles with the older half, in percent.
func volumeChangePct(candles []domain.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	half := len(candles) / 2
	var older, newer float64
	for i, k := range candles {
		if i < len(candles)-2*half {
			continue
		}
		if i < len(candles)-half {
			older += k.Volume
		} else {
			newer += k.Volume
		}
	}
	if older <= 0 {
		return 0
	}
	return (newer/older - 1) * 100
}

// volumeMultiple is the newest candle's volume over the mean of the rest.
func volumeMultiple(candles []domain.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	var sum float64
	for _, k := range candles[:len(candles)-1] {
		sum += k.Volume
	}
	mean := sum / float64(len(candles)-1)
	if mean <= 0 {
		return 0
	}
	return candles[len(candles)-1].Volume / mean
}
