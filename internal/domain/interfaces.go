package domain

import (
	"context"
	"time"
)

// MarketData defines the read-only exchange surface the collector needs.
type MarketData interface {
	GetInstruments(ctx context.Context, category string) ([]Instrument, error)
	GetTickers(ctx context.Context, category string) ([]Ticker, error)
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// Collector turns a symbol universe into a metric batch. Instruments that
// cannot be fetched are omitted rather than failing the batch.
type Collector interface {
	Collect(ctx context.Context, symbols []string) (MetricBatch, error)
}

// StrategyFilter decides whether an accepted candidate should be traded.
type StrategyFilter interface {
	Evaluate(ctx context.Context, c Candidate) (Verdict, error)
}

// Sizer maps a confidence score to a position notional in USD.
type Sizer interface {
	SizeUSD(confidence float64) float64
}

// Scorer is a loaded statistical model handle.
type Scorer interface {
	Score(features []float32) (float32, error)
	Close()
}

// Notifier delivers user-facing messages. Implementations log their own
// delivery failures and never return them to the caller.
type Notifier interface {
	NotifySignals(ctx context.Context, digest SignalDigest)
	NotifyTrade(ctx context.Context, event TradeEvent)
}

// CooldownRepository stores the last notification time per key.
type CooldownRepository interface {
	GetCooldown(ctx context.Context, key string) (*CooldownEntry, error)
	UpsertCooldown(ctx context.Context, entry CooldownEntry) error
	PruneCooldowns(ctx context.Context, before time.Time) (int64, error)
}

// LedgerRepository persists open positions and closed trades.
type LedgerRepository interface {
	SavePosition(ctx context.Context, pos Position) error
	DeletePosition(ctx context.Context, symbol string) error
	ListPositions(ctx context.Context) ([]Position, error)

	SaveTrade(ctx context.Context, trade TradeRecord) error
	ListTrades(ctx context.Context, limit int) ([]TradeRecord, error)
}

// DecisionRepository keeps the decision audit trail.
type DecisionRepository interface {
	SaveDecision(ctx context.Context, d Decision) error
	ListDecisions(ctx context.Context, limit int) ([]Decision, error)
}
