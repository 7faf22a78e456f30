package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vitos/crypto_signal_desk/internal/domain"
)

var errStorage = errors.New("disk on fire")

// fakeClock is a settable time source for timeNow fields.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingCooldownRepo struct {
	getErr    error
	upsertErr error
	entries   map[string]domain.CooldownEntry
}

func (r *failingCooldownRepo) GetCooldown(ctx context.Context, key string) (*domain.CooldownEntry, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if e, ok := r.entries[key]; ok {
		return &e, nil
	}
	return nil, nil
}

func (r *failingCooldownRepo) UpsertCooldown(ctx context.Context, e domain.CooldownEntry) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	if r.entries == nil {
		r.entries = make(map[string]domain.CooldownEntry)
	}
	r.entries[e.Key] = e
	return nil
}

func (r *failingCooldownRepo) PruneCooldowns(ctx context.Context, before time.Time) (int64, error) {
	return 0, r.getErr
}

type failingLedgerRepo struct{}

func (failingLedgerRepo) SavePosition(ctx context.Context, pos domain.Position) error { return errStorage }
func (failingLedgerRepo) DeletePosition(ctx context.Context, symbol string) error     { return errStorage }
func (failingLedgerRepo) ListPositions(ctx context.Context) ([]domain.Position, error) {
	return nil, errStorage
}
func (failingLedgerRepo) SaveTrade(ctx context.Context, t domain.TradeRecord) error { return errStorage }
func (failingLedgerRepo) ListTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	return nil, errStorage
}

// stubFilter returns a fixed verdict, or err when set.
type stubFilter struct {
	verdict domain.Verdict
	err     error
	calls   int
}

func (f *stubFilter) Evaluate(ctx context.Context, c domain.Candidate) (domain.Verdict, error) {
	f.calls++
	if f.err != nil {
		return domain.Verdict{}, f.err
	}
	return f.verdict, nil
}

type fixedSizer float64

func (s fixedSizer) SizeUSD(confidence float64) float64 { return float64(s) }

type recordingNotifier struct {
	mu      sync.Mutex
	digests []domain.SignalDigest
	trades  []domain.TradeEvent
}

func (n *recordingNotifier) NotifySignals(ctx context.Context, d domain.SignalDigest) {
	n.mu.Lock()
	n.digests = append(n.digests, d)
	n.mu.Unlock()
}

func (n *recordingNotifier) NotifyTrade(ctx context.Context, e domain.TradeEvent) {
	n.mu.Lock()
	n.trades = append(n.trades, e)
	n.mu.Unlock()
}

type stubScorer struct {
	score float32
	err   error
}

func (s stubScorer) Score(features []float32) (float32, error) { return s.score, s.err }
func (s stubScorer) Close()                                    {}

// mockMarket serves canned tickers and candles keyed by symbol and interval.
type mockMarket struct {
	instruments []domain.Instrument
	tickers     []domain.Ticker
	tickerErr   error
	candles     map[string][]domain.Candle
	candleErr   map[string]error

	mu          sync.Mutex
	tickerCalls int
}

func candleKey(symbol, interval string) string { return symbol + "/" + interval }

func (m *mockMarket) GetInstruments(ctx context.Context, category string) ([]domain.Instrument, error) {
	return m.instruments, nil
}

func (m *mockMarket) GetTickers(ctx context.Context, category string) ([]domain.Ticker, error) {
	m.mu.Lock()
	m.tickerCalls++
	m.mu.Unlock()
	if m.tickerErr != nil {
		return nil, m.tickerErr
	}
	return m.tickers, nil
}

func (m *mockMarket) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	if err := m.candleErr[candleKey(symbol, interval)]; err != nil {
		return nil, err
	}
	return m.candles[candleKey(symbol, interval)], nil
}
