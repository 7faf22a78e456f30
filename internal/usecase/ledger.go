package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/vitos/crypto_signal_desk/internal/domain"
	"go.uber.org/zap"
)

const amountEpsilon = 1e-12

// Ledger is the authoritative record of balance, open positions and closed
// trades. Operations on one symbol are serialized; different symbols proceed
// independently. In-memory state is authoritative: repository writes are
// best-effort and their failures are logged.
type Ledger struct {
	repo   domain.LedgerRepository
	logger *zap.Logger
	locks  *keyedMutex

	mu              sync.RWMutex
	startingBalance float64
	balance         float64
	realizedPnL     float64
	positions       map[string]*domain.Position
	trades          []domain.TradeRecord

	timeNow func() time.Time
}

// NewLedger creates a ledger. repo may be nil for a purely in-memory ledger.
func NewLedger(startingBalance float64, repo domain.LedgerRepository, logger *zap.Logger) *Ledger {
	return &Ledger{
		repo:            repo,
		logger:          logger,
		locks:           newKeyedMutex(),
		startingBalance: startingBalance,
		balance:         startingBalance,
		positions:       make(map[string]*domain.Position),
		timeNow:         time.Now,
	}
}

// Restore reloads open positions and trade history from the repository and
// recomputes balance and realized P&L from the history.
func (l *Ledger) Restore(ctx context.Context) error {
	if l.repo == nil {
		return nil
	}
	positions, err := l.repo.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("%w: list positions: %v", domain.ErrStorageUnavailable, err)
	}
	trades, err := l.repo.ListTrades(ctx, 0)
	if err != nil {
		return fmt.Errorf("%w: list trades: %v", domain.ErrStorageUnavailable, err)
	}
	// IDs are ULIDs and break ties between trades closed at the same instant
	sort.Slice(trades, func(i, j int) bool {
		if !trades[i].ClosedAt.Equal(trades[j].ClosedAt) {
			return trades[i].ClosedAt.Before(trades[j].ClosedAt)
		}
		return trades[i].ID < trades[j].ID
	})

	l.mu.Lock()
	defer l.mu.Unlock()

	l.positions = make(map[string]*domain.Position, len(positions))
	for i := range positions {
		p := positions[i]
		l.positions[p.Symbol] = &p
	}
	l.trades = trades
	l.realizedPnL = 0
	for _, t := range trades {
		l.realizedPnL += t.PnL
	}
	l.balance = l.startingBalance + l.realizedPnL

	l.logger.Info("Ledger restored",
		zap.Int("positions", len(l.positions)),
		zap.Int("trades", len(l.trades)),
		zap.Float64("balance", l.balance))
	return nil
}

// Open creates a position for a flat symbol.
func (l *Ledger) Open(ctx context.Context, req domain.OpenRequest) (domain.Position, error) {
	if req.Symbol == "" || !positive(req.EntryPrice) || !positive(req.Amount) {
		return domain.Position{}, fmt.Errorf("open %s: %w", req.Symbol, domain.ErrInvalidOrder)
	}
	if req.Side != domain.SideLong && req.Side != domain.SideShort {
		return domain.Position{}, fmt.Errorf("open %s: side %q: %w", req.Symbol, req.Side, domain.ErrInvalidOrder)
	}
	leverage := req.Leverage
	if leverage < 1 {
		leverage = 1
	}

	unlock := l.locks.Lock(req.Symbol)
	defer unlock()

	l.mu.Lock()
	if _, ok := l.positions[req.Symbol]; ok {
		l.mu.Unlock()
		return domain.Position{}, fmt.Errorf("open %s: %w", req.Symbol, domain.ErrAlreadyOpen)
	}
	pos := &domain.Position{
		Symbol:     req.Symbol,
		Side:       req.Side,
		EntryPrice: req.EntryPrice,
		Amount:     req.Amount,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
		Leverage:   leverage,
		OpenedAt:   l.timeNow(),
	}
	l.positions[req.Symbol] = pos
	snapshot := *pos
	l.mu.Unlock()

	l.persistPosition(ctx, snapshot)
	return snapshot, nil
}

// TrailStop moves the stop toward currentPrice when that protects more of the
// position: up for a LONG, down for a SHORT. It never loosens a stop and
// reports whether the stop moved. A missing position is a no-op.
func (l *Ledger) TrailStop(ctx context.Context, symbol string, currentPrice, trailPct float64) (bool, error) {
	if !positive(currentPrice) || !(trailPct >= 0 && trailPct < 1) {
		return false, fmt.Errorf("trail %s: %w", symbol, domain.ErrInvalidOrder)
	}

	unlock := l.locks.Lock(symbol)
	defer unlock()

	l.mu.Lock()
	pos, ok := l.positions[symbol]
	if !ok {
		l.mu.Unlock()
		return false, nil
	}

	moved := false
	switch pos.Side {
	case domain.SideLong:
		if next := currentPrice * (1 - trailPct); next > pos.StopLoss {
			pos.StopLoss = next
			moved = true
		}
	case domain.SideShort:
		// a zero stop on a short means none was set
		if next := currentPrice * (1 + trailPct); pos.StopLoss == 0 || next < pos.StopLoss {
			pos.StopLoss = next
			moved = true
		}
	}
	snapshot := *pos
	l.mu.Unlock()

	if moved {
		l.persistPosition(ctx, snapshot)
	}
	return moved, nil
}

// Close realizes P&L on portion of the open position. A portion of 1 removes
// the position; a smaller portion reduces its amount and keeps take-profit
// and stop-loss as they are.
func (l *Ledger) Close(ctx context.Context, symbol string, exitPrice float64, reason string, portion float64) (domain.TradeRecord, error) {
	if math.IsNaN(portion) || portion <= 0 || portion > 1 {
		return domain.TradeRecord{}, fmt.Errorf("close %s: %w", symbol, domain.ErrInvalidPortion)
	}
	if !positive(exitPrice) {
		return domain.TradeRecord{}, fmt.Errorf("close %s: %w", symbol, domain.ErrInvalidOrder)
	}

	unlock := l.locks.Lock(symbol)
	defer unlock()

	l.mu.Lock()
	pos, ok := l.positions[symbol]
	if !ok {
		l.mu.Unlock()
		return domain.TradeRecord{}, fmt.Errorf("close %s: %w", symbol, domain.ErrNoPosition)
	}

	amountClosed := pos.Amount * portion
	var pnl float64
	if pos.Side == domain.SideLong {
		pnl = (exitPrice - pos.EntryPrice) * amountClosed
	} else {
		pnl = (pos.EntryPrice - exitPrice) * amountClosed
	}

	record := domain.TradeRecord{
		ID:           ulid.Make().String(),
		Symbol:       symbol,
		Side:         pos.Side,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    exitPrice,
		AmountClosed: amountClosed,
		PnL:          pnl,
		Reason:       reason,
		ClosedAt:     l.timeNow(),
	}
	l.realizedPnL += pnl
	l.balance += pnl
	l.trades = append(l.trades, record)

	removed := portion == 1 || pos.Amount-amountClosed <= amountEpsilon
	var remaining domain.Position
	if removed {
		delete(l.positions, symbol)
	} else {
		pos.Amount -= amountClosed
		pos.PartialTaken = true
		remaining = *pos
	}
	l.mu.Unlock()

	l.persistTrade(ctx, record)
	if removed {
		l.deletePosition(ctx, symbol)
	} else {
		l.persistPosition(ctx, remaining)
	}
	return record, nil
}

// positive reports whether v is a finite number above zero.
func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

func (l *Ledger) Balance() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance
}

func (l *Ledger) RealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realizedPnL
}

func (l *Ledger) HasPosition(symbol string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.positions[symbol]
	return ok
}

// Position returns a copy of the open position for symbol.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions ordered by symbol.
func (l *Ledger) Positions() []domain.Position {
	l.mu.RLock()
	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Trades returns a copy of the trade history, oldest first.
func (l *Ledger) Trades() []domain.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.TradeRecord, len(l.trades))
	copy(out, l.trades)
	return out
}

// WinRate is the share of trade records with positive P&L.
func (l *Ledger) WinRate() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return winRate(l.trades)
}

// RiskReward is the mean winning P&L over the absolute mean losing P&L.
func (l *Ledger) RiskReward() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return riskReward(l.trades)
}

func (l *Ledger) Stats() domain.LedgerStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.LedgerStats{
		Balance:       l.balance,
		RealizedPnL:   l.realizedPnL,
		OpenPositions: len(l.positions),
		Trades:        len(l.trades),
		WinRate:       winRate(l.trades),
		RiskReward:    riskReward(l.trades),
	}
}

func winRate(trades []domain.TradeRecord) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

func riskReward(trades []domain.TradeRecord) float64 {
	var winSum, lossSum float64
	var wins, losses int
	for _, t := range trades {
		switch {
		case t.PnL > 0:
			winSum += t.PnL
			wins++
		case t.PnL < 0:
			lossSum += t.PnL
			losses++
		}
	}
	if wins == 0 || losses == 0 {
		return 0
	}
	return (winSum / float64(wins)) / math.Abs(lossSum/float64(losses))
}

func (l *Ledger) persistPosition(ctx context.Context, pos domain.Position) {
	if l.repo == nil {
		return
	}
	if err := l.repo.SavePosition(ctx, pos); err != nil {
		l.logger.Warn("Failed to persist position",
			zap.String("symbol", pos.Symbol),
			zap.Error(fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)))
	}
}

func (l *Ledger) deletePosition(ctx context.Context, symbol string) {
	if l.repo == nil {
		return
	}
	if err := l.repo.DeletePosition(ctx, symbol); err != nil {
		l.logger.Warn("Failed to delete position",
			zap.String("symbol", symbol),
			zap.Error(fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)))
	}
}

func (l *Ledger) persistTrade(ctx context.Context, t domain.TradeRecord) {
	if l.repo == nil {
		return
	}
	if err := l.repo.SaveTrade(ctx, t); err != nil {
		l.logger.Warn("Failed to persist trade",
			zap.String("symbol", t.Symbol),
			zap.String("trade_id", t.ID),
			zap.Error(fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)))
	}
}
