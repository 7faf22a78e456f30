package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/vitos/crypto_signal_desk/internal/config"
	"github.com/vitos/crypto_signal_desk/internal/domain"
	"github.com/vitos/crypto_signal_desk/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// OrchestratorConfig carries the policy knobs of a decision cycle.
type OrchestratorConfig struct {
	MarkOn   config.MarkPolicy
	PerKind  bool
	Leverage int
	Exits    config.Exits
}

// CycleReport summarizes what one cycle did.
type CycleReport struct {
	Detection  Detection
	Accepted   []domain.Candidate
	Suppressed int
	Decisions  []domain.Decision
	Trades     []domain.TradeRecord
	Opened     []domain.Position
	Errors     []error
	Overview   domain.Overview
}

// Orchestrator sequences detection, dedup, strategy filtering and ledger
// mutations. It owns no persistent state.
type Orchestrator struct {
	detector  *Detector
	cooldown  *Cooldown
	ledger    *Ledger
	filter    domain.StrategyFilter
	sizer     domain.Sizer
	notifier  domain.Notifier
	decisions domain.DecisionRepository
	cfg       OrchestratorConfig
	symbols   *keyedMutex
	logger    *zap.Logger
	timeNow   func() time.Time
}

func NewOrchestrator(
	detector *Detector,
	cooldown *Cooldown,
	ledger *Ledger,
	filter domain.StrategyFilter,
	sizer domain.Sizer,
	notifier domain.Notifier,
	decisions domain.DecisionRepository,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Leverage < 1 {
		cfg.Leverage = 1
	}
	if cfg.MarkOn == "" {
		cfg.MarkOn = config.MarkOnAcceptance
	}
	return &Orchestrator{
		detector:  detector,
		cooldown:  cooldown,
		ledger:    ledger,
		filter:    filter,
		sizer:     sizer,
		notifier:  notifier,
		decisions: decisions,
		cfg:       cfg,
		symbols:   newKeyedMutex(),
		logger:    logger,
		timeNow:   time.Now,
	}
}

func (o *Orchestrator) Ledger() *Ledger {
	return o.ledger
}

// RunCycle evaluates one fully collected batch. Candidates are handled in
// the detector's ranked order. A ledger error skips that symbol for the rest
// of the cycle and never aborts the cycle.
func (o *Orchestrator) RunCycle(ctx context.Context, batch domain.MetricBatch) CycleReport {
	var report CycleReport
	report.Detection = o.detector.Detect(batch.Snapshots)

	var digest domain.SignalDigest
	skip := make(map[string]bool)
	touched := make(map[string]bool)

	for _, c := range report.Detection.All() {
		metrics.CandidatesTotal.WithLabelValues(string(c.Kind)).Inc()
		if skip[c.Symbol] {
			continue
		}

		key := CooldownKey(c, o.cfg.PerKind)
		mutations := len(report.Opened) + len(report.Trades)

		// An opposite signal closes an open position even while its alert
		// is in cooldown.
		closed, err := o.closeOnOpposite(ctx, c, key, &report)
		if !closed {
			if !o.admit(ctx, key) {
				report.Suppressed++
				metrics.SuppressedTotal.WithLabelValues(string(c.Kind)).Inc()
				continue
			}
			report.Accepted = append(report.Accepted, c)
			switch c.Kind {
			case domain.SignalLong:
				digest.Longs = append(digest.Longs, c)
			case domain.SignalShort:
				digest.Shorts = append(digest.Shorts, c)
			case domain.SignalSpike:
				digest.Spikes = append(digest.Spikes, c)
			}
			err = o.decide(ctx, c, key, &report)
		}

		if err != nil {
			o.logger.Error("Ledger rejected decision, skipping symbol for this cycle",
				zap.String("symbol", c.Symbol), zap.String("kind", string(c.Kind)), zap.Error(err))
			report.Errors = append(report.Errors, err)
			skip[c.Symbol] = true
		}
		if len(report.Opened)+len(report.Trades) > mutations {
			touched[c.Symbol] = true
		}
	}

	for _, pos := range o.ledger.Positions() {
		if skip[pos.Symbol] || touched[pos.Symbol] {
			continue
		}
		price := batch.Price(pos.Symbol)
		if price <= 0 {
			continue
		}
		if err := o.manageExit(ctx, pos.Symbol, price, &report); err != nil {
			o.logger.Error("Exit management failed", zap.String("symbol", pos.Symbol), zap.Error(err))
			report.Errors = append(report.Errors, err)
		}
	}

	report.Overview = domain.Overview{
		Requested:  batch.Requested,
		Evaluated:  len(batch.Snapshots),
		Degraded:   batch.Degraded,
		Suppressed: report.Suppressed,
		Balance:    o.ledger.Balance(),
		At:         o.timeNow(),
	}
	digest.Overview = report.Overview
	if !digest.Empty() {
		o.notifier.NotifySignals(ctx, digest)
	}

	metrics.CyclesTotal.WithLabelValues(fmt.Sprint(batch.Degraded)).Inc()
	metrics.Balance.Set(report.Overview.Balance)
	o.logger.Info("Cycle complete",
		zap.Int("evaluated", report.Overview.Evaluated),
		zap.Int("requested", report.Overview.Requested),
		zap.Bool("degraded", batch.Degraded),
		zap.Int("longs", len(report.Detection.Longs)),
		zap.Int("shorts", len(report.Detection.Shorts)),
		zap.Int("spikes", len(report.Detection.Spikes)),
		zap.Int("accepted", len(report.Accepted)),
		zap.Int("suppressed", report.Suppressed),
		zap.Int("trades", len(report.Trades)),
		zap.Float64("balance", report.Overview.Balance))
	return report
}

// OnPrice runs exit management for a single live price update.
func (o *Orchestrator) OnPrice(ctx context.Context, symbol string, price float64) error {
	if price <= 0 || !o.ledger.HasPosition(symbol) {
		return nil
	}
	var report CycleReport
	return o.manageExit(ctx, symbol, price, &report)
}

func (o *Orchestrator) admit(ctx context.Context, key string) bool {
	if o.cfg.MarkOn == config.MarkOnExecution {
		return o.cooldown.MayNotify(ctx, key)
	}
	return o.cooldown.TryAcquire(ctx, key)
}

// closeOnOpposite fully closes the symbol's position when c points the other
// way. It reports whether it handled the candidate; the error is a ledger
// failure.
func (o *Orchestrator) closeOnOpposite(ctx context.Context, c domain.Candidate, key string, report *CycleReport) (bool, error) {
	unlock := o.symbols.Lock(c.Symbol)
	defer unlock()

	pos, open := o.ledger.Position(c.Symbol)
	if !open || !pos.Side.Opposite(c.Kind) {
		return false, nil
	}
	rec, err := o.ledger.Close(ctx, c.Symbol, c.LastPrice, "opposite "+string(c.Kind)+" signal", 1)
	if err != nil {
		o.record(ctx, c, domain.OutcomePass, "close failed: "+err.Error(), report)
		return true, err
	}
	o.record(ctx, c, domain.OutcomeClose, fmt.Sprintf("opposite signal closed %s, pnl %.4f", pos.Side, rec.PnL), report)
	o.executed(ctx, key)
	o.tradeClosed(ctx, rec, 1, report)
	return true, nil
}

// decide handles one accepted candidate under its symbol lock. The returned
// error is a ledger failure; filter failures degrade to PASS.
func (o *Orchestrator) decide(ctx context.Context, c domain.Candidate, key string, report *CycleReport) error {
	unlock := o.symbols.Lock(c.Symbol)
	defer unlock()

	if o.ledger.HasPosition(c.Symbol) {
		o.record(ctx, c, domain.OutcomePass, "position already open", report)
		return nil
	}

	verdict, err := o.filter.Evaluate(ctx, c)
	if err != nil {
		o.logger.Warn("Strategy filter failed, passing", zap.String("symbol", c.Symbol), zap.Error(err))
		verdict = domain.Verdict{Outcome: domain.OutcomePass, Reason: "filter unavailable"}
	}
	if verdict.Outcome != domain.OutcomeEnter {
		o.record(ctx, c, domain.OutcomePass, verdict.Reason, report)
		return nil
	}

	amount := positionAmount(o.sizer.SizeUSD(verdict.Confidence), o.cfg.Leverage, c.LastPrice)
	if amount <= 0 {
		o.record(ctx, c, domain.OutcomePass, "no position size", report)
		return nil
	}
	side := c.Kind.Side()
	tp, sl := o.exitLevels(side, c.LastPrice)
	opened, err := o.ledger.Open(ctx, domain.OpenRequest{
		Symbol:     c.Symbol,
		Side:       side,
		EntryPrice: c.LastPrice,
		Amount:     amount,
		TakeProfit: tp,
		StopLoss:   sl,
		Leverage:   o.cfg.Leverage,
	})
	if err != nil {
		o.record(ctx, c, domain.OutcomePass, "open failed: "+err.Error(), report)
		return err
	}
	o.record(ctx, c, domain.OutcomeEnter, verdict.Reason, report)
	o.executed(ctx, key)

	report.Opened = append(report.Opened, opened)
	metrics.TradesTotal.WithLabelValues(string(domain.TradeOpened)).Inc()
	o.notifier.NotifyTrade(ctx, domain.TradeEvent{
		Action:  domain.TradeOpened,
		Symbol:  opened.Symbol,
		Side:    opened.Side,
		Price:   opened.EntryPrice,
		Amount:  opened.Amount,
		Reason:  verdict.Reason,
		Balance: o.ledger.Balance(),
		At:      opened.OpenedAt,
	})
	return nil
}

// manageExit closes on a stop hit, trims once on take-profit and trails the
// stop of an open position.
func (o *Orchestrator) manageExit(ctx context.Context, symbol string, price float64, report *CycleReport) error {
	unlock := o.symbols.Lock(symbol)
	defer unlock()

	pos, ok := o.ledger.Position(symbol)
	if !ok {
		return nil
	}

	if stopHit(pos, price) {
		rec, err := o.ledger.Close(ctx, symbol, price, "stop loss", 1)
		if err != nil {
			return err
		}
		o.tradeClosed(ctx, rec, 1, report)
		return nil
	}

	if !pos.PartialTaken && targetHit(pos, price) {
		portion := o.cfg.Exits.TakeProfitPortion
		rec, err := o.ledger.Close(ctx, symbol, price, "take profit", portion)
		if err != nil {
			return err
		}
		o.tradeClosed(ctx, rec, portion, report)
		if portion >= 1 {
			return nil
		}
	}

	if o.cfg.Exits.TrailPct > 0 {
		if _, err := o.ledger.TrailStop(ctx, symbol, price, o.cfg.Exits.TrailPct); err != nil && !errors.Is(err, domain.ErrNoPosition) {
			return err
		}
	}
	return nil
}

func stopHit(pos domain.Position, price float64) bool {
	if pos.StopLoss <= 0 {
		return false
	}
	if pos.Side == domain.SideLong {
		return price <= pos.StopLoss
	}
	return price >= pos.StopLoss
}

func targetHit(pos domain.Position, price float64) bool {
	if pos.TakeProfit <= 0 {
		return false
	}
	if pos.Side == domain.SideLong {
		return price >= pos.TakeProfit
	}
	return price <= pos.TakeProfit
}

func (o *Orchestrator) exitLevels(side domain.Side, price float64) (tp, sl float64) {
	x := o.cfg.Exits
	if side == domain.SideLong {
		if x.TakeProfitPct > 0 {
			tp = price * (1 + x.TakeProfitPct)
		}
		if x.StopLossPct > 0 {
			sl = price * (1 - x.StopLossPct)
		}
		return tp, sl
	}
	if x.TakeProfitPct > 0 {
		tp = price * (1 - x.TakeProfitPct)
	}
	if x.StopLossPct > 0 {
		sl = price * (1 + x.StopLossPct)
	}
	return tp, sl
}

func (o *Orchestrator) executed(ctx context.Context, key string) {
	if o.cfg.MarkOn != config.MarkOnExecution {
		return
	}
	if err := o.cooldown.MarkNotified(ctx, key, o.timeNow()); err != nil {
		o.logger.Warn("Failed to mark cooldown after execution", zap.String("key", key), zap.Error(err))
	}
}

func (o *Orchestrator) tradeClosed(ctx context.Context, rec domain.TradeRecord, portion float64, report *CycleReport) {
	action := domain.TradeClosed
	if portion < 1 {
		action = domain.TradeTrimmed
	}
	report.Trades = append(report.Trades, rec)
	metrics.TradesTotal.WithLabelValues(string(action)).Inc()
	o.notifier.NotifyTrade(ctx, domain.TradeEvent{
		Action:  action,
		Symbol:  rec.Symbol,
		Side:    rec.Side,
		Price:   rec.ExitPrice,
		Amount:  rec.AmountClosed,
		PnL:     rec.PnL,
		Reason:  rec.Reason,
		Balance: o.ledger.Balance(),
		At:      rec.ClosedAt,
	})
}

func (o *Orchestrator) record(ctx context.Context, c domain.Candidate, outcome domain.Outcome, reason string, report *CycleReport) {
	d := domain.Decision{
		ID:         ulid.Make().String(),
		Timestamp:  o.timeNow(),
		Symbol:     c.Symbol,
		SignalKind: c.Kind,
		Outcome:    outcome,
		Reason:     reason,
	}
	report.Decisions = append(report.Decisions, d)
	metrics.DecisionsTotal.WithLabelValues(string(outcome)).Inc()
	if o.decisions == nil {
		return
	}
	if err := o.decisions.SaveDecision(ctx, d); err != nil {
		o.logger.Warn("Failed to save decision", zap.String("symbol", c.Symbol), zap.Error(err))
	}
}
