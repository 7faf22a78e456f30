package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/crypto_signal_desk/internal/config"
	"github.com/vitos/crypto_signal_desk/internal/domain"
	"github.com/vitos/crypto_signal_desk/internal/infrastructure/metrics"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// UniverseFunc resolves the symbols a cycle collects.
type UniverseFunc func(ctx context.Context) ([]string, error)

// Scheduler triggers collect-and-decide cycles on an interval. Cycles never
// overlap: a trigger that fires while one is running is skipped.
type Scheduler struct {
	collector    domain.Collector
	orchestrator *Orchestrator
	cooldown     *Cooldown
	universe     UniverseFunc
	interval     time.Duration
	budget       time.Duration
	logger       *zap.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewScheduler(
	collector domain.Collector,
	orchestrator *Orchestrator,
	cooldown *Cooldown,
	universe UniverseFunc,
	cfg config.Scheduler,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		collector:    collector,
		orchestrator: orchestrator,
		cooldown:     cooldown,
		universe:     universe,
		interval:     cfg.Interval,
		budget:       cfg.CycleBudget,
		logger:       logger,
	}
}

// Start runs a cycle immediately and then on every tick until ctx is done.
// It returns once the in-flight cycle, if any, has finished.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting scheduler", zap.Duration("interval", s.interval), zap.Duration("budget", s.budget))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

// trigger starts a cycle in the background unless one is still running.
func (s *Scheduler) trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		metrics.CyclesSkipped.Inc()
		s.logger.Warn("Previous cycle still running, skipping trigger")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.RunOnce(ctx)
	}()
	return true
}

// RunOnce collects a batch within the cycle budget and evaluates it. A
// collection that runs out of budget yields a degraded batch, not an error.
func (s *Scheduler) RunOnce(ctx context.Context) CycleReport {
	start := time.Now()
	defer func() { metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()

	collectCtx := ctx
	if s.budget > 0 {
		var cancel context.CancelFunc
		collectCtx, cancel = context.WithTimeout(ctx, s.budget)
		defer cancel()
	}

	var batch domain.MetricBatch
	symbols, err := s.universe(collectCtx)
	if err != nil {
		s.logger.Error("Failed to resolve universe", zap.Error(err))
		batch.Degraded = true
	} else {
		batch, err = s.collector.Collect(collectCtx, symbols)
		if err != nil {
			s.logger.Error("Collection failed, running degraded cycle", zap.Error(err))
			batch.Degraded = true
		}
	}

	report := s.orchestrator.RunCycle(ctx, batch)

	if s.cooldown != nil {
		if n, err := s.cooldown.Prune(ctx); err != nil {
			s.logger.Warn("Failed to prune cooldowns", zap.Error(err))
		} else if n > 0 {
			s.logger.Debug("Pruned cooldowns", zap.Int64("rows", n))
		}
	}
	return report
}

// Running reports whether a cycle is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}
