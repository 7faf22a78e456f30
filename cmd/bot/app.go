package main

import (
	"context"
	"fmt"

	"github.com/vitos/crypto_signal_desk/internal/config"
	"github.com/vitos/crypto_signal_desk/internal/domain"
	"github.com/vitos/crypto_signal_desk/internal/infrastructure/exchange"
	"github.com/vitos/crypto_signal_desk/internal/infrastructure/logger"
	"github.com/vitos/crypto_signal_desk/internal/infrastructure/model"
	"github.com/vitos/crypto_signal_desk/internal/infrastructure/notify"
	"github.com/vitos/crypto_signal_desk/internal/infrastructure/storage"
	"github.com/vitos/crypto_signal_desk/internal/usecase"
	"go.uber.org/zap"
)

type store interface {
	domain.CooldownRepository
	domain.LedgerRepository
	domain.DecisionRepository
	Close() error
}

// app holds every wired component of one process.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	store  store
	scorer domain.Scorer

	market       *exchange.BybitAdapter
	collector    *usecase.MarketCollector
	cooldown     *usecase.Cooldown
	ledger       *usecase.Ledger
	orchestrator *usecase.Orchestrator
	scheduler    *usecase.Scheduler
}

func openStore(ctx context.Context, cfg config.Storage) (store, error) {
	switch cfg.Driver {
	case "postgres":
		return storage.NewPostgresStore(ctx, cfg.DSN)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return storage.NewSQLiteStore(cfg.Path)
	}
}

// loadBase reads config and opens logger and storage, which every command needs.
func loadBase(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init %s storage: %w", cfg.Storage.Driver, err)
	}

	a := &app{cfg: cfg, log: log, store: st}
	a.ledger = usecase.NewLedger(cfg.Ledger.StartingBalance, st, log)
	if err := a.ledger.Restore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newApp wires the full decision pipeline on top of loadBase.
func newApp(ctx context.Context, configPath string) (*app, error) {
	a, err := loadBase(ctx, configPath)
	if err != nil {
		return nil, err
	}
	cfg, log := a.cfg, a.log

	a.market = exchange.NewBybitAdapter(
		cfg.Exchange.APIKey, cfg.Exchange.APISecret,
		cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint,
		cfg.Exchange.Category, log)
	a.collector = usecase.NewMarketCollector(a.market, cfg.Exchange.Category, cfg.Collector, log)
	a.cooldown = usecase.NewCooldown(a.store, cfg.Cooldown.Window, log)

	if cfg.Model.Path != "" {
		scorer, err := model.NewONNXScorer(cfg.Model.Path, cfg.Model.Library)
		if err != nil {
			log.Warn("Model unavailable, using rule scores only", zap.String("path", cfg.Model.Path), zap.Error(err))
		} else {
			a.scorer = scorer
		}
	}
	filter := usecase.NewRuleFilter(cfg.Strategy, a.scorer, log)

	notifiers := notify.Multi{notify.NewLogNotifier(log)}
	if cfg.Notify.DiscordWebhookURL != "" {
		notifiers = append(notifiers, notify.NewDiscordNotifier(cfg.Notify.DiscordWebhookURL, log))
	}

	a.orchestrator = usecase.NewOrchestrator(
		usecase.NewDetector(cfg.Rules),
		a.cooldown,
		a.ledger,
		filter,
		usecase.LinearSizer{MinUSD: cfg.Sizing.MinUSD, MaxUSD: cfg.Sizing.MaxUSD},
		notifiers,
		a.store,
		usecase.OrchestratorConfig{
			MarkOn:   cfg.Cooldown.MarkOn,
			PerKind:  cfg.Cooldown.PerKind,
			Leverage: cfg.Ledger.Leverage,
			Exits:    cfg.Exits,
		},
		log,
	)

	universe := func(ctx context.Context) ([]string, error) {
		return a.collector.Universe(ctx, cfg.Universe)
	}
	a.scheduler = usecase.NewScheduler(a.collector, a.orchestrator, a.cooldown, universe, cfg.Scheduler, log)
	return a, nil
}

func (a *app) Close() {
	if a.scorer != nil {
		a.scorer.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close storage", zap.Error(err))
	}
	_ = a.log.Sync()
}
