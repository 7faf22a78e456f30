package notify

import (
	"context"

	"github.com/vitos/crypto_signal_desk/internal/domain"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifySignals(ctx context.Context, digest domain.SignalDigest) {
	n.logger.Info("Signals",
		zap.Int("longs", len(digest.Longs)),
		zap.Int("shorts", len(digest.Shorts)),
		zap.Int("spikes", len(digest.Spikes)),
		zap.Bool("degraded", digest.Overview.Degraded),
		zap.String("digest", FormatDigest(digest)))
}

func (n *LogNotifier) NotifyTrade(ctx context.Context, event domain.TradeEvent) {
	n.logger.Info("Trade",
		zap.String("action", string(event.Action)),
		zap.String("symbol", event.Symbol),
		zap.String("side", string(event.Side)),
		zap.Float64("price", event.Price),
		zap.Float64("amount", event.Amount),
		zap.Float64("pnl", event.PnL),
		zap.Float64("balance", event.Balance),
		zap.String("reason", event.Reason))
}

// Multi fans a notification out to every notifier in order.
type Multi []domain.Notifier

func (m Multi) NotifySignals(ctx context.Context, digest domain.SignalDigest) {
	for _, n := range m {
		n.NotifySignals(ctx, digest)
	}
}

func (m Multi) NotifyTrade(ctx context.Context, event domain.TradeEvent) {
	for _, n := range m {
		n.NotifyTrade(ctx, event)
	}
}
