package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/vitos/crypto_signal_desk/internal/domain"
	"go.uber.org/zap"
)

const (
	colorGreen  = 0x2ecc71
	colorRed    = 0xe74c3c
	colorYellow = 0xf1c40f
	colorBlue   = 0x3498db

	// Discord rejects embed descriptions longer than this.
	maxDescription = 4096
)

// DiscordNotifier posts embeds to a Discord webhook. Delivery failures are
// logged and dropped.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *zap.Logger
}

func NewDiscordNotifier(webhookURL string, logger *zap.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (d *DiscordNotifier) NotifySignals(ctx context.Context, digest domain.SignalDigest) {
	color := colorBlue
	if digest.Overview.Degraded {
		color = colorYellow
	}
	title := fmt.Sprintf("Signals: %d long, %d short, %d spike",
		len(digest.Longs), len(digest.Shorts), len(digest.Spikes))
	if err := d.send(ctx, title, FormatDigest(digest), color, digest.Overview.At); err != nil {
		d.logger.Warn("Failed to deliver signal digest", zap.Error(err))
	}
}

func (d *DiscordNotifier) NotifyTrade(ctx context.Context, event domain.TradeEvent) {
	color := colorGreen
	if event.Action != domain.TradeOpened && event.PnL < 0 {
		color = colorRed
	}
	title := fmt.Sprintf("%s %s", event.Action, event.Symbol)
	if err := d.send(ctx, title, FormatTrade(event), color, event.At); err != nil {
		d.logger.Warn("Failed to deliver trade event",
			zap.String("symbol", event.Symbol), zap.Error(err))
	}
}

func (d *DiscordNotifier) send(ctx context.Context, title, message string, color int, at time.Time) error {
	if d.webhookURL == "" {
		return nil
	}
	message = truncate(message, maxDescription)
	if at.IsZero() {
		at = time.Now()
	}

	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       title,
				"description": message,
				"color":       color,
				"footer":      map[string]string{"text": "signal desk"},
				"timestamp":   at.UTC().Format(time.RFC3339),
			},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord returned status: %d", resp.StatusCode)
	}
	return nil
}

// truncate caps s at limit characters, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}
