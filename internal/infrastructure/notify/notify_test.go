package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_signal_desk/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampleDigest() domain.SignalDigest {
	return domain.SignalDigest{
		Longs: []domain.Candidate{{Symbol: "BTCUSDT", LastPrice: 100, Kind: domain.SignalLong, Reason: "24h +6.0%"}},
		Overview: domain.Overview{
			Requested: 10, Evaluated: 8, Degraded: true, Suppressed: 2, Balance: 1010,
			At: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestFormatDigest(t *testing.T) {
	text := FormatDigest(sampleDigest())
	assert.Contains(t, text, "LONG\n- BTCUSDT @ 100: 24h +6.0%")
	assert.NotContains(t, text, "SHORT")
	assert.Contains(t, text, "evaluated 8/10 (degraded), 2 suppressed, balance 1010.00")
}

func TestDiscordNotifier_PostsEmbed(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewDiscordNotifier(srv.URL, zap.NewNop())
	n.NotifySignals(context.Background(), sampleDigest())

	require.NotNil(t, body)
	embeds := body["embeds"].([]any)
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]any)
	assert.Equal(t, "Signals: 1 long, 0 short, 0 spike", embed["title"])
	assert.Equal(t, float64(colorYellow), embed["color"])
	assert.Equal(t, "2025-03-01T12:00:00Z", embed["timestamp"])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	reason := strings.Repeat("1h ≥ 3%, ", 600)
	cut := truncate(reason, maxDescription)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, maxDescription, utf8.RuneCountInString(cut))
	assert.True(t, strings.HasSuffix(cut, "..."))
}

func TestDiscordNotifier_LongMessageStaysValid(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := sampleDigest()
	d.Longs[0].Reason = strings.Repeat("vol ≥ 50%", 1000)
	NewDiscordNotifier(srv.URL, zap.NewNop()).NotifySignals(context.Background(), d)

	require.NotNil(t, body)
	embed := body["embeds"].([]any)[0].(map[string]any)
	desc := embed["description"].(string)
	assert.True(t, utf8.ValidString(desc))
	assert.LessOrEqual(t, utf8.RuneCountInString(desc), maxDescription)
}

func TestDiscordNotifier_LogsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	n := NewDiscordNotifier(srv.URL, zap.New(core))
	n.NotifyTrade(context.Background(), domain.TradeEvent{
		Action: domain.TradeClosed, Symbol: "ETHUSDT", Side: domain.SideShort, PnL: -3,
	})

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Failed to deliver trade event", logs.All()[0].Message)
}

func TestDiscordNotifier_DisabledWithoutURL(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := NewDiscordNotifier("", zap.New(core))
	n.NotifySignals(context.Background(), sampleDigest())
	assert.Zero(t, logs.Len())
}

type recordingNotifier struct {
	signals int
	trades  []domain.TradeEvent
}

func (r *recordingNotifier) NotifySignals(ctx context.Context, d domain.SignalDigest) { r.signals++ }
func (r *recordingNotifier) NotifyTrade(ctx context.Context, e domain.TradeEvent) {
	r.trades = append(r.trades, e)
}

func TestMulti(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	core, logs := observer.New(zapcore.InfoLevel)
	m := Multi{a, b, NewLogNotifier(zap.New(core))}

	m.NotifySignals(context.Background(), sampleDigest())
	m.NotifyTrade(context.Background(), domain.TradeEvent{Action: domain.TradeOpened, Symbol: "BTCUSDT"})

	assert.Equal(t, 1, a.signals)
	assert.Equal(t, 1, b.signals)
	assert.Len(t, a.trades, 1)
	assert.Equal(t, 2, logs.Len())
	assert.Equal(t, "BTCUSDT", logs.FilterMessage("Trade").All()[0].ContextMap()["symbol"])
}
