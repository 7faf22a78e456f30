package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_signal_desk/internal/domain"
	"github.com/vitos/crypto_signal_desk/internal/infrastructure/storage"
	"github.com/vitos/crypto_signal_desk/internal/usecase"
	"go.uber.org/zap"
)

type fakeStream bool

func (f fakeStream) Connected() bool { return bool(f) }

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	ledger := usecase.NewLedger(1000, store, zap.NewNop())

	_, err := ledger.Open(ctx, domain.OpenRequest{Symbol: "BTCUSDT", Side: domain.SideLong, EntryPrice: 100, Amount: 1, Leverage: 1})
	require.NoError(t, err)
	_, err = ledger.Close(ctx, "BTCUSDT", 110, "take profit", 1)
	require.NoError(t, err)
	_, err = ledger.Open(ctx, domain.OpenRequest{Symbol: "ETHUSDT", Side: domain.SideShort, EntryPrice: 50, Amount: 2, Leverage: 1})
	require.NoError(t, err)

	require.NoError(t, store.SaveDecision(ctx, domain.Decision{
		ID: "D1", Timestamp: time.Now(), Symbol: "ETHUSDT", SignalKind: domain.SignalShort, Outcome: domain.OutcomeEnter,
	}))

	return NewServer(0, ledger, store, nil, fakeStream(true), zap.NewNop()), store
}

func get(t *testing.T, s *Server, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestServer_Positions(t *testing.T) {
	s, _ := newTestServer(t)

	var positions []domain.Position
	get(t, s, "/api/positions", &positions)
	require.Len(t, positions, 1)
	assert.Equal(t, "ETHUSDT", positions[0].Symbol)
	assert.Equal(t, domain.SideShort, positions[0].Side)
}

func TestServer_TradesAndStats(t *testing.T) {
	s, _ := newTestServer(t)

	var trades []domain.TradeRecord
	get(t, s, "/api/trades?limit=5", &trades)
	require.Len(t, trades, 1)
	assert.Equal(t, 10.0, trades[0].PnL)

	var stats domain.LedgerStats
	get(t, s, "/api/stats", &stats)
	assert.Equal(t, 1010.0, stats.Balance)
	assert.Equal(t, 1, stats.OpenPositions)
	assert.Equal(t, 1.0, stats.WinRate)
}

func TestServer_Decisions(t *testing.T) {
	s, _ := newTestServer(t)

	var decisions []domain.Decision
	get(t, s, "/api/decisions", &decisions)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.OutcomeEnter, decisions[0].Outcome)

	s.decisions = nil
	rec := get(t, s, "/api/decisions", &decisions)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestServer_Status(t *testing.T) {
	s, _ := newTestServer(t)

	var status statusResponse
	get(t, s, "/status", &status)
	assert.Equal(t, "ok", status.Status)
	assert.True(t, status.StreamConnected)
	assert.False(t, status.CycleRunning)
	assert.Equal(t, 1, status.OpenPositions)
}

func TestServer_Metrics(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "signaldesk_balance")
}

func TestServer_UnknownRoute(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/api/levels", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/positions", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
