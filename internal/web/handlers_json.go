package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/vitos/crypto_signal_desk/internal/domain"
	"go.uber.org/zap"
)

const defaultListLimit = 100

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// limitParam reads ?limit=, falling back to the default on anything invalid.
func limitParam(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.ledger.Positions())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades := s.ledger.Trades()
	limit := limitParam(r)

	// newest first
	out := make([]domain.TradeRecord, 0, min(limit, len(trades)))
	for i := len(trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, trades[i])
	}
	s.writeJSON(w, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.ledger.Stats())
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if s.decisions == nil {
		s.writeJSON(w, []domain.Decision{})
		return
	}
	decisions, err := s.decisions.ListDecisions(r.Context(), limitParam(r))
	if err != nil {
		s.logger.Error("Failed to list decisions", zap.Error(err))
		http.Error(w, "Failed to list decisions", http.StatusInternalServerError)
		return
	}
	if decisions == nil {
		decisions = []domain.Decision{}
	}
	s.writeJSON(w, decisions)
}

type statusResponse struct {
	Status          string  `json:"status"`
	Uptime          string  `json:"uptime"`
	CycleRunning    bool    `json:"cycle_running"`
	StreamConnected bool    `json:"stream_connected"`
	OpenPositions   int     `json:"open_positions"`
	Balance         float64 `json:"balance"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.ledger.Stats()
	resp := statusResponse{
		Status:        "ok",
		Uptime:        time.Since(s.started).Truncate(time.Second).String(),
		OpenPositions: stats.OpenPositions,
		Balance:       stats.Balance,
	}
	if s.scheduler != nil {
		resp.CycleRunning = s.scheduler.Running()
	}
	if s.stream != nil {
		resp.StreamConnected = s.stream.Connected()
	}
	s.writeJSON(w, resp)
}
