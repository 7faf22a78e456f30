package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vitos/crypto_signal_desk/internal/domain"
	"github.com/vitos/crypto_signal_desk/internal/infrastructure/metrics"
	"github.com/vitos/crypto_signal_desk/internal/usecase"
	"go.uber.org/zap"
)

// StreamStatus reports on the live price feed.
type StreamStatus interface {
	Connected() bool
}

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	ledger    *usecase.Ledger
	decisions domain.DecisionRepository
	scheduler *usecase.Scheduler
	stream    StreamStatus
	started   time.Time
	logger    *zap.Logger
}

// NewServer wires the read-only HTTP API. decisions, scheduler and stream
// may be nil.
func NewServer(
	port int,
	ledger *usecase.Ledger,
	decisions domain.DecisionRepository,
	scheduler *usecase.Scheduler,
	stream StreamStatus,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		ledger:    ledger,
		decisions: decisions,
		scheduler: scheduler,
		stream:    stream,
		started:   time.Now(),
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// Ledger
	s.router.HandleFunc("GET /api/positions", s.handlePositions)
	s.router.HandleFunc("GET /api/trades", s.handleTrades)
	s.router.HandleFunc("GET /api/stats", s.handleStats)

	// Audit trail
	s.router.HandleFunc("GET /api/decisions", s.handleDecisions)

	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.Handle("GET /metrics", metrics.Handler())
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
