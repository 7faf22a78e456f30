// Package metrics exposes Prometheus collectors for the signal desk.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signaldesk_cycles_total", Help: "Completed decision cycles"},
		[]string{"degraded"},
	)
	CyclesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "signaldesk_cycles_skipped_total", Help: "Triggers skipped because a cycle was still running"},
	)
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "signaldesk_cycle_duration_seconds", Help: "Wall time of a full collect and decide cycle"},
	)
	CandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signaldesk_candidates_total", Help: "Detector candidates by kind"},
		[]string{"kind"},
	)
	SuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signaldesk_suppressed_total", Help: "Candidates dropped by the cooldown"},
		[]string{"kind"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signaldesk_decisions_total", Help: "Decision records by outcome"},
		[]string{"outcome"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signaldesk_trades_total", Help: "Ledger mutations by action"},
		[]string{"action"},
	)
	CooldownStorageErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "signaldesk_cooldown_storage_errors_total", Help: "Cooldown lookups that failed closed"},
	)
	Balance = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "signaldesk_balance", Help: "Ledger balance"},
	)
)

func init() {
	prometheus.MustRegister(
		CyclesTotal, CyclesSkipped, CycleDuration,
		CandidatesTotal, SuppressedTotal, DecisionsTotal, TradesTotal,
		CooldownStorageErrors, Balance,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
