package domain

import "time"

// MetricSnapshot holds one instrument's metrics for a single cycle.
// Percentages are expressed in percent (5 means +5%).
type MetricSnapshot struct {
	Symbol            string  `json:"symbol"`
	LastPrice         float64 `json:"last_price"`
	Change24h         float64 `json:"change_24h"`
	Change1h          float64 `json:"change_1h"`
	VolumeChangePct   float64 `json:"volume_change_pct"`
	Volume15mMultiple float64 `json:"volume_15m_multiple"`
	FundingRate       float64 `json:"funding_rate"`
	OpenInterest      float64 `json:"open_interest"`
}

// MetricBatch is the fully collected input of one cycle.
type MetricBatch struct {
	Snapshots   []MetricSnapshot
	Requested   int
	Degraded    bool
	CollectedAt time.Time
}

// Price returns the last price of symbol in the batch, or 0.
func (b MetricBatch) Price(symbol string) float64 {
	for _, s := range b.Snapshots {
		if s.Symbol == symbol {
			return s.LastPrice
		}
	}
	return 0
}

type SignalKind string

const (
	SignalLong  SignalKind = "LONG"
	SignalShort SignalKind = "SHORT"
	SignalSpike SignalKind = "SPIKE"
)

// Side returns the position side a signal would open.
func (k SignalKind) Side() Side {
	if k == SignalShort {
		return SideShort
	}
	return SideLong
}

// Candidate is an instrument flagged by a detection rule.
type Candidate struct {
	Symbol            string     `json:"symbol"`
	Kind              SignalKind `json:"kind"`
	LastPrice         float64    `json:"last_price"`
	Change24h         float64    `json:"change_24h"`
	Change1h          float64    `json:"change_1h"`
	VolumeChangePct   float64    `json:"volume_change_pct"`
	Volume15mMultiple float64    `json:"volume_15m_multiple"`
	FundingRate       float64    `json:"funding_rate"`
	OpenInterest      float64    `json:"open_interest"`
	Reason            string     `json:"reason"`
}

// CooldownEntry is the single row kept per notification key.
type CooldownEntry struct {
	Key            string
	LastNotifiedAt time.Time
}
