package domain

import "time"

type Outcome string

const (
	OutcomeEnter Outcome = "ENTER"
	OutcomePass  Outcome = "PASS"
	OutcomeClose Outcome = "CLOSE"
)

// Decision is the audit record of one evaluated candidate.
type Decision struct {
	ID         string     `json:"id"`
	Timestamp  time.Time  `json:"timestamp"`
	Symbol     string     `json:"symbol"`
	SignalKind SignalKind `json:"signal_kind"`
	Outcome    Outcome    `json:"outcome"`
	Reason     string     `json:"reason"`
}

// Verdict is what a strategy filter returns for a candidate.
type Verdict struct {
	Outcome    Outcome
	Confidence float64 // 0..1
	Reason     string
}

// Overview annotates a signal digest with how much of the universe was seen.
type Overview struct {
	Requested  int       `json:"requested"`
	Evaluated  int       `json:"evaluated"`
	Degraded   bool      `json:"degraded"`
	Suppressed int       `json:"suppressed"`
	Balance    float64   `json:"balance"`
	At         time.Time `json:"at"`
}

// SignalDigest is the per-cycle notification payload.
type SignalDigest struct {
	Longs    []Candidate
	Shorts   []Candidate
	Spikes   []Candidate
	Overview Overview
}

// Empty reports whether the digest carries no candidates.
func (d SignalDigest) Empty() bool {
	return len(d.Longs)+len(d.Shorts)+len(d.Spikes) == 0
}

type TradeAction string

const (
	TradeOpened  TradeAction = "OPENED"
	TradeClosed  TradeAction = "CLOSED"
	TradeTrimmed TradeAction = "TRIMMED"
)

// TradeEvent is emitted whenever the ledger opens, trims or closes a position.
type TradeEvent struct {
	Action  TradeAction
	Symbol  string
	Side    Side
	Price   float64
	Amount  float64
	PnL     float64
	Reason  string
	Balance float64
	At      time.Time
}
