package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite reports whether a signal points against this side.
func (s Side) Opposite(kind SignalKind) bool {
	switch s {
	case SideLong:
		return kind == SignalShort
	case SideShort:
		return kind == SignalLong
	}
	return false
}

// Position represents an open paper position. At most one exists per symbol.
type Position struct {
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	EntryPrice   float64   `json:"entry_price"`
	Amount       float64   `json:"amount"`
	TakeProfit   float64   `json:"take_profit"`
	StopLoss     float64   `json:"stop_loss"`
	Leverage     int       `json:"leverage"`
	OpenedAt     time.Time `json:"opened_at"`
	PartialTaken bool      `json:"partial_taken"`
}

// OpenRequest carries the caller-supplied parameters of a new position.
type OpenRequest struct {
	Symbol     string
	Side       Side
	EntryPrice float64
	Amount     float64
	TakeProfit float64
	StopLoss   float64
	Leverage   int
}

// TradeRecord is written once per close or partial close and never mutated.
type TradeRecord struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	EntryPrice   float64   `json:"entry_price"`
	ExitPrice    float64   `json:"exit_price"`
	AmountClosed float64   `json:"amount_closed"`
	PnL          float64   `json:"pnl"`
	Reason       string    `json:"reason"`
	ClosedAt     time.Time `json:"closed_at"`
}

type LedgerStats struct {
	Balance       float64 `json:"balance"`
	RealizedPnL   float64 `json:"realized_pnl"`
	OpenPositions int     `json:"open_positions"`
	Trades        int     `json:"trades"`
	WinRate       float64 `json:"win_rate"`
	RiskReward    float64 `json:"risk_reward"`
}
