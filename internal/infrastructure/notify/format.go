package notify

import (
	"fmt"
	"strings"

	"github.com/vitos/crypto_signal_desk/internal/domain"
)

// FormatDigest renders a signal digest as plain text, one section per kind.
func FormatDigest(d domain.SignalDigest) string {
	var sb strings.Builder
	writeSection(&sb, "LONG", d.Longs)
	writeSection(&sb, "SHORT", d.Shorts)
	writeSection(&sb, "SPIKE", d.Spikes)

	o := d.Overview
	fmt.Fprintf(&sb, "evaluated %d/%d", o.Evaluated, o.Requested)
	if o.Degraded {
		sb.WriteString(" (degraded)")
	}
	if o.Suppressed > 0 {
		fmt.Fprintf(&sb, ", %d suppressed", o.Suppressed)
	}
	fmt.Fprintf(&sb, ", balance %.2f", o.Balance)
	return sb.String()
}

func writeSection(sb *strings.Builder, title string, candidates []domain.Candidate) {
	if len(candidates) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s\n", title)
	for _, c := range candidates {
		fmt.Fprintf(sb, "- %s @ %g: %s\n", c.Symbol, c.LastPrice, c.Reason)
	}
	sb.WriteString("\n")
}

// FormatTrade renders a ledger event as a one-liner.
func FormatTrade(e domain.TradeEvent) string {
	switch e.Action {
	case domain.TradeOpened:
		return fmt.Sprintf("%s %s %s amount %g @ %g (%s)", e.Action, e.Side, e.Symbol, e.Amount, e.Price, e.Reason)
	default:
		return fmt.Sprintf("%s %s %s amount %g @ %g pnl %.2f balance %.2f (%s)",
			e.Action, e.Side, e.Symbol, e.Amount, e.Price, e.PnL, e.Balance, e.Reason)
	}
}
