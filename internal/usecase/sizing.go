package usecase

import "math"

// LinearSizer interpolates a USD notional between MinUSD and MaxUSD by
// confidence, clamped to [0, 1].
type LinearSizer struct {
	MinUSD float64
	MaxUSD float64
}

func (s LinearSizer) SizeUSD(confidence float64) float64 {
	if math.IsNaN(confidence) {
		confidence = 0
	}
	confidence = math.Max(0, math.Min(1, confidence))
	return s.MinUSD + (s.MaxUSD-s.MinUSD)*confidence
}

// positionAmount converts a notional into base units with a flat leverage
// multiplier.
func positionAmount(notionalUSD float64, leverage int, price float64) float64 {
	if price <= 0 || notionalUSD <= 0 {
		return 0
	}
	if leverage < 1 {
		leverage = 1
	}
	return notionalUSD * float64(leverage) / price
}
