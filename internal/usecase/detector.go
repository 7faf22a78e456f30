package usecase

import (
	"fmt"
	"math"
	"sort"

	"github.com/vitos/crypto_signal_desk/internal/config"
	"github.com/vitos/crypto_signal_desk/internal/domain"
)

// Detection holds the ranked candidates of one cycle.
type Detection struct {
	Longs  []domain.Candidate
	Shorts []domain.Candidate
	Spikes []domain.Candidate
}

// All returns every candidate in processing order: longs, shorts, spikes.
func (d Detection) All() []domain.Candidate {
	out := make([]domain.Candidate, 0, len(d.Longs)+len(d.Shorts)+len(d.Spikes))
	out = append(out, d.Longs...)
	out = append(out, d.Shorts...)
	return append(out, d.Spikes...)
}

// Detector classifies metric snapshots with threshold rules. It has no state.
type Detector struct {
	rules config.Rules
}

func NewDetector(rules config.Rules) *Detector {
	return &Detector{rules: rules}
}

func (d *Detector) Rules() config.Rules {
	return d.rules
}

// Detect applies the LONG, SHORT and SPIKE rules independently, so one
// snapshot can land in several lists. Each list is stably sorted and capped.
func (d *Detector) Detect(metrics []domain.MetricSnapshot) Detection {
	var out Detection
	for _, raw := range metrics {
		m := sanitize(raw)

		long, short, spike := d.rules.Long, d.rules.Short, d.rules.Spike
		if m.Change24h >= long.Min24h && m.Change1h >= long.Min1h && m.VolumeChangePct >= long.MinVolumePct {
			out.Longs = append(out.Longs, candidate(m, domain.SignalLong, fmt.Sprintf(
				"24h %+.2f%% ≥ %.2f%%, 1h %+.2f%% ≥ %.2f%%, vol %+.1f%% ≥ %.1f%%",
				m.Change24h, long.Min24h, m.Change1h, long.Min1h, m.VolumeChangePct, long.MinVolumePct)))
		}
		if m.Change24h <= short.Max24h && m.Change1h <= short.Max1h && m.VolumeChangePct >= short.MinVolumePct {
			out.Shorts = append(out.Shorts, candidate(m, domain.SignalShort, fmt.Sprintf(
				"24h %+.2f%% ≤ %.2f%%, 1h %+.2f%% ≤ %.2f%%, vol %+.1f%% ≥ %.1f%%",
				m.Change24h, short.Max24h, m.Change1h, short.Max1h, m.VolumeChangePct, short.MinVolumePct)))
		}
		if m.Change1h >= spike.Min1h && m.Volume15mMultiple >= spike.MinMultiple {
			out.Spikes = append(out.Spikes, candidate(m, domain.SignalSpike, fmt.Sprintf(
				"1h %+.2f%% ≥ %.2f%%, 15m vol x%.1f ≥ x%.1f",
				m.Change1h, spike.Min1h, m.Volume15mMultiple, spike.MinMultiple)))
		}
	}

	sort.SliceStable(out.Longs, func(i, j int) bool { return out.Longs[i].Change24h > out.Longs[j].Change24h })
	sort.SliceStable(out.Shorts, func(i, j int) bool { return out.Shorts[i].Change24h < out.Shorts[j].Change24h })
	sort.SliceStable(out.Spikes, func(i, j int) bool { return out.Spikes[i].Change1h > out.Spikes[j].Change1h })

	out.Longs = capped(out.Longs, d.rules.Long.Limit)
	out.Shorts = capped(out.Shorts, d.rules.Short.Limit)
	out.Spikes = capped(out.Spikes, d.rules.Spike.Limit)
	return out
}

func candidate(m domain.MetricSnapshot, kind domain.SignalKind, reason string) domain.Candidate {
	return domain.Candidate{
		Symbol:            m.Symbol,
		Kind:              kind,
		LastPrice:         m.LastPrice,
		Change24h:         m.Change24h,
		Change1h:          m.Change1h,
		VolumeChangePct:   m.VolumeChangePct,
		Volume15mMultiple: m.Volume15mMultiple,
		FundingRate:       m.FundingRate,
		OpenInterest:      m.OpenInterest,
		Reason:            reason,
	}
}

func capped(list []domain.Candidate, limit int) []domain.Candidate {
	if len(list) > limit {
		return list[:limit]
	}
	return list
}

// sanitize replaces non-finite numbers with 0 so a bad feed value can never
// satisfy or break a rule.
func sanitize(m domain.MetricSnapshot) domain.MetricSnapshot {
	m.LastPrice = finite(m.LastPrice)
	m.Change24h = finite(m.Change24h)
	m.Change1h = finite(m.Change1h)
	m.VolumeChangePct = finite(m.VolumeChangePct)
	m.Volume15mMultiple = finite(m.Volume15mMultiple)
	m.FundingRate = finite(m.FundingRate)
	m.OpenInterest = finite(m.OpenInterest)
	return m
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
