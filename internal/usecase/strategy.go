package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/vitos/crypto_signal_desk/internal/config"
	"github.com/vitos/crypto_signal_desk/internal/domain"
	"go.uber.org/zap"
)

// RuleFilter scores a candidate and decides ENTER or PASS.
//
// When open interest is known the full strategy runs, which also rejects
// crowded funding and thin markets. Otherwise a simplified score is used
// at a discount. A model handle, when given, is blended into the score.
type RuleFilter struct {
	cfg    config.Strategy
	scorer domain.Scorer
	logger *zap.Logger
}

func NewRuleFilter(cfg config.Strategy, scorer domain.Scorer, logger *zap.Logger) *RuleFilter {
	return &RuleFilter{cfg: cfg, scorer: scorer, logger: logger}
}

func (f *RuleFilter) Evaluate(ctx context.Context, c domain.Candidate) (domain.Verdict, error) {
	if c.LastPrice <= 0 {
		return domain.Verdict{Outcome: domain.OutcomePass, Reason: "no price"}, nil
	}

	confidence := heuristicScore(c)
	mode := "full"
	if c.OpenInterest <= 0 {
		mode = "simplified"
		confidence *= 0.8
	} else {
		if reason := f.crowded(c); reason != "" {
			return domain.Verdict{Outcome: domain.OutcomePass, Confidence: confidence, Reason: reason}, nil
		}
	}

	if f.scorer != nil {
		score, err := f.scorer.Score(features(c))
		if err != nil {
			f.logger.Warn("Model scoring failed, using rule score", zap.String("symbol", c.Symbol), zap.Error(err))
		} else {
			confidence = (confidence + clamp01(float64(score))) / 2
			mode += "+model"
		}
	}

	v := domain.Verdict{Confidence: confidence}
	if confidence >= f.cfg.MinConfidence {
		v.Outcome = domain.OutcomeEnter
		v.Reason = fmt.Sprintf("%s strategy confidence %.2f >= %.2f", mode, confidence, f.cfg.MinConfidence)
	} else {
		v.Outcome = domain.OutcomePass
		v.Reason = fmt.Sprintf("%s strategy confidence %.2f < %.2f", mode, confidence, f.cfg.MinConfidence)
	}
	return v, nil
}

func (f *RuleFilter) crowded(c domain.Candidate) string {
	if f.cfg.MinOpenInterest > 0 && c.OpenInterest*c.LastPrice < f.cfg.MinOpenInterest {
		return fmt.Sprintf("open interest %.0f below %.0f", c.OpenInterest*c.LastPrice, f.cfg.MinOpenInterest)
	}
	if f.cfg.MaxFundingRate > 0 {
		switch c.Kind.Side() {
		case domain.SideLong:
			if c.FundingRate > f.cfg.MaxFundingRate {
				return fmt.Sprintf("funding %.4f%% crowded long", c.FundingRate*100)
			}
		case domain.SideShort:
			if c.FundingRate < -f.cfg.MaxFundingRate {
				return fmt.Sprintf("funding %.4f%% crowded short", c.FundingRate*100)
			}
		}
	}
	return ""
}

// heuristicScore weighs short-term momentum, volume expansion and the daily
// trend into a 0..1 confidence.
func heuristicScore(c domain.Candidate) float64 {
	momentum := clamp01(math.Abs(c.Change1h) / 5)
	trend := clamp01(math.Abs(c.Change24h) / 20)
	volume := clamp01(c.VolumeChangePct / 200)
	if c.Kind == domain.SignalSpike {
		volume = clamp01(c.Volume15mMultiple / 10)
	}
	return 0.4*momentum + 0.3*volume + 0.3*trend
}

func features(c domain.Candidate) []float32 {
	return []float32{
		float32(c.Change24h),
		float32(c.Change1h),
		float32(c.VolumeChangePct),
		float32(c.Volume15mMultiple),
		float32(c.FundingRate),
		float32(math.Log1p(math.Max(0, c.OpenInterest*c.LastPrice))),
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
