package score

import (
	"math"

	"github.com/ppiankov/credence/internal/model"
)

const (
	// modifierFloor is the confidence modifier at zero average confidence
	modifierFloor = 0.8
	// modifierSwing is how much average confidence can add to the floor
	modifierSwing = 0.2

	mediumScoreThreshold = 80
	highScoreThreshold   = 50
)

// Scorer reduces verification results to trust metrics.
// It holds no state; Calculate is a pure function of its input.
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Breakdown exposes the intermediate values behind a score
type Breakdown struct {
	BaseCredibility    float64 `json:"base_credibility"`
	ConfidenceModifier float64 `json:"confidence_modifier"`
	AvgConfidence      float64 `json:"avg_confidence"` // 0..1, unrounded
	RawScore           float64 `json:"raw_score"`
	Formula            string  `json:"formula"`
}

// Calculate aggregates verification results into trust metrics
func (s *Scorer) Calculate(results []model.VerificationResult) model.TrustMetrics {
	if len(results) == 0 {
		// No claims means nothing was contradicted
		return model.TrustMetrics{RiskLevel: model.RiskLow}
	}

	verified, partial, unsupported := countByStatus(results)
	b := s.Explain(results)
	score := clampPercent(roundHalfUp(b.RawScore))

	return model.TrustMetrics{
		Score:            score,
		VerifiedCount:    verified,
		PartialCount:     partial,
		UnsupportedCount: unsupported,
		TotalClaims:      len(results),
		AvgConfidence:    clampPercent(roundHalfUp(b.AvgConfidence * 100)),
		RiskLevel:        riskLevel(score, unsupported),
	}
}

// Explain returns the unrounded components of the score
func (s *Scorer) Explain(results []model.VerificationResult) Breakdown {
	b := Breakdown{
		Formula: "round(((verified*1.0 + partial*0.5 + unsupported*0.0) / total) * (0.8 + 0.2*avg_confidence) * 100)",
	}
	if len(results) == 0 {
		return b
	}

	total := float64(len(results))
	var weighted, confidence float64
	for _, r := range results {
		weighted += r.Status.Weight()
		confidence += r.Confidence
	}

	b.AvgConfidence = confidence / total
	b.BaseCredibility = weighted / total
	b.ConfidenceModifier = modifierFloor + modifierSwing*b.AvgConfidence
	b.RawScore = b.BaseCredibility * b.ConfidenceModifier * 100
	return b
}

// riskLevel evaluates the High condition first so it dominates Medium
func riskLevel(score, unsupported int) model.RiskLevel {
	switch {
	case unsupported > 1 || score < highScoreThreshold:
		return model.RiskHigh
	case unsupported > 0 || score < mediumScoreThreshold:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

func countByStatus(results []model.VerificationResult) (verified, partial, unsupported int) {
	for _, r := range results {
		switch r.Status {
		case model.ClassificationVerified:
			verified++
		case model.ClassificationPartial:
			partial++
		case model.ClassificationUnsupported:
			unsupported++
		}
	}
	return verified, partial, unsupported
}

// roundHalfUp matches the rounding used by the web client for non-negative values
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
