// Package confidence scores how far a scenario sits from the data the
// predictor was trained on. The score is formula-based, not learned.
package confidence

import (
	"math"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/features"
	"github.com/o2csim/o2csim/pkg/vocab"
)

// Weights are the tunable constants of the score.
type Weights struct {
	// UnknownPenalty is subtracted per out-of-vocabulary activity occurrence.
	UnknownPenalty float64 `yaml:"unknown_penalty" json:"unknown_penalty"`
	// CompletenessPenalty scales |completeness_ratio - 1|.
	CompletenessPenalty float64 `yaml:"completeness_penalty" json:"completeness_penalty"`
	// VariantBonus is added when the sequence is a known historical variant.
	VariantBonus float64 `yaml:"variant_bonus" json:"variant_bonus"`
	// Baseline is the fixed score of a baseline shortcut.
	Baseline float64 `yaml:"baseline" json:"baseline"`
	// DegradedFactor multiplies every score produced by the fallback predictor.
	DegradedFactor float64 `yaml:"degraded_factor" json:"degraded_factor"`
}

// DefaultWeights returns the documented defaults.
func DefaultWeights() Weights {
	return Weights{
		UnknownPenalty:      0.15,
		CompletenessPenalty: 0.4,
		VariantBonus:        0.05,
		Baseline:            0.98,
		DegradedFactor:      0.6,
	}
}

// Breakdown records each term of a score.
type Breakdown struct {
	UnknownCount        int     `json:"unknown_count"`
	UnknownPenalty      float64 `json:"unknown_penalty"`
	CompletenessPenalty float64 `json:"completeness_penalty"`
	VariantBonus        float64 `json:"variant_bonus"`
	Variant             string  `json:"variant,omitempty"`
	Score               float64 `json:"score"`
}

// Estimator computes confidence scores.
type Estimator struct {
	w Weights
}

// New creates an estimator.
func New(w Weights) *Estimator {
	return &Estimator{w: w}
}

// Weights returns the estimator's weights.
func (e *Estimator) Weights() Weights { return e.w }

// Explain scores g given its encoded vector and returns every term.
func (e *Estimator) Explain(g model.ProcessGraph, v *features.Vector) Breakdown {
	var b Breakdown
	b.UnknownCount = features.CountUnknown(g.Activities)
	b.UnknownPenalty = e.w.UnknownPenalty * float64(b.UnknownCount)
	b.CompletenessPenalty = e.w.CompletenessPenalty * math.Abs(v.CompletenessRatio()-1)
	if variant, ok := vocab.MatchVariant(g.Activities); ok {
		b.Variant = variant.Name
		b.VariantBonus = e.w.VariantBonus
	}
	b.Score = clamp01(1 - b.UnknownPenalty - b.CompletenessPenalty + b.VariantBonus)
	return b
}

// Score returns the confidence for g in [0, 1].
func (e *Estimator) Score(g model.ProcessGraph, v *features.Vector) float64 {
	return e.Explain(g, v).Score
}

// BaselineScore is the fixed confidence of a baseline shortcut.
func (e *Estimator) BaselineScore() float64 {
	return clamp01(e.w.Baseline)
}

// Degrade applies the fallback discount to score.
func (e *Estimator) Degrade(score float64) float64 {
	return clamp01(score * e.w.DegradedFactor)
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
