// Package predictor maps encoded process scenarios to KPI predictions.
//
// A Model performs deterministic forward inference over a trained network
// loaded from an Artifact. A RulePredictor serves documented heuristic
// predictions when no artifact could be loaded; every result it produces is
// reported as degraded.
package predictor

import (
	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/features"
)

// Predictor produces denormalized, clamped KPI values for one scenario.
// Implementations are immutable after construction and safe for concurrent use.
type Predictor interface {
	// Predict returns physical KPI values. A CodeNumericInference error is
	// returned when the computation produced non-finite output.
	Predict(g model.ProcessGraph, v *features.Vector) (model.KPIValues, error)
	// Degraded reports whether the predictor is the rule-based fallback.
	Degraded() bool
	// Version identifies the model that produced the predictions.
	Version() string
}

// KPIRange describes how one normalized output maps to physical units:
// value = normalized*Scale + Offset, clamped to [Min, Max].
type KPIRange struct {
	Scale  float64
	Offset float64
	Min    float64
	Max    float64
}

// Denormalize maps n to physical units without clamping.
func (r KPIRange) Denormalize(n float64) float64 {
	return n*r.Scale + r.Offset
}

// Clamp bounds v to [Min, Max].
func (r KPIRange) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// DefaultKPIRanges are the min-max target ranges used in training.
var DefaultKPIRanges = [model.NumKPIs]KPIRange{
	model.OnTimeDelivery:       {Scale: 100, Min: 0, Max: 100},
	model.DaysSalesOutstanding: {Scale: 90, Min: 0, Max: 90},
	model.OrderAccuracy:        {Scale: 100, Min: 0, Max: 100},
	model.InvoiceAccuracy:      {Scale: 100, Min: 0, Max: 100},
	model.AvgCostDelivery:      {Scale: 100, Min: 0, Max: 100},
}
