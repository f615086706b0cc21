package predictor

import (
	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/features"
	"github.com/o2csim/o2csim/pkg/vocab"
)

// FallbackVersion identifies rule-based predictions.
const FallbackVersion = "rules-v1"

// Rule weights. Each added or removed step relative to the baseline costs
// StepPenalty of every KPI: percentages shrink by the factor, days and cost
// grow by its inverse.
const (
	StepPenalty   = 0.02
	MinStepFactor = 0.5
)

// outcomeRule shifts KPIs in physical units when an outcome flag is set.
type outcomeRule struct {
	outcome int
	delta   model.KPIValues
}

var outcomeRules = []outcomeRule{
	{features.OutcomeHasRejection, model.KPIValues{-25, 12, -20, -15, 8}},
	{features.OutcomeHasCancellation, model.KPIValues{-25, 12, -20, -15, 8}},
	{features.OutcomeHasReturn, model.KPIValues{-8, 4, -6, -3, 12}},
}

// RulePredictor serves heuristic predictions when no artifact is available.
type RulePredictor struct {
	baseline vocab.BaselineReference
	ranges   [model.NumKPIs]KPIRange
}

// NewRulePredictor creates a fallback predictor anchored on ref.
func NewRulePredictor(ref vocab.BaselineReference) *RulePredictor {
	return &RulePredictor{baseline: ref, ranges: DefaultKPIRanges}
}

// Predict applies the step factor and outcome penalties to the baseline KPIs.
func (p *RulePredictor) Predict(g model.ProcessGraph, v *features.Vector) (model.KPIValues, error) {
	added, removed := StepDiff(p.baseline.Activities, g.Activities)
	factor := 1 - StepPenalty*float64(added+removed)
	if factor < MinStepFactor {
		factor = MinStepFactor
	}

	out := p.baseline.KPIs
	for _, k := range model.AllKPIs {
		if k.HigherIsBetter() {
			out[k] *= factor
		} else {
			out[k] /= factor
		}
	}

	for _, r := range outcomeRules {
		if v.Outcome(r.outcome) == 0 {
			continue
		}
		for _, k := range model.AllKPIs {
			out[k] += r.delta[k]
		}
	}

	for _, k := range model.AllKPIs {
		out[k] = p.ranges[k].Clamp(out[k])
	}
	return out, nil
}

// Degraded is always true for the rule-based fallback.
func (p *RulePredictor) Degraded() bool { return true }

// Version returns FallbackVersion.
func (p *RulePredictor) Version() string { return FallbackVersion }

// StepDiff compares activity multisets case-insensitively and returns how
// many occurrences were added to and removed from base.
func StepDiff(base, activities []string) (added, removed int) {
	counts := make(map[string]int, len(base))
	for _, a := range base {
		counts[vocab.Normalize(a)]++
	}
	for _, a := range activities {
		counts[vocab.Normalize(a)]--
	}
	for _, c := range counts {
		if c > 0 {
			removed += c
		} else {
			added -= c
		}
	}
	return added, removed
}
