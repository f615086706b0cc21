package predictor

import (
	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/features"
	"github.com/o2csim/o2csim/pkg/vocab"
)

// ReferenceModelVersion is the version string of ReferenceArtifact.
const ReferenceModelVersion = "reference-2024.1"

// Hidden units of the reference network.
const (
	refStopped = iota
	refReturned
	refNoApproval
	refOverlong
	refTruncated
	refDiscounted
	refBias
	refStaffing
	refWidth
)

// ReferenceArtifact builds a small hand-specified network that encodes the
// observed business effects: stopped orders, returns, a missing approval
// gate, deviation from the baseline length, discounts and staffing. Its
// outputs at the baseline reproduce the default baseline KPIs.
func ReferenceArtifact() *Artifact {
	w := make([][]float64, refWidth)
	for i := range w {
		w[i] = make([]float64, features.Dim)
	}
	b := make([]float64, refWidth)

	out := features.GroupOutcome.Offset()
	w[refStopped][out+features.OutcomeHasRejection] = 1
	w[refStopped][out+features.OutcomeHasCancellation] = 1
	w[refReturned][out+features.OutcomeHasReturn] = 1
	w[refDiscounted][out+features.OutcomeHasDiscount] = 1

	// 1 - (transitions into or out of Approve Order).
	approve, _ := vocab.IndexOf(vocab.ApproveOrder)
	adj := features.GroupAdjacency.Offset()
	for j := 0; j < vocab.Size; j++ {
		w[refNoApproval][adj+approve*vocab.Size+j] = -1
		w[refNoApproval][adj+j*vocab.Size+approve] = -1
	}
	b[refNoApproval] = 1

	w[refOverlong][out+features.OutcomeCompletenessRatio] = 1
	b[refOverlong] = -1
	w[refTruncated][out+features.OutcomeCompletenessRatio] = -1
	b[refTruncated] = 1

	b[refBias] = 1

	users := features.GroupUsers.Offset()
	for j := 0; j < features.NumUsers; j++ {
		w[refStaffing][users+j] = 1.0 / features.NumUsers
	}

	ones := make([]float64, refWidth)
	zeros := make([]float64, refWidth)
	for i := range ones {
		ones[i] = 1
	}

	a := &Artifact{
		Version:      ArtifactVersion,
		ModelVersion: ReferenceModelVersion,
		FeatureDim:   features.Dim,
		FeatureScalers: []FeatureScaler{
			{Group: features.GroupAdjacency.String()},
			{Group: features.GroupDuration.String(), Center: constant(features.GroupDuration.Len(), 0), Scale: constant(features.GroupDuration.Len(), 240)},
			{Group: features.GroupUsers.String()},
			{Group: features.GroupItemQuantities.String(), Center: constant(features.NumItems, 0), Scale: constant(features.NumItems, 10)},
			{Group: features.GroupItemAmounts.String(), Center: constant(features.NumItems, 0), Scale: constant(features.NumItems, 1000)},
			{Group: features.GroupSuppliers.String()},
			{Group: features.GroupOutcome.String()},
		},
		Layers: []LayerSpec{
			{Type: LayerDense, Weights: w, Bias: b},
			{Type: LayerBatchNorm, Mean: zeros, Var: ones, Gamma: ones, Beta: zeros},
			{Type: LayerReLU},
			{Type: LayerDropout, Rate: 0.1},
		},
	}

	heads := [model.NumKPIs][refWidth]float64{
		model.OnTimeDelivery:       {-0.25, -0.08, -0.03, -0.05, -0.05, 0, 0.798, 0},
		model.DaysSalesOutstanding: {0.15, 0.05, 0.02, 0.05, 0.03, -0.02, 0.38 / 0.9, 0},
		model.OrderAccuracy:        {-0.20, -0.06, -0.06, -0.04, -0.04, 0, 0.813, 0},
		model.InvoiceAccuracy:      {-0.15, -0.03, -0.05, -0.03, -0.03, -0.02, 0.765, 0},
		model.AvgCostDelivery:      {0.10, 0.12, 0.06, 0.05, 0.02, 0, 0.3348, 0.01},
	}
	for _, k := range model.AllKPIs {
		a.Heads = append(a.Heads, HeadSpec{KPI: k.String(), Weights: append([]float64(nil), heads[k][:]...)})
		r := DefaultKPIRanges[k]
		a.KPIs = append(a.KPIs, KPISpec{KPI: k.String(), Scale: r.Scale, Offset: r.Offset, Min: r.Min, Max: r.Max})
	}
	a.BaselineKPIs = vocab.DefaultBaselineKPIs.Map()
	return a
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
