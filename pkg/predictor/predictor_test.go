package predictor

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/o2csim/o2csim/internal/model"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/features"
	"github.com/o2csim/o2csim/pkg/vocab"
)

func encode(t *testing.T, activities []string) (model.ProcessGraph, *features.Vector) {
	t.Helper()
	ents, err := features.Resolve(&model.EntityAssignment{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	g := model.ProcessGraph{Activities: activities}
	v := features.NewEncoder(features.Options{}).Encode(g, ents)
	return g, &v
}

func withReturn() []string {
	out := []string{}
	for _, a := range vocab.BaselineActivities() {
		out = append(out, a)
		if a == vocab.GeneratePickList {
			out = append(out, vocab.ProcessReturnRequest)
		}
	}
	return out
}

func withoutApproval() []string {
	out := []string{}
	for _, a := range vocab.BaselineActivities() {
		if a != vocab.ApproveOrder {
			out = append(out, a)
		}
	}
	return out
}

func rejected() []string {
	return []string{vocab.ReceiveCustomerOrder, vocab.ValidateCustomerOrder, vocab.PerformCreditCheck, vocab.RejectOrder}
}

func referenceModel(t *testing.T) *Model {
	t.Helper()
	m, err := NewModel(ReferenceArtifact())
	if err != nil {
		t.Fatalf("NewModel(ReferenceArtifact()) failed: %v", err)
	}
	return m
}

func TestReferenceModel_Layers(t *testing.T) {
	m := referenceModel(t)
	want := []string{LayerDense, LayerBatchNorm, LayerReLU, LayerDropout}
	got := m.LayerNames()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("LayerNames = %v, want %v", got, want)
	}
	if m.Version() != ReferenceModelVersion || m.Degraded() {
		t.Errorf("Version/Degraded = %s/%v", m.Version(), m.Degraded())
	}
}

func TestReferenceModel_BaselineMatchesDefaults(t *testing.T) {
	m := referenceModel(t)
	g, v := encode(t, vocab.BaselineActivities())

	got, err := m.Predict(g, v)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for _, k := range model.AllKPIs {
		if math.Abs(got[k]-vocab.DefaultBaselineKPIs[k]) > 1e-9 {
			t.Errorf("%s = %v, want %v", k, got[k], vocab.DefaultBaselineKPIs[k])
		}
	}
	if m.BaselineKPIs() != vocab.DefaultBaselineKPIs {
		t.Errorf("BaselineKPIs = %v", m.BaselineKPIs())
	}
}

func TestReferenceModel_BusinessEffects(t *testing.T) {
	m := referenceModel(t)
	base := vocab.DefaultBaselineKPIs

	g, v := encode(t, withReturn())
	ret, err := m.Predict(g, v)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if ret[model.OnTimeDelivery] >= base[model.OnTimeDelivery] {
		t.Errorf("return: on-time delivery %v should drop below %v", ret[model.OnTimeDelivery], base[model.OnTimeDelivery])
	}

	g, v = encode(t, withoutApproval())
	noApproval, err := m.Predict(g, v)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if noApproval[model.AvgCostDelivery] <= base[model.AvgCostDelivery] {
		t.Errorf("no approval: cost %v should exceed %v", noApproval[model.AvgCostDelivery], base[model.AvgCostDelivery])
	}

	g, v = encode(t, rejected())
	rej, err := m.Predict(g, v)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for _, k := range model.AllKPIs {
		worse := rej[k] < base[k]
		if !k.HigherIsBetter() {
			worse = rej[k] > base[k]
		}
		if !worse {
			t.Errorf("rejected: %s = %v should be worse than %v", k, rej[k], base[k])
		}
	}
}

func TestModel_Deterministic(t *testing.T) {
	m := referenceModel(t)
	g, v := encode(t, rejected())

	a, _ := m.Predict(g, v)
	b, _ := m.Predict(g, v)
	for _, k := range model.AllKPIs {
		if math.Abs(a[k]-b[k]) > 1e-6 {
			t.Errorf("%s differs between runs: %v vs %v", k, a[k], b[k])
		}
	}
}

func TestModel_Clamps(t *testing.T) {
	a := ReferenceArtifact()
	a.Heads[model.OnTimeDelivery].Bias = 5
	a.Heads[model.AvgCostDelivery].Bias = -5
	m, err := NewModel(a)
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}

	g, v := encode(t, vocab.BaselineActivities())
	got, err := m.Predict(g, v)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got[model.OnTimeDelivery] != 100 {
		t.Errorf("on-time delivery = %v, want clamped 100", got[model.OnTimeDelivery])
	}
	if got[model.AvgCostDelivery] != 0 {
		t.Errorf("cost = %v, want clamped 0", got[model.AvgCostDelivery])
	}
}

func TestModel_NonFiniteOutput(t *testing.T) {
	a := ReferenceArtifact()
	a.Heads[model.InvoiceAccuracy].Bias = math.NaN()
	m, err := NewModel(a)
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}

	g, v := encode(t, vocab.BaselineActivities())
	_, err = m.Predict(g, v)
	if !simerrors.IsCode(err, simerrors.CodeNumericInference) {
		t.Fatalf("Predict err = %v, want %s", err, simerrors.CodeNumericInference)
	}
}

func TestBatchNormFolding(t *testing.T) {
	bn := newBatchNorm(LayerSpec{
		Mean:    []float64{1, -2},
		Var:     []float64{4, 0.25},
		Gamma:   []float64{2, 1},
		Beta:    []float64{0.5, 0},
		Epsilon: 0,
	})
	got := bn.forward([]float64{3, -1})
	// (3-1)/2*2+0.5 = 2.5, (-1+2)/0.5 = 2
	want := []float64{2.5, 2}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("bn[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestArtifactValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{"version", func(a *Artifact) { a.Version = 7 }},
		{"feature dim", func(a *Artifact) { a.FeatureDim = 416 }},
		{"unknown group", func(a *Artifact) { a.FeatureScalers[0].Group = "events" }},
		{"duplicate group", func(a *Artifact) { a.FeatureScalers[1].Group = a.FeatureScalers[0].Group }},
		{"zero scale", func(a *Artifact) { a.FeatureScalers[1].Scale[3] = 0 }},
		{"scaler length", func(a *Artifact) {
			a.FeatureScalers[1].Scale = a.FeatureScalers[1].Scale[:5]
			a.FeatureScalers[1].Center = a.FeatureScalers[1].Center[:5]
		}},
		{"dense row width", func(a *Artifact) { a.Layers[0].Weights[2] = a.Layers[0].Weights[2][:10] }},
		{"dense bias", func(a *Artifact) { a.Layers[0].Bias = a.Layers[0].Bias[:1] }},
		{"batch norm width", func(a *Artifact) { a.Layers[1].Gamma = a.Layers[1].Gamma[:2] }},
		{"unknown layer", func(a *Artifact) { a.Layers[2].Type = "softmax" }},
		{"head width", func(a *Artifact) { a.Heads[0].Weights = append(a.Heads[0].Weights, 1) }},
		{"duplicate head", func(a *Artifact) { a.Heads[1].KPI = a.Heads[0].KPI }},
		{"missing head", func(a *Artifact) { a.Heads = a.Heads[:4] }},
		{"bad range", func(a *Artifact) { a.KPIs[2].Min = 200 }},
		{"unknown baseline kpi", func(a *Artifact) { a.BaselineKPIs["nps"] = 3 }},
	}

	if err := ReferenceArtifact().Validate(); err != nil {
		t.Fatalf("reference artifact invalid: %v", err)
	}
	for _, tt := range tests {
		a := ReferenceArtifact()
		tt.mutate(a)
		err := a.Validate()
		if !simerrors.IsCode(err, simerrors.CodeArtifactInvalid) {
			t.Errorf("%s: Validate err = %v, want %s", tt.name, err, simerrors.CodeArtifactInvalid)
		}
	}
}

func TestLoad(t *testing.T) {
	var buf bytes.Buffer
	if err := ReferenceArtifact().Encode(&buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	m, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	g, v := encode(t, withReturn())
	got, _ := m.Predict(g, v)
	want, _ := referenceModel(t).Predict(g, v)
	if got != want {
		t.Errorf("loaded model predicts %v, want %v", got, want)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", "{"},
		{"missing fields", `{"version": 1}`},
		{"bad layer type", `{"version":1,"model_version":"x","feature_dim":417,"feature_scalers":[],"layers":[{"type":"conv"}],"heads":[],"kpis":[]}`},
		{"wrong dimension", `{"version":1,"model_version":"x","feature_dim":12,"feature_scalers":[],"layers":[],` +
			`"heads":[{"kpi":"on_time_delivery","weights":[]},{"kpi":"days_sales_outstanding","weights":[]},{"kpi":"order_accuracy","weights":[]},{"kpi":"invoice_accuracy","weights":[]},{"kpi":"avg_cost_delivery","weights":[]}],` +
			`"kpis":[{"kpi":"on_time_delivery","scale":1,"min":0,"max":1},{"kpi":"days_sales_outstanding","scale":1,"min":0,"max":1},{"kpi":"order_accuracy","scale":1,"min":0,"max":1},{"kpi":"invoice_accuracy","scale":1,"min":0,"max":1},{"kpi":"avg_cost_delivery","scale":1,"min":0,"max":1}]}`},
	}

	for _, tt := range tests {
		_, err := Load(strings.NewReader(tt.doc))
		if !simerrors.IsCode(err, simerrors.CodeArtifactInvalid) {
			t.Errorf("%s: Load err = %v, want %s", tt.name, err, simerrors.CodeArtifactInvalid)
		}
	}
}
