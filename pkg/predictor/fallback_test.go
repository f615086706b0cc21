package predictor

import (
	"testing"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/vocab"
)

func TestStepDiff(t *testing.T) {
	base := vocab.BaselineActivities()
	tests := []struct {
		name         string
		activities   []string
		added, remov int
	}{
		{"same", vocab.BaselineActivities(), 0, 0},
		{"case insensitive", []string{"receive customer order"}, 0, 9},
		{"one added", withReturn(), 1, 0},
		{"one removed", withoutApproval(), 0, 1},
		{"rejected", rejected(), 1, 7},
	}

	for _, tt := range tests {
		a, r := StepDiff(base, tt.activities)
		if a != tt.added || r != tt.remov {
			t.Errorf("%s: StepDiff = %d/%d, want %d/%d", tt.name, a, r, tt.added, tt.remov)
		}
	}
}

func TestRulePredictor(t *testing.T) {
	p := NewRulePredictor(vocab.DefaultBaseline())
	base := vocab.DefaultBaselineKPIs

	if !p.Degraded() || p.Version() != FallbackVersion {
		t.Fatalf("Degraded/Version = %v/%s", p.Degraded(), p.Version())
	}

	g, v := encode(t, vocab.BaselineActivities())
	got, err := p.Predict(g, v)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got != base {
		t.Errorf("baseline = %v, want %v", got, base)
	}

	g, v = encode(t, withReturn())
	got, _ = p.Predict(g, v)
	if got[model.OnTimeDelivery] >= base[model.OnTimeDelivery] {
		t.Errorf("return: on-time delivery %v should drop below %v", got[model.OnTimeDelivery], base[model.OnTimeDelivery])
	}

	g, v = encode(t, withoutApproval())
	got, _ = p.Predict(g, v)
	if got[model.AvgCostDelivery] <= base[model.AvgCostDelivery] {
		t.Errorf("no approval: cost %v should exceed %v", got[model.AvgCostDelivery], base[model.AvgCostDelivery])
	}

	g, v = encode(t, rejected())
	got, _ = p.Predict(g, v)
	for _, k := range model.AllKPIs {
		r := DefaultKPIRanges[k]
		if got[k] < r.Min || got[k] > r.Max {
			t.Errorf("rejected: %s = %v outside [%v, %v]", k, got[k], r.Min, r.Max)
		}
	}
	if got[model.OnTimeDelivery] >= base[model.OnTimeDelivery] {
		t.Errorf("rejected: on-time delivery %v should drop", got[model.OnTimeDelivery])
	}
}
