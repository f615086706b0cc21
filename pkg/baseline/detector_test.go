package baseline

import (
	"testing"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/vocab"
)

func TestIsBaseline(t *testing.T) {
	d := NewDetector(vocab.DefaultBaseline(), Options{})

	reversed := vocab.BaselineActivities()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	lower := vocab.BaselineActivities()
	for i := range lower {
		lower[i] = " " + lower[i]
	}
	duplicated := vocab.BaselineActivities()
	duplicated[3] = duplicated[2]

	tests := []struct {
		name       string
		activities []string
		want       bool
	}{
		{"canonical", vocab.BaselineActivities(), true},
		{"reordered", reversed, true},
		{"padded names", lower, true},
		{"missing step", vocab.BaselineActivities()[1:], false},
		{"extra step", append(vocab.BaselineActivities(), vocab.ApplyDiscount), false},
		{"same length different multiset", duplicated, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		got := d.IsBaseline(model.ProcessGraph{Activities: tt.activities})
		if got != tt.want {
			t.Errorf("%s: IsBaseline = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMatch_ReturnsStoredKPIs(t *testing.T) {
	ref := vocab.DefaultBaseline()
	ref.KPIs[model.OnTimeDelivery] = 85.0
	d := NewDetector(ref, Options{})

	kpis, ok := d.Match(model.ProcessGraph{Activities: vocab.BaselineActivities()})
	if !ok {
		t.Fatal("Expected baseline match")
	}
	if kpis != ref.KPIs {
		t.Errorf("Match KPIs = %v, want %v", kpis, ref.KPIs)
	}
}

func TestOverrides(t *testing.T) {
	g := model.ProcessGraph{
		Activities: vocab.BaselineActivities(),
		KPIOverrides: map[string]model.KPIOverride{
			vocab.ShipOrder: {AvgTimeHours: 1, Cost: 5},
		},
	}

	if !NewDetector(vocab.DefaultBaseline(), Options{}).IsBaseline(g) {
		t.Error("default detector must ignore overrides")
	}
	if NewDetector(vocab.DefaultBaseline(), Options{HonorOverrides: true}).IsBaseline(g) {
		t.Error("HonorOverrides detector must not shortcut an edited baseline")
	}

	g.KPIOverrides = nil
	if !NewDetector(vocab.DefaultBaseline(), Options{HonorOverrides: true}).IsBaseline(g) {
		t.Error("HonorOverrides detector should still match an unedited baseline")
	}
}
