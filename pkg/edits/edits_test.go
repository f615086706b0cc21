package edits

import (
	"strings"
	"testing"

	"github.com/o2csim/o2csim/internal/model"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/vocab"
)

func baseline() model.ProcessGraph {
	return model.ProcessGraph{Activities: vocab.BaselineActivities()}
}

func ptr(f float64) *float64 { return &f }

func TestAddStepAfter(t *testing.T) {
	g, err := Apply(baseline(), AddStep{Activity: "process return request", After: vocab.GeneratePickList})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(g.Activities) != 11 {
		t.Fatalf("len = %d, want 11", len(g.Activities))
	}
	if g.Activities[6] != vocab.ProcessReturnRequest || g.Activities[5] != vocab.GeneratePickList {
		t.Errorf("activities = %v", g.Activities)
	}
	if v, ok := vocab.MatchVariant(g.Activities); !ok || v.Name != "with_return" {
		t.Errorf("expected with_return variant, got %v/%v", v.Name, ok)
	}
}

func TestAddStepBeforeAndAppend(t *testing.T) {
	g, err := Apply(baseline(),
		AddStep{Activity: vocab.ApplyDiscount, Before: vocab.GenerateInvoice},
		AddStep{Activity: "Archive"},
	)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	n := len(g.Activities)
	if g.Activities[n-3] != vocab.ApplyDiscount || g.Activities[n-2] != vocab.GenerateInvoice || g.Activities[n-1] != "Archive" {
		t.Errorf("activities = %v", g.Activities)
	}
}

func TestRemoveStep(t *testing.T) {
	orig := baseline()
	g, err := Apply(orig, RemoveStep{Activity: vocab.ApproveOrder})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(g.Activities) != 9 {
		t.Fatalf("len = %d, want 9", len(g.Activities))
	}
	for _, a := range g.Activities {
		if a == vocab.ApproveOrder {
			t.Error("Approve Order still present")
		}
	}
	if len(orig.Activities) != 10 || orig.Activities[3] != vocab.ApproveOrder {
		t.Error("Apply must not modify its input")
	}
}

func TestRemoveStepAll(t *testing.T) {
	g := model.ProcessGraph{Activities: []string{vocab.PackItems, vocab.ShipOrder, vocab.PackItems}}
	one, _ := Apply(g, RemoveStep{Activity: vocab.PackItems})
	all, _ := Apply(g, RemoveStep{Activity: vocab.PackItems, All: true})
	if len(one.Activities) != 2 || len(all.Activities) != 1 {
		t.Errorf("one = %v, all = %v", one.Activities, all.Activities)
	}
}

func TestModifyKPI(t *testing.T) {
	g, err := Apply(baseline(),
		ModifyKPI{Activity: "ship order", AvgTimeHours: ptr(2)},
		ModifyKPI{Activity: vocab.ShipOrder, Cost: ptr(75)},
	)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	o, ok := g.KPIOverrides[vocab.ShipOrder]
	if !ok || len(g.KPIOverrides) != 1 {
		t.Fatalf("overrides = %v", g.KPIOverrides)
	}
	if o.AvgTimeHours != 2 || o.Cost != 75 {
		t.Errorf("override = %+v, want 2h/75", o)
	}

	g, _ = Apply(baseline(), ModifyKPI{Activity: vocab.PackItems, Cost: ptr(10)})
	if got := g.KPIOverrides[vocab.PackItems].AvgTimeHours; got != 1 {
		t.Errorf("default time = %v, want 1h", got)
	}
}

func TestRenameActivity(t *testing.T) {
	g := model.ProcessGraph{
		Activities:   []string{"Check Credit", vocab.ApproveOrder, "check credit"},
		KPIOverrides: map[string]model.KPIOverride{"Check Credit": {AvgTimeHours: 3}},
	}
	out, err := Apply(g, RenameActivity{From: "Check Credit", To: "perform credit check"})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Activities[0] != vocab.PerformCreditCheck || out.Activities[2] != vocab.PerformCreditCheck {
		t.Errorf("activities = %v", out.Activities)
	}
	if _, ok := out.KPIOverrides[vocab.PerformCreditCheck]; !ok {
		t.Errorf("override not moved: %v", out.KPIOverrides)
	}
	if _, ok := g.KPIOverrides["Check Credit"]; !ok {
		t.Error("Apply must not modify input overrides")
	}
}

func TestApplyErrors(t *testing.T) {
	tests := []struct {
		name string
		edit Edit
	}{
		{"missing anchor", AddStep{Activity: vocab.PackItems, After: "Nope"}},
		{"both anchors", AddStep{Activity: vocab.PackItems, After: vocab.ShipOrder, Before: vocab.ShipOrder}},
		{"remove missing", RemoveStep{Activity: vocab.RejectOrder}},
		{"modify nothing", ModifyKPI{Activity: vocab.ShipOrder}},
		{"modify negative", ModifyKPI{Activity: vocab.ShipOrder, Cost: ptr(-1)}},
		{"rename empty", RenameActivity{From: vocab.ShipOrder}},
	}
	for _, tt := range tests {
		g, err := Apply(baseline(), tt.edit)
		if !simerrors.IsCode(err, simerrors.CodeInvalidProcessGraph) {
			t.Errorf("%s: err = %v, want %s", tt.name, err, simerrors.CodeInvalidProcessGraph)
		}
		if len(g.Activities) != 10 {
			t.Errorf("%s: failed Apply should return the input graph", tt.name)
		}
	}

	single := model.ProcessGraph{Activities: []string{vocab.PackItems}}
	if _, err := Apply(single, RemoveStep{Activity: vocab.PackItems}); err == nil {
		t.Error("Expected error when removing the last activity")
	}
}

func TestDecode(t *testing.T) {
	data := `[
		{"action": "add_step", "activity": "Process Return Request", "after": "Generate Pick List"},
		{"action": "remove_step", "activity": "Approve Order"},
		{"action": "modify_kpi", "activity": "Ship Order", "cost": 80},
		{"action": "rename_activity", "from": "Pack Items", "to": "Pack Goods"}
	]`
	list, err := Decode([]byte(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	kinds := []Kind{KindAddStep, KindRemoveStep, KindModifyKPI, KindRenameActivity}
	for i, e := range list {
		if e.Kind() != kinds[i] {
			t.Errorf("edit %d kind = %s, want %s", i, e.Kind(), kinds[i])
		}
		if strings.HasPrefix(Describe(e), "unknown") {
			t.Errorf("edit %d has no description", i)
		}
	}

	if _, err := Decode([]byte(`[{"action": "teleport"}]`)); !simerrors.IsCode(err, simerrors.CodeInvalidRequest) {
		t.Errorf("unknown action err = %v", err)
	}
}
