// Package edits applies structured changes to a process graph. The set of
// edit kinds is closed; Decode is the only place a kind name is parsed.
package edits

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/o2csim/o2csim/internal/model"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/vocab"
)

// Kind names an edit variant.
type Kind string

const (
	KindAddStep        Kind = "add_step"
	KindRemoveStep     Kind = "remove_step"
	KindModifyKPI      Kind = "modify_kpi"
	KindRenameActivity Kind = "rename_activity"
)

// Edit is one of AddStep, RemoveStep, ModifyKPI or RenameActivity.
type Edit interface {
	Kind() Kind
	apply(g *model.ProcessGraph) *simerrors.SimError
}

// AddStep inserts Activity after the first occurrence of After, or before
// the first occurrence of Before. With neither set it appends.
type AddStep struct {
	Activity string
	After    string
	Before   string
}

// RemoveStep removes the first occurrence of Activity, or every occurrence
// when All is set.
type RemoveStep struct {
	Activity string
	All      bool
}

// ModifyKPI sets the time and/or cost override of Activity. Nil fields keep
// the current override, or the activity default when there is none.
type ModifyKPI struct {
	Activity     string
	AvgTimeHours *float64
	Cost         *float64
}

// RenameActivity replaces every occurrence of From with To.
type RenameActivity struct {
	From string
	To   string
}

func (AddStep) Kind() Kind        { return KindAddStep }
func (RemoveStep) Kind() Kind     { return KindRemoveStep }
func (ModifyKPI) Kind() Kind      { return KindModifyKPI }
func (RenameActivity) Kind() Kind { return KindRenameActivity }

// Apply returns a copy of g with edits applied in order. g is not modified.
func Apply(g model.ProcessGraph, edits ...Edit) (model.ProcessGraph, error) {
	out := g.Clone()
	for i, e := range edits {
		if err := e.apply(&out); err != nil {
			return g, err.WithContext("edit", i).WithContext("kind", string(e.Kind()))
		}
	}
	return out, nil
}

func indexOf(activities []string, name string) int {
	for i, a := range activities {
		if vocab.SameName(a, name) {
			return i
		}
	}
	return -1
}

func notFound(name string) *simerrors.SimError {
	return simerrors.InvalidProcessGraph("activity not in process").WithContext("activity", name)
}

func (e AddStep) apply(g *model.ProcessGraph) *simerrors.SimError {
	if e.Activity == "" {
		return simerrors.InvalidProcessGraph("add_step needs an activity")
	}
	if e.After != "" && e.Before != "" {
		return simerrors.InvalidProcessGraph("add_step takes after or before, not both")
	}
	name := vocab.Canonical(e.Activity)

	pos := len(g.Activities)
	switch {
	case e.After != "":
		i := indexOf(g.Activities, e.After)
		if i < 0 {
			return notFound(e.After)
		}
		pos = i + 1
	case e.Before != "":
		i := indexOf(g.Activities, e.Before)
		if i < 0 {
			return notFound(e.Before)
		}
		pos = i
	}

	g.Activities = append(g.Activities, "")
	copy(g.Activities[pos+1:], g.Activities[pos:])
	g.Activities[pos] = name
	return nil
}

func (e RemoveStep) apply(g *model.ProcessGraph) *simerrors.SimError {
	i := indexOf(g.Activities, e.Activity)
	if i < 0 {
		return notFound(e.Activity)
	}

	kept := g.Activities[:0]
	removed := false
	for _, a := range g.Activities {
		if vocab.SameName(a, e.Activity) && (e.All || !removed) {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == 0 {
		return simerrors.InvalidProcessGraph("edit would leave an empty process")
	}
	g.Activities = kept
	return nil
}

func (e ModifyKPI) apply(g *model.ProcessGraph) *simerrors.SimError {
	if e.AvgTimeHours == nil && e.Cost == nil {
		return simerrors.InvalidProcessGraph("modify_kpi needs avg_time_hours or cost")
	}
	if indexOf(g.Activities, e.Activity) < 0 {
		return notFound(e.Activity)
	}
	name := vocab.Canonical(e.Activity)

	o, ok := lookupOverride(g.KPIOverrides, name)
	if !ok {
		minutes, _ := vocab.DefaultDuration(name)
		cost, _ := vocab.DefaultCost(name)
		o = model.KPIOverride{AvgTimeHours: minutes / 60, Cost: cost}
	}
	if e.AvgTimeHours != nil {
		o.AvgTimeHours = *e.AvgTimeHours
	}
	if e.Cost != nil {
		o.Cost = *e.Cost
	}
	if o.AvgTimeHours < 0 || o.Cost < 0 {
		return simerrors.InvalidProcessGraph("override values must be non-negative").
			WithContext("activity", name)
	}

	if g.KPIOverrides == nil {
		g.KPIOverrides = make(map[string]model.KPIOverride)
	}
	deleteOverride(g.KPIOverrides, name)
	g.KPIOverrides[name] = o
	return nil
}

func (e RenameActivity) apply(g *model.ProcessGraph) *simerrors.SimError {
	if e.To == "" {
		return simerrors.InvalidProcessGraph("rename_activity needs a target name")
	}
	if indexOf(g.Activities, e.From) < 0 {
		return notFound(e.From)
	}
	to := vocab.Canonical(e.To)
	for i, a := range g.Activities {
		if vocab.SameName(a, e.From) {
			g.Activities[i] = to
		}
	}
	if o, ok := lookupOverride(g.KPIOverrides, e.From); ok {
		deleteOverride(g.KPIOverrides, e.From)
		g.KPIOverrides[to] = o
	}
	return nil
}

func lookupOverride(m map[string]model.KPIOverride, name string) (model.KPIOverride, bool) {
	for k, v := range m {
		if vocab.SameName(k, name) {
			return v, true
		}
	}
	return model.KPIOverride{}, false
}

func deleteOverride(m map[string]model.KPIOverride, name string) {
	for k := range m {
		if vocab.SameName(k, name) {
			delete(m, k)
		}
	}
}

// Describe renders e for logs and CLI output.
func Describe(e Edit) string {
	switch e := e.(type) {
	case AddStep:
		switch {
		case e.After != "":
			return fmt.Sprintf("add %q after %q", e.Activity, e.After)
		case e.Before != "":
			return fmt.Sprintf("add %q before %q", e.Activity, e.Before)
		default:
			return fmt.Sprintf("add %q at end", e.Activity)
		}
	case RemoveStep:
		if e.All {
			return fmt.Sprintf("remove every %q", e.Activity)
		}
		return fmt.Sprintf("remove %q", e.Activity)
	case ModifyKPI:
		var parts []string
		if e.AvgTimeHours != nil {
			parts = append(parts, fmt.Sprintf("time=%.2fh", *e.AvgTimeHours))
		}
		if e.Cost != nil {
			parts = append(parts, fmt.Sprintf("cost=%.2f", *e.Cost))
		}
		return fmt.Sprintf("set %q %s", e.Activity, strings.Join(parts, " "))
	case RenameActivity:
		return fmt.Sprintf("rename %q to %q", e.From, e.To)
	default:
		return fmt.Sprintf("unknown edit %T", e)
	}
}

// Spec is the wire form of an edit.
type Spec struct {
	Action       Kind     `json:"action"`
	Activity     string   `json:"activity,omitempty"`
	After        string   `json:"after,omitempty"`
	Before       string   `json:"before,omitempty"`
	All          bool     `json:"all,omitempty"`
	AvgTimeHours *float64 `json:"avg_time_hours,omitempty"`
	Cost         *float64 `json:"cost,omitempty"`
	From         string   `json:"from,omitempty"`
	To           string   `json:"to,omitempty"`
}

// Edit converts s to its variant.
func (s Spec) Edit() (Edit, error) {
	switch s.Action {
	case KindAddStep:
		return AddStep{Activity: s.Activity, After: s.After, Before: s.Before}, nil
	case KindRemoveStep:
		return RemoveStep{Activity: s.Activity, All: s.All}, nil
	case KindModifyKPI:
		return ModifyKPI{Activity: s.Activity, AvgTimeHours: s.AvgTimeHours, Cost: s.Cost}, nil
	case KindRenameActivity:
		return RenameActivity{From: s.From, To: s.To}, nil
	default:
		return nil, simerrors.New(simerrors.CodeInvalidRequest, "unknown edit action").
			WithContext("action", string(s.Action))
	}
}

// Decode parses a JSON array of edit specs.
func Decode(data []byte) ([]Edit, error) {
	var specs []Spec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "edits must be a JSON array")
	}
	out := make([]Edit, 0, len(specs))
	for i, s := range specs {
		e, err := s.Edit()
		if err != nil {
			return nil, simerrors.Wrapf(err, simerrors.CodeInvalidRequest, "edit %d", i)
		}
		out = append(out, e)
	}
	return out, nil
}
