// Package baseline decides whether a candidate process is the canonical
// baseline variant, in which case prediction is skipped entirely.
package baseline

import (
	"sort"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/vocab"
)

// Options controls detector behaviour.
type Options struct {
	// HonorOverrides disables the shortcut when the caller supplied any
	// KPI override. By default overrides are ignored and an edited baseline
	// set still short-circuits to the stored constants.
	HonorOverrides bool
}

// Detector compares activity multisets against a reference.
type Detector struct {
	ref  vocab.BaselineReference
	key  []string
	opts Options
}

// NewDetector creates a detector for ref.
func NewDetector(ref vocab.BaselineReference, opts Options) *Detector {
	return &Detector{
		ref:  ref,
		key:  multisetKey(ref.Activities),
		opts: opts,
	}
}

// Reference returns the baseline the detector compares against.
func (d *Detector) Reference() vocab.BaselineReference {
	return d.ref
}

// IsBaseline reports whether g's activity multiset equals the baseline's.
// Order is ignored; names compare case-insensitively.
func (d *Detector) IsBaseline(g model.ProcessGraph) bool {
	if len(g.Activities) != len(d.key) {
		return false
	}
	if d.opts.HonorOverrides && len(g.KPIOverrides) > 0 {
		return false
	}
	got := multisetKey(g.Activities)
	for i := range got {
		if got[i] != d.key[i] {
			return false
		}
	}
	return true
}

// Match returns the baseline result for g, or ok=false when the shortcut
// does not apply.
func (d *Detector) Match(g model.ProcessGraph) (kpis model.KPIValues, ok bool) {
	if !d.IsBaseline(g) {
		return model.KPIValues{}, false
	}
	return d.ref.KPIs, true
}

func multisetKey(activities []string) []string {
	out := make([]string, len(activities))
	for i, a := range activities {
		out[i] = vocab.Normalize(a)
	}
	sort.Strings(out)
	return out
}
