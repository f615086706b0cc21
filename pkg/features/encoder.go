package features

import (
	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/vocab"
)

// Options controls encoder behaviour.
type Options struct {
	// UseOverrides fills the duration block from caller-supplied
	// avg_time_hours overrides. When false (the default) the block uses the
	// static per-activity defaults and overrides never reach the model.
	UseOverrides bool
}

// Encoder builds feature vectors. It holds no mutable state and is safe
// for concurrent use.
type Encoder struct {
	opts Options
}

// NewEncoder creates an encoder.
func NewEncoder(opts Options) *Encoder {
	return &Encoder{opts: opts}
}

// Options returns the encoder's configuration.
func (e *Encoder) Options() Options {
	return e.opts
}

// Encode builds the vector for g and ents. It is a pure function of its
// inputs and never fails; unknown activity names contribute no transition
// signal but still drive outcome flags.
func (e *Encoder) Encode(g model.ProcessGraph, ents Entities) Vector {
	var v Vector

	idx := make([]int, len(g.Activities))
	for i, name := range g.Activities {
		if j, ok := vocab.IndexOf(name); ok {
			idx[i] = j
		} else {
			idx[i] = -1
		}
	}

	e.encodeTransitions(&v, g, idx)
	encodeEntities(&v, ents)
	encodeOutcomes(&v, g.Activities)

	return v
}

func (e *Encoder) encodeTransitions(v *Vector, g model.ProcessGraph, idx []int) {
	adj := v.Group(GroupAdjacency)
	dur := v.Group(GroupDuration)

	var overrides map[int]float64
	if e.opts.UseOverrides {
		overrides = overrideMinutes(g.KPIOverrides)
	}

	for i := 0; i+1 < len(idx); i++ {
		from, to := idx[i], idx[i+1]
		if from < 0 || to < 0 {
			continue
		}
		cell := from*vocab.Size + to
		adj[cell] = 1.0

		minutes := vocab.At(to).DefaultDurationMin
		if m, ok := overrides[to]; ok {
			minutes = m
		}
		dur[cell] = minutes
	}
}

// overrideMinutes indexes overrides by vocabulary position.
// Overrides for unknown activities are dropped.
func overrideMinutes(overrides map[string]model.KPIOverride) map[int]float64 {
	if len(overrides) == 0 {
		return nil
	}
	out := make(map[int]float64, len(overrides))
	for name, o := range overrides {
		if j, ok := vocab.IndexOf(name); ok {
			out[j] = o.AvgTimeHours * 60
		}
	}
	return out
}

func encodeEntities(v *Vector, ents Entities) {
	users := v.Group(GroupUsers)
	for i, on := range ents.users {
		if on {
			users[i] = 1.0
		}
	}
	copy(v.Group(GroupItemQuantities), ents.quantities[:])
	copy(v.Group(GroupItemAmounts), ents.amounts[:])
	suppliers := v.Group(GroupSuppliers)
	for i, on := range ents.suppliers {
		if on {
			suppliers[i] = 1.0
		}
	}
}

// Outcomes computes the outcome flag block from the raw activity sequence.
func Outcomes(activities []string) [NumOutcomes]float64 {
	var out [NumOutcomes]float64
	n := len(activities)

	firstStop := -1
	revenueSeen := false
	for i, name := range activities {
		rejected := vocab.IsRejection(name)
		cancelled := vocab.IsCancellation(name)

		if rejected {
			out[OutcomeHasRejection] = 1
		}
		if cancelled {
			out[OutcomeHasCancellation] = 1
		}
		if vocab.IsReturn(name) {
			out[OutcomeHasReturn] = 1
		}
		if vocab.IsDiscount(name) {
			out[OutcomeHasDiscount] = 1
		}
		if vocab.IsTerminal(name) {
			out[OutcomeProcessCompleted] = 1
		}
		if (rejected || cancelled) && firstStop < 0 {
			firstStop = i
		}
		if vocab.IsRevenue(name) && firstStop < 0 {
			revenueSeen = true
		}
	}

	if revenueSeen {
		out[OutcomeGeneratesRevenue] = 1
	}

	ratio := float64(n) / float64(vocab.BaselineLen())
	if ratio > MaxCompletenessRatio {
		ratio = MaxCompletenessRatio
	}
	out[OutcomeCompletenessRatio] = ratio

	if firstStop >= 0 && n > 0 {
		out[OutcomeRejectionPosition] = float64(firstStop) / float64(n)
	}
	return out
}

func encodeOutcomes(v *Vector, activities []string) {
	o := Outcomes(activities)
	copy(v.Group(GroupOutcome), o[:])
}

// UnknownActivities returns the distinct out-of-vocabulary names in first-seen order.
func UnknownActivities(activities []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, name := range activities {
		if vocab.Contains(name) {
			continue
		}
		key := vocab.Normalize(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// CountUnknown returns the number of out-of-vocabulary occurrences.
func CountUnknown(activities []string) int {
	n := 0
	for _, name := range activities {
		if !vocab.Contains(name) {
			n++
		}
	}
	return n
}
