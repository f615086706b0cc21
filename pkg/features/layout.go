// Package features turns a candidate process instance into the fixed-width
// numeric vector consumed by the KPI regressor.
//
// Layout (417 floats):
//
//	[  0, 169) transition adjacency, row-major 13x13
//	[169, 338) transition duration in minutes, row-major 13x13
//	[338, 345) user involvement
//	[345, 369) item quantities
//	[369, 393) item line totals
//	[393, 409) supplier involvement
//	[409, 417) outcome flags
package features

import (
	"fmt"

	"github.com/o2csim/o2csim/pkg/vocab"
)

// Entity capacities known to the trained model.
const (
	NumUsers     = 7
	NumItems     = 24
	NumSuppliers = 16
	NumOutcomes  = 8
)

// Dim is the total feature vector width.
const Dim = 2*vocab.Size*vocab.Size + NumUsers + 2*NumItems + NumSuppliers + NumOutcomes

// Group identifies a contiguous slice of the vector that shares a scaler.
type Group uint8

const (
	GroupAdjacency Group = iota
	GroupDuration
	GroupUsers
	GroupItemQuantities
	GroupItemAmounts
	GroupSuppliers
	GroupOutcome
)

// NumGroups is the number of feature groups.
const NumGroups = 7

// AllGroups lists the groups in vector order.
var AllGroups = [NumGroups]Group{
	GroupAdjacency,
	GroupDuration,
	GroupUsers,
	GroupItemQuantities,
	GroupItemAmounts,
	GroupSuppliers,
	GroupOutcome,
}

type span struct {
	name        string
	offset, len int
}

var spans = func() [NumGroups]span {
	sizes := [NumGroups]struct {
		name string
		n    int
	}{
		{"adjacency", vocab.Size * vocab.Size},
		{"duration", vocab.Size * vocab.Size},
		{"users", NumUsers},
		{"item_quantities", NumItems},
		{"item_amounts", NumItems},
		{"suppliers", NumSuppliers},
		{"outcome", NumOutcomes},
	}
	var out [NumGroups]span
	off := 0
	for i, s := range sizes {
		out[i] = span{name: s.name, offset: off, len: s.n}
		off += s.n
	}
	return out
}()

// String returns the persisted group name.
func (g Group) String() string {
	if int(g) < NumGroups {
		return spans[g].name
	}
	return "unknown"
}

// Offset returns the first vector index of the group.
func (g Group) Offset() int { return spans[g].offset }

// Len returns the width of the group.
func (g Group) Len() int { return spans[g].len }

// ParseGroup maps a persisted group name to a Group.
func ParseGroup(name string) (Group, error) {
	for i, s := range spans {
		if s.name == name {
			return Group(i), nil
		}
	}
	return 0, fmt.Errorf("unknown feature group %q", name)
}

// Outcome flag positions within GroupOutcome.
const (
	OutcomeHasRejection = iota
	OutcomeHasReturn
	OutcomeHasCancellation
	OutcomeProcessCompleted
	OutcomeGeneratesRevenue
	OutcomeCompletenessRatio
	OutcomeRejectionPosition
	OutcomeHasDiscount
)

// MaxCompletenessRatio caps len(sequence)/len(baseline).
const MaxCompletenessRatio = 2.0

// Vector is one encoded scenario.
type Vector [Dim]float64

// Group returns a view of the group's slice of v.
func (v *Vector) Group(g Group) []float64 {
	return v[g.Offset() : g.Offset()+g.Len()]
}

// Adjacency returns entry [from][to] of the adjacency block.
func (v *Vector) Adjacency(from, to int) float64 {
	return v[GroupAdjacency.Offset()+from*vocab.Size+to]
}

// Duration returns entry [from][to] of the duration block.
func (v *Vector) Duration(from, to int) float64 {
	return v[GroupDuration.Offset()+from*vocab.Size+to]
}

// Outcome returns outcome flag i.
func (v *Vector) Outcome(i int) float64 {
	return v[GroupOutcome.Offset()+i]
}

// CompletenessRatio returns the completeness outcome feature.
func (v *Vector) CompletenessRatio() float64 {
	return v.Outcome(OutcomeCompletenessRatio)
}
