// Package model defines core data structures for the O2C simulator.
package model

// KPIOverride is a caller-supplied per-activity time and cost edit.
type KPIOverride struct {
	AvgTimeHours float64 `json:"avg_time_hours" yaml:"avg_time_hours"`
	Cost         float64 `json:"cost" yaml:"cost"`
}

// ProcessGraph is one candidate process instance: an ordered activity
// sequence plus optional per-activity overrides.
// Duplicates in Activities are allowed (rework and loop scenarios).
type ProcessGraph struct {
	Activities   []string               `json:"activities" yaml:"activities"`
	KPIOverrides map[string]KPIOverride `json:"kpi_overrides,omitempty" yaml:"kpi_overrides,omitempty"`
}

// Clone returns a deep copy of the graph.
func (g ProcessGraph) Clone() ProcessGraph {
	out := ProcessGraph{
		Activities: append([]string(nil), g.Activities...),
	}
	if len(g.KPIOverrides) > 0 {
		out.KPIOverrides = make(map[string]KPIOverride, len(g.KPIOverrides))
		for k, v := range g.KPIOverrides {
			out.KPIOverrides[k] = v
		}
	}
	return out
}

// Item is one assigned order line.
type Item struct {
	ID        string  `json:"id" yaml:"id"`
	Name      string  `json:"name,omitempty" yaml:"name,omitempty"`
	Quantity  float64 `json:"quantity" yaml:"quantity"`
	LineTotal float64 `json:"line_total" yaml:"line_total"`
}

// EntityAssignment is the per-session set of users, items and suppliers.
// It is produced by the session manager and consumed read-only.
// Identifiers use the U001 / I001 / S001 formats.
type EntityAssignment struct {
	Users     []string `json:"users" yaml:"users"`
	Items     []Item   `json:"items" yaml:"items"`
	Suppliers []string `json:"suppliers" yaml:"suppliers"`
}

// SimulateRequest is the engine's input contract.
type SimulateRequest struct {
	Activities       []string               `json:"activities" yaml:"activities"`
	KPIOverrides     map[string]KPIOverride `json:"kpi_overrides,omitempty" yaml:"kpi_overrides,omitempty"`
	EntityAssignment *EntityAssignment      `json:"entity_assignment" yaml:"entity_assignment"`
}

// Graph returns the request's process graph.
func (r SimulateRequest) Graph() ProcessGraph {
	return ProcessGraph{Activities: r.Activities, KPIOverrides: r.KPIOverrides}
}
