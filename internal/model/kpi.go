package model

import "fmt"

// KPI identifies one of the five tracked operational metrics.
type KPI uint8

const (
	OnTimeDelivery KPI = iota
	DaysSalesOutstanding
	OrderAccuracy
	InvoiceAccuracy
	AvgCostDelivery
)

// NumKPIs is the number of tracked KPIs.
const NumKPIs = 5

// AllKPIs lists the KPIs in model output order.
var AllKPIs = [NumKPIs]KPI{
	OnTimeDelivery,
	DaysSalesOutstanding,
	OrderAccuracy,
	InvoiceAccuracy,
	AvgCostDelivery,
}

var kpiNames = [NumKPIs]string{
	"on_time_delivery",
	"days_sales_outstanding",
	"order_accuracy",
	"invoice_accuracy",
	"avg_cost_delivery",
}

var kpiLabels = [NumKPIs]string{
	"On-time delivery",
	"Days sales outstanding",
	"Order accuracy",
	"Invoice accuracy",
	"Avg cost of delivery",
}

// String returns the wire name of the KPI.
func (k KPI) String() string {
	if int(k) < NumKPIs {
		return kpiNames[k]
	}
	return "unknown"
}

// Label returns a human-readable name.
func (k KPI) Label() string {
	if int(k) < NumKPIs {
		return kpiLabels[k]
	}
	return "Unknown"
}

// Unit returns the physical unit suffix used in summaries.
func (k KPI) Unit() string {
	switch k {
	case OnTimeDelivery, OrderAccuracy, InvoiceAccuracy:
		return "%"
	case DaysSalesOutstanding:
		return " days"
	case AvgCostDelivery:
		return ""
	default:
		return ""
	}
}

// HigherIsBetter reports whether an increase is an improvement.
func (k KPI) HigherIsBetter() bool {
	switch k {
	case OnTimeDelivery, OrderAccuracy, InvoiceAccuracy:
		return true
	default:
		return false
	}
}

// ParseKPI maps a wire name to a KPI.
func ParseKPI(name string) (KPI, error) {
	for i, n := range kpiNames {
		if n == name {
			return KPI(i), nil
		}
	}
	return 0, fmt.Errorf("unknown KPI %q", name)
}

// KPIValues holds one value per KPI in model output order.
type KPIValues [NumKPIs]float64

// Get returns the value for k.
func (v KPIValues) Get(k KPI) float64 { return v[k] }

// Map converts the values to a name-keyed map.
func (v KPIValues) Map() map[string]float64 {
	out := make(map[string]float64, NumKPIs)
	for _, k := range AllKPIs {
		out[k.String()] = v[k]
	}
	return out
}

// KPIComparison is one KPI's before/after pair.
type KPIComparison struct {
	Baseline  float64 `json:"baseline"`
	Predicted float64 `json:"predicted"`
}

// SimulationResult is the engine's output contract.
type SimulationResult struct {
	KPIs       map[string]KPIComparison `json:"kpis"`
	Confidence float64                  `json:"confidence"`
	IsBaseline bool                     `json:"is_baseline"`
	Summary    string                   `json:"summary"`

	// Degraded is set when predictions come from the rule-based fallback
	// because the model artifact could not be loaded.
	Degraded bool `json:"degraded"`
	// ComputationError is set when the predictor produced non-finite
	// output and baseline KPIs were substituted.
	ComputationError  bool     `json:"computation_error"`
	UnknownActivities []string `json:"unknown_activities,omitempty"`
	ModelVersion      string   `json:"model_version,omitempty"`
}

// NewKPIComparisons pairs baseline and predicted values by name.
func NewKPIComparisons(baseline, predicted KPIValues) map[string]KPIComparison {
	out := make(map[string]KPIComparison, NumKPIs)
	for _, k := range AllKPIs {
		out[k.String()] = KPIComparison{Baseline: baseline[k], Predicted: predicted[k]}
	}
	return out
}

// Predicted extracts predicted values from a result in KPI order.
func (r *SimulationResult) Predicted() KPIValues {
	var out KPIValues
	for _, k := range AllKPIs {
		out[k] = r.KPIs[k.String()].Predicted
	}
	return out
}

// Baseline extracts baseline values from a result in KPI order.
func (r *SimulationResult) Baseline() KPIValues {
	var out KPIValues
	for _, k := range AllKPIs {
		out[k] = r.KPIs[k.String()].Baseline
	}
	return out
}
