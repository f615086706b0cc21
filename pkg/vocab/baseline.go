package vocab

import (
	"github.com/o2csim/o2csim/internal/model"
)

// baselineActivities is the most frequent historical variant (~45% of cases).
var baselineActivities = []string{
	ReceiveCustomerOrder,
	ValidateCustomerOrder,
	PerformCreditCheck,
	ApproveOrder,
	ScheduleOrderFulfillment,
	GeneratePickList,
	PackItems,
	GenerateShippingLabel,
	ShipOrder,
	GenerateInvoice,
}

// DefaultBaselineKPIs are the observed KPI means of the baseline variant.
// They are used when no artifact supplies its own baseline.
var DefaultBaselineKPIs = model.KPIValues{
	model.OnTimeDelivery:       79.8,
	model.DaysSalesOutstanding: 38.0,
	model.OrderAccuracy:        81.3,
	model.InvoiceAccuracy:      76.5,
	model.AvgCostDelivery:      33.48,
}

// BaselineReference is the canonical comparison point for every simulation.
type BaselineReference struct {
	Activities []string
	KPIs       model.KPIValues
}

// DefaultBaseline returns the canonical baseline with default KPI values.
func DefaultBaseline() BaselineReference {
	return BaselineReference{
		Activities: BaselineActivities(),
		KPIs:       DefaultBaselineKPIs,
	}
}

// BaselineActivities returns a copy of the canonical baseline sequence.
func BaselineActivities() []string {
	return append([]string(nil), baselineActivities...)
}

// BaselineLen is the length of the canonical baseline sequence.
func BaselineLen() int {
	return len(baselineActivities)
}

// Variant is a historically observed activity sequence.
type Variant struct {
	Name        string
	Description string
	Activities  []string
}

var knownVariants = []Variant{
	{
		Name:        "standard",
		Description: "Standard order fulfilled and invoiced",
		Activities:  baselineActivities,
	},
	{
		Name:        "rejected",
		Description: "Order rejected after credit check",
		Activities: []string{
			ReceiveCustomerOrder, ValidateCustomerOrder, PerformCreditCheck, RejectOrder,
		},
	},
	{
		Name:        "with_return",
		Description: "Return request raised during picking",
		Activities: []string{
			ReceiveCustomerOrder, ValidateCustomerOrder, PerformCreditCheck, ApproveOrder,
			ScheduleOrderFulfillment, GeneratePickList, ProcessReturnRequest, PackItems,
			GenerateShippingLabel, ShipOrder, GenerateInvoice,
		},
	},
	{
		Name:        "with_discount",
		Description: "Discount applied before invoicing",
		Activities: []string{
			ReceiveCustomerOrder, ValidateCustomerOrder, PerformCreditCheck, ApproveOrder,
			ScheduleOrderFulfillment, GeneratePickList, PackItems, GenerateShippingLabel,
			ShipOrder, ApplyDiscount, GenerateInvoice,
		},
	},
	{
		Name:        "cancelled",
		Description: "Order cancelled after validation",
		Activities: []string{
			ReceiveCustomerOrder, ValidateCustomerOrder, CancelOrder,
		},
	},
}

// KnownVariants returns the historical variants, baseline first.
func KnownVariants() []Variant {
	out := make([]Variant, len(knownVariants))
	for i, v := range knownVariants {
		v.Activities = append([]string(nil), v.Activities...)
		out[i] = v
	}
	return out
}

// MatchVariant returns the variant whose sequence equals activities exactly
// (order-sensitive, case-insensitive).
func MatchVariant(activities []string) (Variant, bool) {
	for _, v := range knownVariants {
		if sameSequence(v.Activities, activities) {
			v.Activities = append([]string(nil), v.Activities...)
			return v, true
		}
	}
	return Variant{}, false
}

func sameSequence(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if Normalize(a[i]) != Normalize(b[i]) {
			return false
		}
	}
	return true
}
