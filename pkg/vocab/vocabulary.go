// Package vocab defines the closed Order-to-Cash activity vocabulary,
// the canonical baseline process and the known historical variants.
package vocab

import "strings"

// Size is the number of canonical activities. Transition matrices are Size x Size.
const Size = 13

// Canonical activity names in matrix index order.
const (
	ReceiveCustomerOrder     = "Receive Customer Order"
	ValidateCustomerOrder    = "Validate Customer Order"
	PerformCreditCheck       = "Perform Credit Check"
	ApproveOrder             = "Approve Order"
	RejectOrder              = "Reject Order"
	ScheduleOrderFulfillment = "Schedule Order Fulfillment"
	GeneratePickList         = "Generate Pick List"
	PackItems                = "Pack Items"
	GenerateShippingLabel    = "Generate Shipping Label"
	ShipOrder                = "Ship Order"
	GenerateInvoice          = "Generate Invoice"
	ApplyDiscount            = "Apply Discount"
	ProcessReturnRequest     = "Process Return Request"
)

// Activity names seen in historical logs that sit outside the matrix vocabulary.
// They still drive outcome flags.
const (
	CancelOrder    = "Cancel Order"
	ReceivePayment = "Receive Payment"
	CloseOrder     = "Close Order"
)

// Activity is one vocabulary entry.
type Activity struct {
	Name string
	// DefaultDurationMin is the static processing time in minutes.
	DefaultDurationMin float64
	// DefaultCost is the static per-execution cost in currency units.
	DefaultCost float64
}

var activities = [Size]Activity{
	{ReceiveCustomerOrder, 30, 15},
	{ValidateCustomerOrder, 45, 20},
	{PerformCreditCheck, 60, 35},
	{ApproveOrder, 120, 40},
	{RejectOrder, 30, 15},
	{ScheduleOrderFulfillment, 90, 25},
	{GeneratePickList, 20, 10},
	{PackItems, 60, 30},
	{GenerateShippingLabel, 15, 8},
	{ShipOrder, 240, 60},
	{GenerateInvoice, 30, 12},
	{ApplyDiscount, 20, 10},
	{ProcessReturnRequest, 180, 55},
}

var byKey = func() map[string]int {
	m := make(map[string]int, Size)
	for i, a := range activities {
		m[Normalize(a.Name)] = i
	}
	return m
}()

// Normalize is the comparison key of an activity name: surrounding
// whitespace trimmed, lower-cased. Every name comparison goes through it.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SameName reports whether a and b name the same activity.
func SameName(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// IndexOf returns the matrix index for name, compared by Normalize.
// Unknown names return ok=false and carry no transition signal.
func IndexOf(name string) (idx int, ok bool) {
	idx, ok = byKey[Normalize(name)]
	return idx, ok
}

// Contains reports whether name is in the vocabulary.
func Contains(name string) bool {
	_, ok := IndexOf(name)
	return ok
}

// Canonical returns the canonical spelling of name, or name unchanged if unknown.
func Canonical(name string) string {
	if idx, ok := IndexOf(name); ok {
		return activities[idx].Name
	}
	return name
}

// At returns the activity at matrix index i.
func At(i int) Activity {
	return activities[i]
}

// Names returns the canonical names in index order.
func Names() []string {
	out := make([]string, Size)
	for i, a := range activities {
		out[i] = a.Name
	}
	return out
}

// All returns a copy of the vocabulary table.
func All() []Activity {
	out := make([]Activity, Size)
	copy(out, activities[:])
	return out
}

// DefaultDuration returns the static duration in minutes for name.
// Unknown names return 0, false.
func DefaultDuration(name string) (float64, bool) {
	idx, ok := IndexOf(name)
	if !ok {
		return 0, false
	}
	return activities[idx].DefaultDurationMin, true
}

// DefaultCost returns the static cost for name.
// Unknown names return 0, false.
func DefaultCost(name string) (float64, bool) {
	idx, ok := IndexOf(name)
	if !ok {
		return 0, false
	}
	return activities[idx].DefaultCost, true
}

// IsRejection reports whether name ends the order without fulfilment.
func IsRejection(name string) bool {
	return SameName(name, RejectOrder)
}

// IsCancellation reports whether name cancels the order.
func IsCancellation(name string) bool {
	return SameName(name, CancelOrder)
}

// IsReturn reports whether name is a return request.
func IsReturn(name string) bool {
	return SameName(name, ProcessReturnRequest)
}

// IsDiscount reports whether name applies a discount.
func IsDiscount(name string) bool {
	return SameName(name, ApplyDiscount)
}

// IsRevenue reports whether name generates revenue.
func IsRevenue(name string) bool {
	return SameName(name, GenerateInvoice)
}

// IsTerminal reports whether name completes the order lifecycle.
func IsTerminal(name string) bool {
	return SameName(name, GenerateInvoice) ||
		SameName(name, ReceivePayment) ||
		SameName(name, CloseOrder)
}
