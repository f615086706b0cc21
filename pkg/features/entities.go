package features

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/o2csim/o2csim/internal/model"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
)

// Entities is an EntityAssignment resolved to model indices.
// Only Resolve constructs it, so holding one proves the assignment was valid.
type Entities struct {
	users      [NumUsers]bool
	quantities [NumItems]float64
	amounts    [NumItems]float64
	suppliers  [NumSuppliers]bool
}

// Resolve maps an assignment onto model indices. It fails when the
// assignment is missing or references identifiers the model does not know;
// values are never guessed.
func Resolve(a *model.EntityAssignment) (Entities, error) {
	var e Entities
	if a == nil {
		return e, simerrors.UnresolvedEntities("entity assignment is missing")
	}

	for _, u := range a.Users {
		idx, err := parseEntityID(u, 'U', NumUsers)
		if err != nil {
			return e, simerrors.UnresolvedEntities("unknown user").
				WithContext("user", u).WithContext("reason", err.Error())
		}
		e.users[idx] = true
	}

	for _, it := range a.Items {
		idx, err := parseEntityID(it.ID, 'I', NumItems)
		if err != nil {
			return e, simerrors.UnresolvedEntities("unknown item").
				WithContext("item", it.ID).WithContext("reason", err.Error())
		}
		if !finiteNonNegative(it.Quantity) || !finiteNonNegative(it.LineTotal) {
			return e, simerrors.UnresolvedEntities("item quantity and line total must be finite and non-negative").
				WithContext("item", it.ID)
		}
		// Repeated lines for the same item accumulate.
		e.quantities[idx] += it.Quantity
		e.amounts[idx] += it.LineTotal
	}

	for _, s := range a.Suppliers {
		idx, err := parseEntityID(s, 'S', NumSuppliers)
		if err != nil {
			return e, simerrors.UnresolvedEntities("unknown supplier").
				WithContext("supplier", s).WithContext("reason", err.Error())
		}
		e.suppliers[idx] = true
	}

	return e, nil
}

// UserCount returns the number of distinct assigned users.
func (e Entities) UserCount() int {
	n := 0
	for _, u := range e.users {
		if u {
			n++
		}
	}
	return n
}

// parseEntityID accepts "U003" style identifiers (prefix optional) and
// returns the zero-based index.
func parseEntityID(id string, prefix byte, capacity int) (int, error) {
	s := strings.TrimSpace(id)
	if s == "" {
		return 0, fmt.Errorf("empty identifier")
	}
	if s[0] == prefix || s[0] == prefix+('a'-'A') {
		s = s[1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("malformed identifier")
	}
	if n < 1 || n > capacity {
		return 0, fmt.Errorf("identifier out of range 1..%d", capacity)
	}
	return n - 1, nil
}

func finiteNonNegative(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}
