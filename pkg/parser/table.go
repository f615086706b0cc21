package parser

import (
	"strconv"
	"strings"

	"github.com/o2csim/o2csim/internal/model"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
)

// Column aliases, matched case-insensitively.
var (
	activitiesColumns = []string{"activities", "sequence", "process"}
	caseColumns       = []string{"case_id", "case:concept:name", "case id", "caseid", "order_id"}
	activityColumns   = []string{"activity", "concept:name", "event"}
	userColumns       = []string{"users", "user", "resource", "org:resource"}
	itemColumns       = []string{"items", "item"}
	supplierColumns   = []string{"suppliers", "supplier"}
)

// listSeparators split multi-valued cells.
const listSeparators = ";|>"

// table turns header-addressed records into requests.
type table struct {
	cfg     Config
	idx     map[string]int
	caseLog bool

	// event log state
	order []string
	cases map[string]*model.SimulateRequest
	out   []model.SimulateRequest
}

func newTable(header []string, cfg Config) (*table, error) {
	t := &table{cfg: cfg, idx: make(map[string]int, len(header))}
	for i, h := range header {
		t.idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := t.find(activitiesColumns); ok {
		return t, nil
	}
	_, hasCase := t.find(caseColumns)
	_, hasActivity := t.find(activityColumns)
	if hasCase && hasActivity {
		t.caseLog = true
		t.cases = make(map[string]*model.SimulateRequest)
		return t, nil
	}
	return nil, ErrMissingColumn
}

func (t *table) find(names []string) (int, bool) {
	for _, n := range names {
		if i, ok := t.idx[n]; ok {
			return i, true
		}
	}
	return -1, false
}

func (t *table) cell(cols []string, names []string) string {
	i, ok := t.find(names)
	if !ok || i >= len(cols) {
		return ""
	}
	return strings.TrimSpace(cols[i])
}

func (t *table) hasEntityColumns() bool {
	for _, names := range [][]string{userColumns, itemColumns, supplierColumns} {
		if _, ok := t.find(names); ok {
			return true
		}
	}
	return false
}

func (t *table) defaultEntities() *model.EntityAssignment {
	if t.cfg.Entities != nil {
		e := *t.cfg.Entities
		return &e
	}
	return &model.EntityAssignment{}
}

// add consumes one data row. row is 1-based and used in errors.
func (t *table) add(row int, cols []string) error {
	if isBlank(cols) {
		return nil
	}
	if t.caseLog {
		return t.addEvent(row, cols)
	}

	req := model.SimulateRequest{Activities: splitList(t.cell(cols, activitiesColumns))}
	ents, err := t.entities(row, cols)
	if err != nil {
		return err
	}
	req.EntityAssignment = ents
	t.out = append(t.out, req)
	return nil
}

func (t *table) addEvent(row int, cols []string) error {
	id := t.cell(cols, caseColumns)
	activity := t.cell(cols, activityColumns)
	if id == "" || activity == "" {
		return simerrors.New(simerrors.CodeInvalidRequest, "event row needs a case id and an activity").
			WithContext("row", row)
	}

	req, ok := t.cases[id]
	if !ok {
		req = &model.SimulateRequest{EntityAssignment: &model.EntityAssignment{}}
		t.cases[id] = req
		t.order = append(t.order, id)
	}
	req.Activities = append(req.Activities, activity)

	ents, err := t.entities(row, cols)
	if err != nil {
		return err
	}
	if t.hasEntityColumns() {
		mergeEntities(req.EntityAssignment, ents)
	} else if !ok {
		req.EntityAssignment = ents
	}
	return nil
}

// requests returns the parsed requests in input order.
func (t *table) requests() []model.SimulateRequest {
	if !t.caseLog {
		return t.out
	}
	out := make([]model.SimulateRequest, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.cases[id])
	}
	return out
}

func (t *table) entities(row int, cols []string) (*model.EntityAssignment, error) {
	if !t.hasEntityColumns() {
		return t.defaultEntities(), nil
	}
	e := &model.EntityAssignment{
		Users:     splitList(t.cell(cols, userColumns)),
		Suppliers: splitList(t.cell(cols, supplierColumns)),
	}
	for _, spec := range splitList(t.cell(cols, itemColumns)) {
		it, err := ParseItem(spec)
		if err != nil {
			return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "malformed item cell").
				WithContext("row", row).
				WithContext("item", spec)
		}
		e.Items = append(e.Items, it)
	}
	return e, nil
}

// ParseItem reads "I001:quantity:line_total". Missing numbers are zero.
func ParseItem(spec string) (model.Item, error) {
	parts := strings.Split(spec, ":")
	it := model.Item{ID: strings.TrimSpace(parts[0])}
	if len(parts) > 3 {
		return it, strconv.ErrSyntax
	}
	var err error
	if len(parts) > 1 {
		if it.Quantity, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
			return it, err
		}
	}
	if len(parts) > 2 {
		if it.LineTotal, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err != nil {
			return it, err
		}
	}
	return it, nil
}

func mergeEntities(dst, src *model.EntityAssignment) {
	dst.Users = appendUnique(dst.Users, src.Users...)
	dst.Suppliers = appendUnique(dst.Suppliers, src.Suppliers...)
	// Order lines repeat on every event row of a case; keep the first.
	for _, it := range src.Items {
		dup := false
		for _, d := range dst.Items {
			if strings.EqualFold(d.ID, it.ID) {
				dup = true
				break
			}
		}
		if !dup {
			dst.Items = append(dst.Items, it)
		}
	}
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		found := false
		for _, d := range dst {
			if strings.EqualFold(d, v) {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(listSeparators, r)
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
