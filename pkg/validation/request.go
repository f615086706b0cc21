package validation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/o2csim/o2csim/internal/model"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
)

// MaxBatchSize bounds the number of requests in one batch.
const MaxBatchSize = 1000

//go:embed request.schema.json
var requestSchemaJSON []byte

const requestSchemaURL = "https://o2csim.dev/schemas/simulate_request.schema.json"

var (
	schemaOnce    sync.Once
	requestSchema *jsonschema.Schema
	schemaErr     error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(requestSchemaURL, bytes.NewReader(requestSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		requestSchema, schemaErr = compiler.Compile(requestSchemaURL)
	})
	return requestSchema, schemaErr
}

// ValidateGraph rejects empty sequences, blank names and malformed overrides.
// Unknown activity names of any length or encoding are accepted; request size
// is bounded by the transport (server.max_body_bytes).
func ValidateGraph(g model.ProcessGraph) error {
	var errs simerrors.MultiError

	if len(g.Activities) == 0 {
		errs.Add(simerrors.InvalidProcessGraph("empty activity list").
			WithContext("field", "activities"))
	}
	for i, name := range g.Activities {
		if err := validateName(name); err != nil {
			errs.Add(err.WithContext("index", i))
		}
	}

	names := make([]string, 0, len(g.KPIOverrides))
	for name := range g.KPIOverrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		o := g.KPIOverrides[name]
		if err := validateName(name); err != nil {
			errs.Add(err.WithContext("field", "kpi_overrides"))
			continue
		}
		if !finiteNonNegative(o.AvgTimeHours) {
			errs.Add(simerrors.InvalidProcessGraph("avg_time_hours must be finite and non-negative").
				WithContext("activity", name))
		}
		if !finiteNonNegative(o.Cost) {
			errs.Add(simerrors.InvalidProcessGraph("cost must be finite and non-negative").
				WithContext("activity", name))
		}
	}

	return errs.Combined()
}

func validateName(name string) *simerrors.SimError {
	if strings.TrimSpace(name) == "" {
		return simerrors.InvalidProcessGraph("empty activity name")
	}
	return nil
}

func finiteNonNegative(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

// ValidateRequest validates the graph and requires an entity assignment.
func ValidateRequest(req model.SimulateRequest) error {
	if err := ValidateGraph(req.Graph()); err != nil {
		return err
	}
	if req.EntityAssignment == nil {
		return simerrors.UnresolvedEntities("entity assignment is missing").
			WithContext("field", "entity_assignment")
	}
	return nil
}

// DecodeRequest schema-checks and decodes one JSON request. The graph is
// validated; entity resolution is left to the engine.
func DecodeRequest(data []byte) (model.SimulateRequest, error) {
	var req model.SimulateRequest

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return req, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "request body is not valid JSON")
	}
	if err := checkSchema(doc); err != nil {
		return req, err
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "failed to decode request")
	}
	if err := ValidateGraph(req.Graph()); err != nil {
		return req, err
	}
	return req, nil
}

// DecodeBatch decodes a JSON array of requests. Each element is checked
// against the request schema; graph validation happens per item later.
func DecodeBatch(data []byte) ([]model.SimulateRequest, error) {
	var docs []json.RawMessage
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "batch body must be a JSON array")
	}
	if len(docs) == 0 {
		return nil, simerrors.New(simerrors.CodeInvalidRequest, "empty batch")
	}
	if len(docs) > MaxBatchSize {
		return nil, simerrors.New(simerrors.CodeInvalidRequest, "batch too large").
			WithContext("len", len(docs)).
			WithContext("max", MaxBatchSize)
	}

	out := make([]model.SimulateRequest, len(docs))
	for i, raw := range docs {
		var doc interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "invalid batch item").
				WithContext("index", i)
		}
		if err := checkSchema(doc); err != nil {
			return nil, err.WithContext("index", i)
		}
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "failed to decode batch item").
				WithContext("index", i)
		}
	}
	return out, nil
}

func checkSchema(doc interface{}) *simerrors.SimError {
	schema, err := compiledSchema()
	if err != nil {
		return simerrors.Wrap(err, simerrors.CodeInvalidRequest, "request schema unavailable")
	}
	if err := schema.Validate(doc); err != nil {
		return simerrors.Wrap(err, simerrors.CodeInvalidRequest, "request does not match schema")
	}
	return nil
}
