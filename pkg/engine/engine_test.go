package engine

import (
	"bytes"
	"context"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/config"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/features"
	"github.com/o2csim/o2csim/pkg/predictor"
	"github.com/o2csim/o2csim/pkg/vocab"
)

func assignment() *model.EntityAssignment {
	return &model.EntityAssignment{
		Users: []string{"U001", "U003"},
		Items: []model.Item{
			{ID: "I002", Quantity: 4, LineTotal: 120},
			{ID: "I010", Quantity: 1, LineTotal: 899.5},
		},
		Suppliers: []string{"S004"},
	}
}

func request(activities []string) model.SimulateRequest {
	return model.SimulateRequest{Activities: activities, EntityAssignment: assignment()}
}

func insertAfter(after, name string) []string {
	var out []string
	for _, a := range vocab.BaselineActivities() {
		out = append(out, a)
		if a == after {
			out = append(out, name)
		}
	}
	return out
}

func without(name string) []string {
	var out []string
	for _, a := range vocab.BaselineActivities() {
		if a != name {
			out = append(out, a)
		}
	}
	return out
}

func rejectedOrder() []string {
	return []string{vocab.ReceiveCustomerOrder, vocab.ValidateCustomerOrder, vocab.PerformCreditCheck, vocab.RejectOrder}
}

func referenceEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	m, err := predictor.NewModel(predictor.ReferenceArtifact())
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}
	return New(opts, WithPredictor(m))
}

func engines(t *testing.T) map[string]*Engine {
	return map[string]*Engine{
		"model":    referenceEngine(t, DefaultOptions()),
		"fallback": New(DefaultOptions()),
	}
}

func predicted(r *model.SimulationResult, k model.KPI) float64 {
	return r.KPIs[k.String()].Predicted
}

func baselineOf(r *model.SimulationResult, k model.KPI) float64 {
	return r.KPIs[k.String()].Baseline
}

func TestSimulate_CanonicalBaseline(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			res, err := e.Simulate(context.Background(), request(vocab.BaselineActivities()))
			if err != nil {
				t.Fatalf("Simulate failed: %v", err)
			}
			if !res.IsBaseline {
				t.Fatal("expected is_baseline")
			}
			for _, k := range model.AllKPIs {
				if predicted(res, k) != baselineOf(res, k) {
					t.Errorf("%s: predicted %v != baseline %v", k, predicted(res, k), baselineOf(res, k))
				}
			}
			if res.Confidence != 0.98 {
				t.Errorf("confidence = %v, want 0.98", res.Confidence)
			}
			if len(res.KPIs) != model.NumKPIs {
				t.Errorf("got %d KPIs", len(res.KPIs))
			}
		})
	}
}

func TestSimulate_BaselineIgnoresEntities(t *testing.T) {
	e := referenceEngine(t, DefaultOptions())
	assignments := []*model.EntityAssignment{
		{},
		assignment(),
		{Users: []string{"U007"}, Suppliers: []string{"S001", "S016"}},
	}
	var first model.KPIValues
	for i, a := range assignments {
		res, err := e.Simulate(context.Background(), model.SimulateRequest{
			Activities:       vocab.BaselineActivities(),
			EntityAssignment: a,
		})
		if err != nil {
			t.Fatalf("Simulate(%d) failed: %v", i, err)
		}
		if i == 0 {
			first = res.Predicted()
			continue
		}
		if res.Predicted() != first {
			t.Errorf("assignment %d changed baseline KPIs: %v vs %v", i, res.Predicted(), first)
		}
	}
}

func TestSimulate_ReturnLowersOnTimeDelivery(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			acts := insertAfter(vocab.GeneratePickList, vocab.ProcessReturnRequest)
			if len(acts) != 11 {
				t.Fatalf("setup: got %d activities", len(acts))
			}
			res, err := e.Simulate(context.Background(), request(acts))
			if err != nil {
				t.Fatalf("Simulate failed: %v", err)
			}
			if res.IsBaseline {
				t.Fatal("unexpected is_baseline")
			}
			k := model.OnTimeDelivery
			if !(predicted(res, k) < baselineOf(res, k)) {
				t.Errorf("on-time delivery %v not below baseline %v", predicted(res, k), baselineOf(res, k))
			}
		})
	}
}

func TestSimulate_RemovingApprovalRaisesCost(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			acts := without(vocab.ApproveOrder)
			if len(acts) != 9 {
				t.Fatalf("setup: got %d activities", len(acts))
			}
			res, err := e.Simulate(context.Background(), request(acts))
			if err != nil {
				t.Fatalf("Simulate failed: %v", err)
			}
			k := model.AvgCostDelivery
			if !(predicted(res, k) > baselineOf(res, k)) {
				t.Errorf("cost %v not above baseline %v", predicted(res, k), baselineOf(res, k))
			}
		})
	}
}

func TestSimulate_RejectedOrderIsStable(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			a, err := e.Simulate(context.Background(), request(rejectedOrder()))
			if err != nil {
				t.Fatalf("Simulate failed: %v", err)
			}
			b, err := e.Simulate(context.Background(), request(rejectedOrder()))
			if err != nil {
				t.Fatalf("Simulate failed: %v", err)
			}
			for _, k := range model.AllKPIs {
				x, y := predicted(a, k), predicted(b, k)
				if math.Abs(x-y) > 0.005*math.Max(math.Abs(x), 1e-9) {
					t.Errorf("%s differs: %v vs %v", k, x, y)
				}
			}
			if a.Summary != b.Summary {
				t.Errorf("summaries differ")
			}
		})
	}
}

func TestSimulate_Validation(t *testing.T) {
	e := New(DefaultOptions())
	tests := []struct {
		name string
		req  model.SimulateRequest
		code simerrors.Code
	}{
		{"empty", model.SimulateRequest{EntityAssignment: assignment()}, simerrors.CodeInvalidProcessGraph},
		{"blank name", request([]string{vocab.ReceiveCustomerOrder, " "}), simerrors.CodeInvalidProcessGraph},
		{"no entities", model.SimulateRequest{Activities: vocab.BaselineActivities()}, simerrors.CodeUnresolvedEntities},
		{"unknown user", model.SimulateRequest{
			Activities:       vocab.BaselineActivities(),
			EntityAssignment: &model.EntityAssignment{Users: []string{"U099"}},
		}, simerrors.CodeUnresolvedEntities},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Simulate(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if !simerrors.IsCode(err, tt.code) {
				t.Errorf("code = %s, want %s (%v)", simerrors.GetCode(err), tt.code, err)
			}
		})
	}
	if got := e.Metrics().Summary().Rejected; got != int64(len(tests)) {
		t.Errorf("rejected = %d, want %d", got, len(tests))
	}
}

func TestSimulate_UnknownActivities(t *testing.T) {
	var buf bytes.Buffer
	m, _ := predictor.NewModel(predictor.ReferenceArtifact())
	e := New(DefaultOptions(), WithPredictor(m), WithLogger(log.New(&buf, "", 0)))

	acts := append(vocab.BaselineActivities(), "Call Customer", "call customer")
	res, err := e.Simulate(context.Background(), request(acts))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if len(res.UnknownActivities) != 1 || res.UnknownActivities[0] != "Call Customer" {
		t.Errorf("unknown = %v", res.UnknownActivities)
	}
	if !strings.Contains(res.Summary, "Call Customer") {
		t.Errorf("summary does not name the unknown activity: %q", res.Summary)
	}
	if !strings.Contains(buf.String(), "Call Customer") {
		t.Errorf("unknown activity not logged: %q", buf.String())
	}
	if res.Confidence >= 0.98 {
		t.Errorf("confidence %v should drop below the baseline score", res.Confidence)
	}
}

func TestSimulate_ArbitraryUnknownStrings(t *testing.T) {
	long := strings.Repeat("x", 129)
	loop := vocab.BaselineActivities()
	for len(loop) < 201 {
		loop = append(loop, vocab.PackItems)
	}

	tests := []struct {
		name    string
		acts    []string
		unknown int
	}{
		{"long unknown name", append(vocab.BaselineActivities(), long), 1},
		{"long sequence", loop, 0},
		{"invalid utf-8", append(vocab.BaselineActivities(), "\xff"), 1},
	}
	for name, e := range engines(t) {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				var buf bytes.Buffer
				e.logger = log.New(&buf, "", 0)
				res, err := e.Simulate(context.Background(), request(tt.acts))
				if err != nil {
					t.Fatalf("Simulate failed: %v", err)
				}
				if res.IsBaseline {
					t.Error("edited sequence took the baseline shortcut")
				}
				if len(res.UnknownActivities) != tt.unknown {
					t.Errorf("unknown = %d, want %d", len(res.UnknownActivities), tt.unknown)
				}
				if res.Confidence < 0 || res.Confidence > 1 {
					t.Errorf("confidence %v out of range", res.Confidence)
				}
				if strings.Contains(res.Summary, long) || strings.Contains(buf.String(), long) {
					t.Error("long name was not shortened in summary or log")
				}
			})
		}
	}
}

type stubPredictor struct {
	out      model.KPIValues
	err      error
	mu       sync.Mutex
	duration float64
}

func (s *stubPredictor) Predict(_ model.ProcessGraph, v *features.Vector) (model.KPIValues, error) {
	from, _ := vocab.IndexOf(vocab.PackItems)
	to, _ := vocab.IndexOf(vocab.GenerateShippingLabel)
	s.mu.Lock()
	s.duration = v.Duration(from, to)
	s.mu.Unlock()
	return s.out, s.err
}

func (s *stubPredictor) Degraded() bool  { return false }
func (s *stubPredictor) Version() string { return "stub" }

func TestSimulate_NonFinitePrediction(t *testing.T) {
	tests := []struct {
		name string
		stub *stubPredictor
	}{
		{"nan", &stubPredictor{out: model.KPIValues{math.NaN(), 1, 2, 3, 4}}},
		{"inf", &stubPredictor{out: model.KPIValues{1, math.Inf(1), 2, 3, 4}}},
		{"error", &stubPredictor{err: simerrors.NumericInference("on_time_delivery", math.NaN())}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(DefaultOptions(), WithPredictor(tt.stub))
			res, err := e.Simulate(context.Background(), request(rejectedOrder()))
			if err != nil {
				t.Fatalf("Simulate failed: %v", err)
			}
			if !res.ComputationError {
				t.Error("expected computation_error")
			}
			if res.Predicted() != vocab.DefaultBaselineKPIs {
				t.Errorf("predicted = %v, want baseline", res.Predicted())
			}
			if res.Confidence != 0 {
				t.Errorf("confidence = %v, want 0", res.Confidence)
			}
			if !strings.HasPrefix(res.Summary, "Prediction failed numerically") {
				t.Errorf("summary = %q", res.Summary)
			}
		})
	}
}

func TestSimulate_DurationOverrides(t *testing.T) {
	acts := vocab.BaselineActivities()
	req := request(acts)
	req.KPIOverrides = map[string]model.KPIOverride{
		vocab.GenerateShippingLabel: {AvgTimeHours: 10, Cost: 8},
	}
	// Reorder so the baseline shortcut does not apply.
	req.Activities = append(acts, vocab.ApplyDiscount)

	tests := []struct {
		name string
		use  bool
		want float64
	}{
		{"ignored by default", false, 15},
		{"applied when enabled", true, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubPredictor{out: vocab.DefaultBaselineKPIs}
			opts := DefaultOptions()
			opts.UseOverridesInDuration = tt.use
			e := New(opts, WithPredictor(stub))
			if _, err := e.Simulate(context.Background(), req); err != nil {
				t.Fatalf("Simulate failed: %v", err)
			}
			if stub.duration != tt.want {
				t.Errorf("duration = %v, want %v", stub.duration, tt.want)
			}
		})
	}
}

func TestSimulate_BaselineOverrides(t *testing.T) {
	req := request(vocab.BaselineActivities())
	req.KPIOverrides = map[string]model.KPIOverride{
		vocab.ShipOrder: {AvgTimeHours: 1, Cost: 1},
	}
	tests := []struct {
		name  string
		honor bool
		want  bool
	}{
		{"shortcut by default", false, true},
		{"overrides bypass shortcut", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.HonorOverridesInBaseline = tt.honor
			e := referenceEngine(t, opts)
			res, err := e.Simulate(context.Background(), req)
			if err != nil {
				t.Fatalf("Simulate failed: %v", err)
			}
			if res.IsBaseline != tt.want {
				t.Errorf("is_baseline = %v, want %v", res.IsBaseline, tt.want)
			}
		})
	}
}

func TestFromConfig_MissingArtifactDegrades(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.Engine.ArtifactURI = filepath.Join(t.TempDir(), "missing.json")

	e := FromConfig(context.Background(), cfg, log.New(&buf, "", 0))
	if !e.Degraded() {
		t.Fatal("expected degraded engine")
	}
	if e.ModelVersion() != predictor.FallbackVersion {
		t.Errorf("version = %q", e.ModelVersion())
	}
	if !simerrors.IsCode(e.LoadError(), simerrors.CodeSourceUnavailable) {
		t.Errorf("load error = %v", e.LoadError())
	}
	if !strings.Contains(buf.String(), "degraded") {
		t.Errorf("degraded mode not logged: %q", buf.String())
	}

	res, err := e.Simulate(context.Background(), request(rejectedOrder()))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if !res.Degraded {
		t.Error("result not tagged degraded")
	}
	if !strings.Contains(res.Summary, "rule-based") {
		t.Errorf("summary = %q", res.Summary)
	}
}

func TestFromConfig_LoadsArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	var buf bytes.Buffer
	if err := predictor.ReferenceArtifact().Encode(&buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg := config.Default()
	cfg.Engine.ArtifactURI = path
	e := FromConfig(context.Background(), cfg, log.New(&bytes.Buffer{}, "", 0))
	if e.Degraded() {
		t.Fatalf("unexpected degraded mode: %v", e.LoadError())
	}
	if e.ModelVersion() != predictor.ReferenceModelVersion {
		t.Errorf("version = %q", e.ModelVersion())
	}
}

func TestSimulate_Concurrent(t *testing.T) {
	e := referenceEngine(t, DefaultOptions())
	want, err := e.Simulate(context.Background(), request(rejectedOrder()))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Simulate(context.Background(), request(rejectedOrder()))
			if err != nil {
				errs <- err.Error()
				return
			}
			if got.Predicted() != want.Predicted() {
				errs <- "prediction differs"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func TestSimulateBatch(t *testing.T) {
	opts := DefaultOptions()
	opts.BatchConcurrency = 3
	e := referenceEngine(t, opts)

	reqs := []model.SimulateRequest{
		request(vocab.BaselineActivities()),
		request(rejectedOrder()),
		{Activities: vocab.BaselineActivities()},
		request(without(vocab.ApproveOrder)),
	}

	var calls int
	var mu sync.Mutex
	items, err := e.SimulateBatch(context.Background(), reqs, func(done, total int) {
		mu.Lock()
		calls++
		mu.Unlock()
		if total != len(reqs) {
			t.Errorf("total = %d", total)
		}
	})
	if err != nil {
		t.Fatalf("SimulateBatch failed: %v", err)
	}
	if len(items) != len(reqs) {
		t.Fatalf("got %d items", len(items))
	}
	if calls != len(reqs) {
		t.Errorf("progress called %d times", calls)
	}
	for i, it := range items {
		if it.Index != i {
			t.Errorf("item %d has index %d", i, it.Index)
		}
		if it.ID == "" {
			t.Errorf("item %d has no id", i)
		}
	}
	if !items[0].OK() || !items[0].Result.IsBaseline {
		t.Error("item 0 should be the baseline")
	}
	if items[2].OK() || items[2].Code != simerrors.CodeUnresolvedEntities {
		t.Errorf("item 2 = %+v", items[2])
	}
	if !items[3].OK() || items[3].Result.IsBaseline {
		t.Error("item 3 should be a prediction")
	}
}

func TestSimulateBatch_Cancelled(t *testing.T) {
	e := New(DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.SimulateBatch(ctx, []model.SimulateRequest{request(rejectedOrder())}, nil); err == nil {
		t.Fatal("expected context error")
	}
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
