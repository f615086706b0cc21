// Package engine runs the simulate pipeline: validate, resolve entities,
// baseline shortcut, encode, predict, score confidence, explain.
//
// An Engine holds only read-only state loaded at construction and is safe
// for concurrent use.
package engine

import (
	"context"
	"io"
	"log"
	"math"
	"time"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/baseline"
	"github.com/o2csim/o2csim/pkg/confidence"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/explain"
	"github.com/o2csim/o2csim/pkg/features"
	"github.com/o2csim/o2csim/pkg/predictor"
	"github.com/o2csim/o2csim/pkg/telemetry"
	"github.com/o2csim/o2csim/pkg/validation"
	"github.com/o2csim/o2csim/pkg/vocab"
)

// Options are the behavioural switches of the pipeline.
type Options struct {
	// UseOverridesInDuration feeds kpi_overrides into the duration block.
	UseOverridesInDuration bool
	// HonorOverridesInBaseline skips the baseline shortcut when overrides are supplied.
	HonorOverridesInBaseline bool
	// Weights are the confidence constants.
	Weights confidence.Weights
	// BatchConcurrency bounds SimulateBatch workers; 0 means GOMAXPROCS.
	BatchConcurrency int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{Weights: confidence.DefaultWeights()}
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	predictor predictor.Predictor
	logger    *log.Logger
	metrics   *telemetry.Metrics
	verbose   bool
	loadErr   error
}

// WithPredictor sets the predictor. Without it the engine serves the
// rule-based fallback and every result is degraded.
func WithPredictor(p predictor.Predictor) Option {
	return func(c *engineConfig) { c.predictor = p }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *engineConfig) { c.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *engineConfig) { c.metrics = m }
}

// WithVerbose logs baseline shortcut hits.
func WithVerbose(v bool) Option {
	return func(c *engineConfig) { c.verbose = v }
}

func withLoadError(err error) Option {
	return func(c *engineConfig) { c.loadErr = err }
}

// Engine is the simulation pipeline.
type Engine struct {
	opts      Options
	encoder   *features.Encoder
	detector  *baseline.Detector
	predictor predictor.Predictor
	estimator *confidence.Estimator
	baseline  vocab.BaselineReference
	logger    *log.Logger
	metrics   *telemetry.Metrics
	verbose   bool
	loadErr   error
}

type baselineSource interface {
	BaselineKPIs() model.KPIValues
}

// New creates an engine.
func New(opts Options, options ...Option) *Engine {
	cfg := &engineConfig{}
	for _, o := range options {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.New(io.Discard, "", 0)
	}
	if cfg.metrics == nil {
		cfg.metrics = telemetry.NewMetrics()
	}

	ref := vocab.DefaultBaseline()
	if bs, ok := cfg.predictor.(baselineSource); ok {
		ref.KPIs = bs.BaselineKPIs()
	}
	if cfg.predictor == nil {
		cfg.predictor = predictor.NewRulePredictor(ref)
	}

	return &Engine{
		opts:      opts,
		encoder:   features.NewEncoder(features.Options{UseOverrides: opts.UseOverridesInDuration}),
		detector:  baseline.NewDetector(ref, baseline.Options{HonorOverrides: opts.HonorOverridesInBaseline}),
		predictor: cfg.predictor,
		estimator: confidence.New(opts.Weights),
		baseline:  ref,
		logger:    cfg.logger,
		metrics:   cfg.metrics,
		verbose:   cfg.verbose,
		loadErr:   cfg.loadErr,
	}
}

// Degraded reports whether predictions come from the rule-based fallback.
func (e *Engine) Degraded() bool { return e.predictor.Degraded() }

// ModelVersion identifies the active predictor.
func (e *Engine) ModelVersion() string { return e.predictor.Version() }

// LoadError returns the artifact load failure that put the engine in
// degraded mode, if any.
func (e *Engine) LoadError() error { return e.loadErr }

// Baseline returns the reference every result is compared against.
func (e *Engine) Baseline() vocab.BaselineReference {
	ref := e.baseline
	ref.Activities = append([]string(nil), ref.Activities...)
	return ref
}

// Options returns the engine's options.
func (e *Engine) Options() Options { return e.opts }

// Metrics returns the engine's metrics collector.
func (e *Engine) Metrics() *telemetry.Metrics { return e.metrics }

// Simulate runs the pipeline for one request. Errors are returned only for
// invalid requests; numeric failures are reported on the result.
func (e *Engine) Simulate(ctx context.Context, req model.SimulateRequest) (*model.SimulationResult, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "engine.Simulate",
		telemetry.AttrActivityCount.Int(len(req.Activities)),
		telemetry.AttrModelVersion.String(e.ModelVersion()),
		telemetry.AttrDegraded.Bool(e.Degraded()),
	)
	defer span.End()

	if err := validation.ValidateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		e.metrics.RecordRejected()
		return nil, err
	}
	ents, err := features.Resolve(req.EntityAssignment)
	if err != nil {
		telemetry.RecordError(span, err)
		e.metrics.RecordRejected()
		return nil, err
	}

	g := req.Graph()
	unknown := features.UnknownActivities(g.Activities)
	for _, name := range unknown {
		e.logger.Printf("%v", simerrors.UnknownActivity(explain.DisplayName(name)))
	}

	result := &model.SimulationResult{
		Degraded:          e.Degraded(),
		UnknownActivities: unknown,
		ModelVersion:      e.ModelVersion(),
	}

	if kpis, ok := e.detector.Match(g); ok {
		telemetry.AddSpanEvent(ctx, "baseline_shortcut")
		if e.verbose {
			e.logger.Printf("baseline shortcut for %d activities", len(g.Activities))
		}
		result.IsBaseline = true
		result.KPIs = model.NewKPIComparisons(e.baseline.KPIs, kpis)
		result.Confidence = e.estimator.BaselineScore()
	} else {
		e.predict(ctx, g, ents, result)
	}

	result.Summary = explain.Summary(explain.Input{
		Baseline:          result.Baseline(),
		Predicted:         result.Predicted(),
		IsBaseline:        result.IsBaseline,
		Degraded:          result.Degraded,
		ComputationError:  result.ComputationError,
		UnknownActivities: unknown,
	})

	span.SetAttributes(telemetry.ResultAttributes(result)...)
	e.metrics.Record(telemetry.Outcome{
		Latency:          time.Since(start),
		Baseline:         result.IsBaseline,
		Degraded:         result.Degraded,
		ComputationError: result.ComputationError,
		Unknown:          len(unknown),
	})
	return result, nil
}

func (e *Engine) predict(ctx context.Context, g model.ProcessGraph, ents features.Entities, result *model.SimulationResult) {
	_, span := telemetry.StartSpan(ctx, "engine.predict")
	defer span.End()

	v := e.encoder.Encode(g, ents)
	kpis, err := e.predictor.Predict(g, &v)
	if err == nil {
		if k, bad := nonFinite(kpis); bad {
			err = simerrors.NumericInference(k.String(), kpis[k])
		}
	}
	if err != nil {
		// Non-finite output never reaches the caller.
		telemetry.RecordError(span, err)
		e.logger.Printf("prediction discarded, serving baseline: %v", err)
		result.ComputationError = true
		result.KPIs = model.NewKPIComparisons(e.baseline.KPIs, e.baseline.KPIs)
		result.Confidence = 0
		return
	}

	score := e.estimator.Score(g, &v)
	if e.Degraded() {
		score = e.estimator.Degrade(score)
	}
	result.KPIs = model.NewKPIComparisons(e.baseline.KPIs, kpis)
	result.Confidence = score
}

// nonFinite reports the first KPI holding NaN or Inf.
func nonFinite(v model.KPIValues) (model.KPI, bool) {
	for _, k := range model.AllKPIs {
		if math.IsNaN(v[k]) || math.IsInf(v[k], 0) {
			return k, true
		}
	}
	return 0, false
}
