// Package server provides the HTTP API in front of the simulation engine.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/config"
	"github.com/o2csim/o2csim/pkg/engine"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/resilience"
	"github.com/o2csim/o2csim/pkg/validation"
	"github.com/o2csim/o2csim/pkg/vocab"
)

// RequestIDHeader carries the per-request identifier.
const RequestIDHeader = "X-Request-ID"

// Server handles HTTP requests for the simulator.
type Server struct {
	engine *engine.Engine
	cfg    config.ServerConfig
	logger *log.Logger
	jobs   *JobStore
	broker *SSEBroker
	guard  *resilience.CircuitBreaker
	mux    *http.ServeMux
}

// NewServer creates a new HTTP server around e.
func NewServer(e *engine.Engine, cfg config.ServerConfig, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		engine: e,
		cfg:    cfg,
		logger: logger,
		jobs:   NewJobStore(cfg.JobRetention, cfg.MaxJobs),
		broker: NewSSEBroker(),
		guard:  resilience.NewCircuitBreaker(cfg.MaxInFlight),
		mux:    http.NewServeMux(),
	}
	s.guard.OnTrip = func(reason string) { logger.Printf("shedding load: %s", reason) }
	s.guard.OnReset = func() { logger.Printf("accepting load again") }
	s.setupRoutes()
	return s
}

// setupRoutes configures HTTP handlers.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/simulate", s.handleSimulate)
	s.mux.HandleFunc("/api/simulate/batch", s.handleBatch)
	s.mux.HandleFunc("/api/baseline", s.handleBaseline)
	s.mux.HandleFunc("/api/vocabulary", s.handleVocabulary)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/", s.handleJob)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)

	s.setCORS(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if s.cfg.MaxBodyBytes > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) setCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			break
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			break
		}
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
}

// Close stops background jobs.
func (s *Server) Close() error {
	s.jobs.CancelAll()
	return nil
}

// admit reserves a simulation slot. It writes 503 when the server is saturated.
func (s *Server) admit(w http.ResponseWriter, r *http.Request) bool {
	if s.guard.Acquire() {
		return true
	}
	w.Header().Set("Retry-After", "5")
	s.fail(w, r, simerrors.New(simerrors.CodeOverloaded, "server is overloaded").
		WithContext("in_flight", s.guard.InFlight()))
	return false
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, simerrors.New(simerrors.CodeInvalidRequest, "request body too large").
				WithContext("limit", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		jsonError(w, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "failed to read request body"), http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

// simulateResponse wraps a result with the request id.
type simulateResponse struct {
	RequestID string `json:"request_id"`
	*model.SimulationResult
}

// handleSimulate runs one simulation.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	req, err := validation.DecodeRequest(data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !s.admit(w, r) {
		return
	}
	res, err := s.engine.Simulate(r.Context(), req)
	s.guard.Release(err == nil || simerrors.IsClientError(err))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, simulateResponse{RequestID: w.Header().Get(RequestIDHeader), SimulationResult: res})
}

type batchResponse struct {
	RequestID string             `json:"request_id"`
	Items     []engine.BatchItem `json:"items"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// handleBatch runs a batch synchronously.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	reqs, err := validation.DecodeBatch(data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !s.admit(w, r) {
		return
	}
	items, err := s.engine.SimulateBatch(r.Context(), reqs, nil)
	s.guard.Release(err == nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := batchResponse{RequestID: w.Header().Get(RequestIDHeader), Items: items}
	for _, it := range items {
		if it.OK() {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	jsonResponse(w, resp)
}

type baselineResponse struct {
	Activities []string           `json:"activities"`
	KPIs       map[string]float64 `json:"kpis"`
	Variants   []variantInfo      `json:"variants"`
}

type variantInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Activities  []string `json:"activities"`
}

// handleBaseline returns the reference every result is compared against.
func (s *Server) handleBaseline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ref := s.engine.Baseline()
	resp := baselineResponse{Activities: ref.Activities, KPIs: ref.KPIs.Map()}
	for _, v := range vocab.KnownVariants() {
		resp.Variants = append(resp.Variants, variantInfo{Name: v.Name, Description: v.Description, Activities: v.Activities})
	}
	jsonResponse(w, resp)
}

type activityInfo struct {
	Name               string  `json:"name"`
	Index              int     `json:"index"`
	DefaultDurationMin float64 `json:"default_duration_min"`
	DefaultCost        float64 `json:"default_cost"`
}

// handleVocabulary lists the activities the model understands.
func (s *Server) handleVocabulary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	var out []activityInfo
	for i, a := range vocab.All() {
		out = append(out, activityInfo{Name: a.Name, Index: i, DefaultDurationMin: a.DefaultDurationMin, DefaultCost: a.DefaultCost})
	}
	jsonResponse(w, out)
}

// handleHealth reports model state and request metrics.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.engine.Degraded() {
		status = "degraded"
	}
	resp := map[string]interface{}{
		"status":        status,
		"degraded":      s.engine.Degraded(),
		"model_version": s.engine.ModelVersion(),
		"metrics":       s.engine.Metrics().Summary(),
		"admission":     s.guard.State().String(),
		"in_flight":     s.guard.InFlight(),
	}
	if err := s.engine.LoadError(); err != nil {
		resp["load_error"] = err.Error()
	}
	jsonResponse(w, resp)
}

// fail maps err to a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
	}
	jsonError(w, err, status)
}

func statusFor(err error) int {
	if simerrors.IsClientError(err) {
		return http.StatusBadRequest
	}
	if simerrors.IsCode(err, simerrors.CodeOverloaded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Helper functions

type errorBody struct {
	Error     string                 `json:"error"`
	Code      simerrors.Code         `json:"code"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func jsonResponse(w http.ResponseWriter, data interface{}) {
	jsonStatus(w, http.StatusOK, data)
}

// jsonStatus sets the headers before the status line is written.
func jsonStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, err error, status int) {
	body := errorBody{
		Error:     err.Error(),
		Code:      simerrors.GetCode(err),
		RequestID: w.Header().Get(RequestIDHeader),
	}
	if se, ok := err.(*simerrors.SimError); ok {
		body.Error = se.Message
		body.Details = se.Context
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func methodNotAllowed(w http.ResponseWriter) {
	jsonError(w, simerrors.New(simerrors.CodeInvalidRequest, "method not allowed"), http.StatusMethodNotAllowed)
}
