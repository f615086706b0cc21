// Package errors provides coded errors for the simulator.
// It implements structured errors with codes, context, and stack traces.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Error codes for programmatic handling
type Code string

const (
	// Request errors (1xx)
	CodeInvalidProcessGraph Code = "E101"
	CodeUnresolvedEntities  Code = "E102"
	CodeInvalidRequest      Code = "E103"

	// Artifact errors (2xx)
	CodeArtifactLoad    Code = "E201"
	CodeArtifactInvalid Code = "E202"

	// Inference errors (3xx)
	CodeNumericInference Code = "E301"
	CodeUnknownActivity  Code = "E302"

	// Store errors (4xx)
	CodeSourceUnavailable Code = "E401"
	CodeOverloaded        Code = "E402"

	// Unknown
	CodeUnknown Code = "E999"
)

// SimError is the base error type for all simulator errors.
type SimError struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *SimError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *SimError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target error.
func (e *SimError) Is(target error) bool {
	if t, ok := target.(*SimError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *SimError) WithContext(key string, value interface{}) *SimError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new SimError.
func New(code Code, message string) *SimError {
	return &SimError{
		Code:       code,
		Message:    message,
		StackTrace: captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code Code, message string) *SimError {
	if err == nil {
		return nil
	}

	return &SimError{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *SimError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// captureStack captures the current stack trace.
func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	cf := runtime.CallersFrames(pcs)
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// FormatStack returns a formatted stack trace.
func (e *SimError) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s\n    %s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}

// --- Convenience constructors ---

// InvalidProcessGraph creates a graph validation error.
func InvalidProcessGraph(reason string) *SimError {
	return New(CodeInvalidProcessGraph, reason)
}

// UnresolvedEntities creates an entity assignment validation error.
func UnresolvedEntities(reason string) *SimError {
	return New(CodeUnresolvedEntities, reason)
}

// ArtifactLoad creates an artifact load error.
func ArtifactLoad(source string, err error) *SimError {
	return Wrap(err, CodeArtifactLoad, "failed to load model artifact").
		WithContext("source", source)
}

// NumericInference creates a non-finite output error.
func NumericInference(kpi string, value float64) *SimError {
	return New(CodeNumericInference, "non-finite predictor output").
		WithContext("kpi", kpi).
		WithContext("value", value)
}

// UnknownActivity creates an informational out-of-vocabulary error.
func UnknownActivity(name string) *SimError {
	return New(CodeUnknownActivity, "activity not in vocabulary").
		WithContext("activity", name)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var simErr *SimError
	if errors.As(err, &simErr) {
		return simErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var simErr *SimError
	if errors.As(err, &simErr) {
		return simErr.Code
	}
	return CodeUnknown
}

// IsClientError returns true for errors caused by the request itself.
func IsClientError(err error) bool {
	switch GetCode(err) {
	case CodeInvalidProcessGraph, CodeUnresolvedEntities, CodeInvalidRequest:
		return true
	default:
		return false
	}
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// HasErrors returns true if any errors were collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
