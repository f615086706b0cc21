package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSimError_Error(t *testing.T) {
	err := InvalidProcessGraph("empty activity list").
		WithContext("len", 0).
		WithContext("field", "activities")

	got := err.Error()
	want := "[E101] empty activity list (field=activities, len=0)"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := fmt.Errorf("disk gone")
	err := ArtifactLoad("file:///tmp/model.json", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected wrapped cause to be reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "disk gone") {
		t.Errorf("Expected cause in message, got %q", err.Error())
	}
	if Wrap(nil, CodeArtifactLoad, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", UnresolvedEntities("unknown user U099"))

	if !IsCode(err, CodeUnresolvedEntities) {
		t.Error("Expected IsCode to see through fmt wrapping")
	}
	if IsCode(err, CodeInvalidProcessGraph) {
		t.Error("Unexpected code match")
	}
	if GetCode(fmt.Errorf("plain")) != CodeUnknown {
		t.Error("Expected CodeUnknown for plain errors")
	}
}

func TestIsClientError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{InvalidProcessGraph("x"), true},
		{UnresolvedEntities("x"), true},
		{New(CodeInvalidRequest, "x"), true},
		{ArtifactLoad("s", fmt.Errorf("x")), false},
		{NumericInference("on_time_delivery", 0), false},
		{fmt.Errorf("plain"), false},
	}

	for _, tt := range tests {
		if got := IsClientError(tt.err); got != tt.want {
			t.Errorf("IsClientError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestMultiError(t *testing.T) {
	var m MultiError
	if m.Combined() != nil {
		t.Error("Expected nil for empty MultiError")
	}

	first := fmt.Errorf("first")
	m.Add(first)
	m.Add(nil)
	if m.Combined() != first {
		t.Error("Expected single error to be returned as-is")
	}

	m.Add(fmt.Errorf("second"))
	if !m.HasErrors() || len(m.Errors) != 2 {
		t.Fatalf("Expected 2 errors, got %d", len(m.Errors))
	}
	if !strings.HasPrefix(m.Combined().Error(), "2 errors occurred") {
		t.Errorf("Unexpected message %q", m.Error())
	}
}

func TestMultiError_Code(t *testing.T) {
	var m MultiError
	m.Add(fmt.Errorf("plain"))
	m.Add(InvalidProcessGraph("empty activity list"))

	err := m.Combined()
	if !IsCode(err, CodeInvalidProcessGraph) {
		t.Errorf("GetCode = %s, want %s", GetCode(err), CodeInvalidProcessGraph)
	}
	if !IsClientError(err) {
		t.Error("Expected client error")
	}
}
