// Package parser reads batch simulation input. JSON and JSONL carry full
// requests; CSV and XLSX carry either one scenario per row or an event log
// grouped by case.
package parser

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/o2csim/o2csim/internal/model"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/validation"
)

// Format represents a supported input format.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatJSONL
	FormatCSV
	FormatXLSX
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatJSONL:
		return "jsonl"
	case FormatCSV:
		return "csv"
	case FormatXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format string.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "jsonl", "ndjson":
		return FormatJSONL
	case "csv":
		return FormatCSV
	case "xlsx", "excel":
		return FormatXLSX
	default:
		return FormatUnknown
	}
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) Format {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Config holds parser configuration.
type Config struct {
	// Delimiter is the CSV field delimiter.
	Delimiter rune

	// Entities is used for tabular rows that carry no entity columns.
	Entities *model.EntityAssignment
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{Delimiter: ','}
}

// Parse reads every request from r.
func Parse(ctx context.Context, r io.Reader, format Format, cfg Config) ([]model.SimulateRequest, error) {
	var (
		reqs []model.SimulateRequest
		err  error
	)
	switch format {
	case FormatJSON:
		var data []byte
		data, err = io.ReadAll(r)
		if err != nil {
			return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "failed to read input")
		}
		return validation.DecodeBatch(data)
	case FormatJSONL:
		reqs, err = parseJSONL(ctx, r)
	case FormatCSV:
		reqs, err = parseCSV(ctx, r, cfg)
	case FormatXLSX:
		reqs, err = parseXLSX(ctx, r, cfg)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, simerrors.New(simerrors.CodeInvalidRequest, "input contains no scenarios")
	}
	if len(reqs) > validation.MaxBatchSize {
		return nil, simerrors.New(simerrors.CodeInvalidRequest, "batch too large").
			WithContext("len", len(reqs)).
			WithContext("max", validation.MaxBatchSize)
	}
	return reqs, nil
}
