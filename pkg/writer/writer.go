// Package writer exports batch simulation results as JSON, Parquet or XLSX.
package writer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/engine"
)

// Writer writes result rows to an output format.
type Writer interface {
	// WriteRow appends one row.
	WriteRow(ctx context.Context, row Row) error

	// Flush flushes any buffered data.
	Flush() error

	// Close finishes the output and releases resources.
	Close() error
}

// Config holds writer configuration.
type Config struct {
	// BatchSize is the number of rows per Parquet record batch.
	BatchSize int

	// Compression type for Parquet output.
	Compression CompressionType

	// SheetName names the XLSX worksheet.
	SheetName string
}

// CompressionType represents Parquet compression options.
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionGzip
	CompressionZstd
)

// String returns the compression type name.
func (c CompressionType) String() string {
	switch c {
	case CompressionSnappy:
		return "snappy"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

// ParseCompression parses a compression type string.
func ParseCompression(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "gzip":
		return CompressionGzip
	case "zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:   1024,
		Compression: CompressionSnappy,
		SheetName:   "Results",
	}
}

// Row is one flattened batch item.
type Row struct {
	ID                string
	Index             int
	OK                bool
	Code              string
	Error             string
	Activities        string
	IsBaseline        bool
	Degraded          bool
	ComputationError  bool
	Confidence        float64
	ModelVersion      string
	Summary           string
	UnknownActivities string
	Baseline          model.KPIValues
	Predicted         model.KPIValues
}

// ActivitySeparator joins activity names in the activities column.
const ActivitySeparator = " > "

// Rows flattens batch items. reqs supplies the activity column and must be
// the slice the items were produced from.
func Rows(reqs []model.SimulateRequest, items []engine.BatchItem) []Row {
	rows := make([]Row, len(items))
	for i, it := range items {
		r := Row{ID: it.ID, Index: it.Index, OK: it.OK(), Code: string(it.Code), Error: it.Error}
		if it.Index >= 0 && it.Index < len(reqs) {
			r.Activities = strings.Join(reqs[it.Index].Activities, ActivitySeparator)
		}
		if res := it.Result; res != nil {
			r.IsBaseline = res.IsBaseline
			r.Degraded = res.Degraded
			r.ComputationError = res.ComputationError
			r.Confidence = res.Confidence
			r.ModelVersion = res.ModelVersion
			r.Summary = res.Summary
			r.UnknownActivities = strings.Join(res.UnknownActivities, ", ")
			r.Baseline = res.Baseline()
			r.Predicted = res.Predicted()
		}
		rows[i] = r
	}
	return rows
}

// fixedColumns precede the per-KPI columns.
var fixedColumns = []string{
	"id", "index", "ok", "code", "error", "activities",
	"is_baseline", "degraded", "computation_error", "confidence",
	"model_version", "summary", "unknown_activities",
}

// Columns returns the column names in output order.
func Columns() []string {
	cols := append([]string(nil), fixedColumns...)
	for _, k := range model.AllKPIs {
		cols = append(cols, k.String()+"_baseline", k.String()+"_predicted")
	}
	return cols
}

// values returns the row in Columns order. KPI cells are nil for failed rows.
func (r Row) values() []interface{} {
	out := []interface{}{
		r.ID, r.Index, r.OK, r.Code, r.Error, r.Activities,
		r.IsBaseline, r.Degraded, r.ComputationError, r.Confidence,
		r.ModelVersion, r.Summary, r.UnknownActivities,
	}
	for _, k := range model.AllKPIs {
		if r.OK {
			out = append(out, r.Baseline[k], r.Predicted[k])
		} else {
			out = append(out, nil, nil)
		}
	}
	return out
}

// New creates a writer for format ("json", "parquet" or "xlsx").
func New(format string, out io.Writer, cfg Config) (Writer, error) {
	switch format {
	case "json":
		return NewJSONWriter(out), nil
	case "parquet":
		pw, err := NewParquetWriter(out, cfg)
		if err != nil {
			return nil, err
		}
		return pw, nil
	case "xlsx":
		return NewXLSXWriter(out, cfg)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// WriteAll writes rows then closes w.
func WriteAll(ctx context.Context, w Writer, rows []Row) error {
	for _, r := range rows {
		if err := w.WriteRow(ctx, r); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}
