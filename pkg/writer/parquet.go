package writer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/o2csim/o2csim/internal/model"
)

// ParquetWriter writes result rows to Parquet using Apache Arrow.
type ParquetWriter struct {
	cfg     Config
	schema  *arrow.Schema
	builder *array.RecordBuilder
	writer  *pqarrow.FileWriter

	mu               sync.Mutex
	rowCount         int
	totalRowsWritten int64
	closed           bool
}

// resultSchema returns the Arrow schema for result rows.
func resultSchema() *arrow.Schema {
	fields := []arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String},
		{Name: "index", Type: arrow.PrimitiveTypes.Int64},
		{Name: "ok", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "code", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "error", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "activities", Type: arrow.BinaryTypes.String},
		{Name: "is_baseline", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "degraded", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "computation_error", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "confidence", Type: arrow.PrimitiveTypes.Float64},
		{Name: "model_version", Type: arrow.BinaryTypes.String},
		{Name: "summary", Type: arrow.BinaryTypes.String},
		{Name: "unknown_activities", Type: arrow.BinaryTypes.String, Nullable: true},
	}
	for _, k := range model.AllKPIs {
		fields = append(fields,
			arrow.Field{Name: k.String() + "_baseline", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
			arrow.Field{Name: k.String() + "_predicted", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		)
	}
	return arrow.NewSchema(fields, nil)
}

// NewParquetWriter creates a new Parquet writer.
func NewParquetWriter(output io.Writer, cfg Config) (*ParquetWriter, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	schema := resultSchema()

	var codec compress.Compression
	switch cfg.Compression {
	case CompressionSnappy:
		codec = compress.Codecs.Snappy
	case CompressionGzip:
		codec = compress.Codecs.Gzip
	case CompressionZstd:
		codec = compress.Codecs.Zstd
	default:
		codec = compress.Codecs.Uncompressed
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, output, writerProps, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	return &ParquetWriter{
		cfg:     cfg,
		schema:  schema,
		builder: array.NewRecordBuilder(memory.NewGoAllocator(), schema),
		writer:  writer,
	}, nil
}

// WriteRow appends a row, flushing a record batch when BatchSize is reached.
func (w *ParquetWriter) WriteRow(ctx context.Context, row Row) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.appendRow(row)
	w.rowCount++
	if w.rowCount >= w.cfg.BatchSize {
		return w.flushBatch()
	}
	return nil
}

func appendOptionalString(b *array.StringBuilder, s string) {
	if s == "" {
		b.AppendNull()
		return
	}
	b.Append(s)
}

func (w *ParquetWriter) appendRow(r Row) {
	b := w.builder
	b.Field(0).(*array.StringBuilder).Append(r.ID)
	b.Field(1).(*array.Int64Builder).Append(int64(r.Index))
	b.Field(2).(*array.BooleanBuilder).Append(r.OK)
	appendOptionalString(b.Field(3).(*array.StringBuilder), r.Code)
	appendOptionalString(b.Field(4).(*array.StringBuilder), r.Error)
	b.Field(5).(*array.StringBuilder).Append(r.Activities)
	b.Field(6).(*array.BooleanBuilder).Append(r.IsBaseline)
	b.Field(7).(*array.BooleanBuilder).Append(r.Degraded)
	b.Field(8).(*array.BooleanBuilder).Append(r.ComputationError)
	b.Field(9).(*array.Float64Builder).Append(r.Confidence)
	b.Field(10).(*array.StringBuilder).Append(r.ModelVersion)
	b.Field(11).(*array.StringBuilder).Append(r.Summary)
	appendOptionalString(b.Field(12).(*array.StringBuilder), r.UnknownActivities)

	col := len(fixedColumns)
	for _, k := range model.AllKPIs {
		base := b.Field(col).(*array.Float64Builder)
		pred := b.Field(col + 1).(*array.Float64Builder)
		if r.OK {
			base.Append(r.Baseline[k])
			pred.Append(r.Predicted[k])
		} else {
			base.AppendNull()
			pred.AppendNull()
		}
		col += 2
	}
}

// flushBatch writes the current batch to Parquet.
func (w *ParquetWriter) flushBatch() error {
	if w.rowCount == 0 {
		return nil
	}

	rec := w.builder.NewRecord()
	defer rec.Release()

	if err := w.writer.Write(rec); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	w.totalRowsWritten += int64(w.rowCount)
	w.rowCount = 0
	return nil
}

// Flush flushes any buffered data.
func (w *ParquetWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushBatch()
}

// Close closes the writer and releases resources.
func (w *ParquetWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.flushBatch(); err != nil {
		return err
	}
	w.builder.Release()
	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// RowsWritten returns the total number of rows written.
func (w *ParquetWriter) RowsWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalRowsWritten
}
