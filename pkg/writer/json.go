package writer

import (
	"context"
	"encoding/json"
	"io"
)

// JSONWriter writes rows as a JSON array of objects keyed by column name.
type JSONWriter struct {
	out    io.Writer
	rows   []map[string]interface{}
	closed bool
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(out io.Writer) *JSONWriter {
	return &JSONWriter{out: out}
}

// WriteRow buffers one row.
func (w *JSONWriter) WriteRow(ctx context.Context, row Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cols := Columns()
	m := make(map[string]interface{}, len(cols))
	for i, v := range row.values() {
		m[cols[i]] = v
	}
	w.rows = append(w.rows, m)
	return nil
}

// Flush is a no-op; output is written on Close.
func (w *JSONWriter) Flush() error { return nil }

// Close writes the buffered rows.
func (w *JSONWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.rows == nil {
		w.rows = []map[string]interface{}{}
	}
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	err := enc.Encode(w.rows)
	w.rows = nil
	return err
}
