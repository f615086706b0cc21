package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/xuri/excelize/v2"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/engine"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/vocab"
)

func sampleRows() []Row {
	reqs := []model.SimulateRequest{
		{Activities: vocab.BaselineActivities()},
		{Activities: []string{"Ship Order"}},
	}
	items := []engine.BatchItem{
		{ID: "a", Index: 0, Result: &model.SimulationResult{
			KPIs:         model.NewKPIComparisons(vocab.DefaultBaselineKPIs, vocab.DefaultBaselineKPIs),
			Confidence:   0.98,
			IsBaseline:   true,
			Summary:      "baseline",
			ModelVersion: "v1",
		}},
		{ID: "b", Index: 1, Error: "entity assignment is missing", Code: simerrors.CodeUnresolvedEntities},
	}
	return Rows(reqs, items)
}

func TestRows(t *testing.T) {
	rows := sampleRows()
	if !rows[0].OK || rows[1].OK {
		t.Fatalf("ok flags = %v, %v", rows[0].OK, rows[1].OK)
	}
	if rows[0].Predicted != vocab.DefaultBaselineKPIs {
		t.Errorf("predicted = %v", rows[0].Predicted)
	}
	if rows[1].Activities != "Ship Order" || rows[1].Code != "E102" {
		t.Errorf("row 1 = %+v", rows[1])
	}
	if got, want := len(rows[0].values()), len(Columns()); got != want {
		t.Errorf("values = %d, columns = %d", got, want)
	}
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := New("json", &buf, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := WriteAll(context.Background(), w, sampleRows()); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	var out []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d rows", len(out))
	}
	if out[0]["on_time_delivery_predicted"] != 79.8 {
		t.Errorf("otd = %v", out[0]["on_time_delivery_predicted"])
	}
	if out[1]["on_time_delivery_predicted"] != nil {
		t.Errorf("failed row has KPI value %v", out[1]["on_time_delivery_predicted"])
	}
}

func TestParquetWriter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.BatchSize = 1
	w, err := NewParquetWriter(&buf, cfg)
	if err != nil {
		t.Fatalf("NewParquetWriter failed: %v", err)
	}
	if err := WriteAll(context.Background(), w, sampleRows()); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	if w.RowsWritten() != 2 {
		t.Errorf("rows written = %d", w.RowsWritten())
	}

	rdr, err := file.NewParquetReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewParquetReader failed: %v", err)
	}
	defer rdr.Close()
	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		t.Fatalf("NewFileReader failed: %v", err)
	}
	tbl, err := fr.ReadTable(context.Background())
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	defer tbl.Release()

	if tbl.NumRows() != 2 {
		t.Errorf("rows = %d", tbl.NumRows())
	}
	if int(tbl.NumCols()) != len(Columns()) {
		t.Errorf("cols = %d, want %d", tbl.NumCols(), len(Columns()))
	}
	for i, name := range Columns() {
		if got := tbl.Schema().Field(i).Name; got != name {
			t.Errorf("column %d = %q, want %q", i, got, name)
		}
	}
}

func TestXLSXWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := New("xlsx", &buf, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := WriteAll(context.Background(), w, sampleRows()); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Results")
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][0] != "id" || rows[1][0] != "a" || rows[2][0] != "b" {
		t.Errorf("id column = %q %q %q", rows[0][0], rows[1][0], rows[2][0])
	}
}

func TestNew_UnsupportedFormat(t *testing.T) {
	if _, err := New("xml", &bytes.Buffer{}, DefaultConfig()); err == nil {
		t.Fatal("expected error")
	}
}
