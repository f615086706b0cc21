package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"io"

	"github.com/o2csim/o2csim/internal/model"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
)

func parseCSV(ctx context.Context, r io.Reader, cfg Config) ([]model.SimulateRequest, error) {
	cr := csv.NewReader(r)
	if cfg.Delimiter != 0 {
		cr.Comma = cfg.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "failed to read CSV header")
	}
	t, err := newTable(header, cfg)
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "unrecognised CSV header")
	}

	row := 1
	for {
		select {
		case <-ctx.Done():
			return nil, ErrContextCanceled
		default:
		}
		cols, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "malformed CSV row").
				WithContext("row", row)
		}
		if err := t.add(row, cols); err != nil {
			return nil, err
		}
	}
	return t.requests(), nil
}
