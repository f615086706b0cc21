package parser

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/o2csim/o2csim/internal/model"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
)

// parseXLSX reads the first worksheet.
func parseXLSX(ctx context.Context, r io.Reader, cfg Config) ([]model.SimulateRequest, error) {
	var (
		xlFile *excelize.File
		err    error
	)
	if f, ok := r.(*os.File); ok {
		xlFile, err = excelize.OpenFile(f.Name())
	} else {
		xlFile, err = excelize.OpenReader(r)
	}
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "failed to open xlsx")
	}
	defer xlFile.Close()

	sheetName := xlFile.GetSheetName(0)
	if sheetName == "" {
		sheets := xlFile.GetSheetList()
		if len(sheets) == 0 {
			return nil, simerrors.New(simerrors.CodeInvalidRequest, "no sheets found in xlsx file")
		}
		sheetName = sheets[0]
	}

	rows, err := xlFile.Rows(sheetName)
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "failed to read rows")
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	header, err := rows.Columns()
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "failed to read header")
	}
	t, err := newTable(header, cfg)
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest,
			fmt.Sprintf("unrecognised header in sheet %q", sheetName))
	}

	row := 1
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ErrContextCanceled
		default:
		}
		row++
		cols, err := rows.Columns()
		if err != nil {
			return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "malformed row").
				WithContext("row", row)
		}
		if err := t.add(row, cols); err != nil {
			return nil, err
		}
	}
	return t.requests(), nil
}
