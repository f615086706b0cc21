package parser

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/o2csim/o2csim/internal/model"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/validation"
)

// parseJSONL reads one request object per line. Blank lines are skipped.
// Lines are checked like the elements of a JSON batch, so graph errors
// fail only their own item later.
func parseJSONL(ctx context.Context, r io.Reader) ([]model.SimulateRequest, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var buf bytes.Buffer
	buf.WriteByte('[')
	n := 0
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return nil, ErrContextCanceled
		default:
		}
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.Write(b)
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeInvalidRequest, "failed to read input")
	}
	if n == 0 {
		return nil, nil
	}
	buf.WriteByte(']')
	return validation.DecodeBatch(buf.Bytes())
}
