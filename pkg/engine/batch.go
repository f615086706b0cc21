package engine

import (
	"context"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/o2csim/o2csim/internal/model"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/telemetry"
)

// BatchItem is the outcome of one request in a batch. Exactly one of
// Result and Error is set.
type BatchItem struct {
	ID     string                  `json:"id"`
	Index  int                     `json:"index"`
	Result *model.SimulationResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
	Code   simerrors.Code          `json:"code,omitempty"`
}

// OK reports whether the item produced a result.
func (b BatchItem) OK() bool { return b.Result != nil }

// ProgressFunc is called after each completed item.
type ProgressFunc func(done, total int)

// SimulateBatch runs every request concurrently and returns items in input
// order. A failing request fails only its own item; the batch stops early
// only when ctx is cancelled.
func (e *Engine) SimulateBatch(ctx context.Context, reqs []model.SimulateRequest, progress ProgressFunc) ([]BatchItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "engine.SimulateBatch", telemetry.AttrBatchSize.Int(len(reqs)))
	defer span.End()

	items := make([]BatchItem, len(reqs))
	done := make(chan struct{}, len(reqs))

	limit := e.opts.BatchConcurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range reqs {
		i := i
		items[i] = BatchItem{ID: uuid.NewString(), Index: i}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.Simulate(gctx, reqs[i])
			if err != nil {
				items[i].Error = err.Error()
				items[i].Code = simerrors.GetCode(err)
			} else {
				items[i].Result = res
			}
			done <- struct{}{}
			return nil
		})
	}

	var progressDone chan struct{}
	if progress != nil {
		progressDone = make(chan struct{})
		go func() {
			defer close(progressDone)
			n := 0
			for range done {
				n++
				progress(n, len(reqs))
			}
		}()
	}

	err := g.Wait()
	close(done)
	if progressDone != nil {
		<-progressDone
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return items, nil
}
