package engine

import (
	"bytes"
	"context"
	"log"

	"github.com/o2csim/o2csim/pkg/artifactstore"
	"github.com/o2csim/o2csim/pkg/config"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/predictor"
)

// LoadModel fetches and compiles the artifact at uri.
func LoadModel(ctx context.Context, uri string, opts artifactstore.Options) (*predictor.Model, error) {
	store, err := artifactstore.Open(ctx, uri, opts)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	data, err := artifactstore.ReadAll(ctx, store)
	if err != nil {
		return nil, err
	}
	m, err := predictor.Load(bytes.NewReader(data))
	if err != nil {
		return nil, simerrors.Wrapf(err, simerrors.GetCode(err), "artifact %s", store.Name())
	}
	return m, nil
}

// FromConfig builds an engine from configuration. A missing or broken
// artifact is not fatal: the engine starts in degraded mode and the cause
// is available from LoadError.
func FromConfig(ctx context.Context, cfg *config.Config, logger *log.Logger, options ...Option) *Engine {
	opts := Options{
		UseOverridesInDuration:   cfg.Engine.UseOverridesInDuration,
		HonorOverridesInBaseline: cfg.Engine.HonorOverridesInBaseline,
		Weights:                  cfg.Confidence,
		BatchConcurrency:         cfg.Engine.BatchConcurrency,
	}
	options = append([]Option{WithLogger(logger)}, options...)

	if cfg.Engine.ArtifactURI == "" {
		logger.Printf("no artifact configured, serving rule-based estimates")
		return New(opts, options...)
	}

	loadCtx := ctx
	if cfg.Engine.LoadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, cfg.Engine.LoadTimeout)
		defer cancel()
	}

	m, err := LoadModel(loadCtx, cfg.Engine.ArtifactURI, cfg.StoreOptions())
	if err != nil {
		logger.Printf("model unavailable, degraded mode: %v", err)
		return New(opts, append(options, withLoadError(err))...)
	}
	logger.Printf("loaded model %s from %s", m.Version(), cfg.Engine.ArtifactURI)
	return New(opts, append(options, WithPredictor(m))...)
}
