package predictor

import (
	"fmt"
	"math"
)

// layer is a compiled inference-time layer. The set of implementations is
// closed: dense, batchNorm, relu and dropout.
type layer interface {
	forward(in []float64) []float64
	name() string
}

type dense struct {
	w [][]float64
	b []float64
}

func (d dense) forward(in []float64) []float64 {
	out := make([]float64, len(d.w))
	for i, row := range d.w {
		sum := d.b[i]
		for j, w := range row {
			if w != 0 {
				sum += w * in[j]
			}
		}
		out[i] = sum
	}
	return out
}

func (dense) name() string { return LayerDense }

// batchNorm folds the stored statistics into a per-unit affine transform.
type batchNorm struct {
	mul, add []float64
}

func newBatchNorm(s LayerSpec) batchNorm {
	bn := batchNorm{
		mul: make([]float64, len(s.Mean)),
		add: make([]float64, len(s.Mean)),
	}
	for i := range s.Mean {
		m := s.Gamma[i] / math.Sqrt(s.Var[i]+s.Epsilon)
		bn.mul[i] = m
		bn.add[i] = s.Beta[i] - s.Mean[i]*m
	}
	return bn
}

func (bn batchNorm) forward(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = x*bn.mul[i] + bn.add[i]
	}
	return out
}

func (batchNorm) name() string { return LayerBatchNorm }

type relu struct{}

func (relu) forward(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, x := range in {
		if x > 0 {
			out[i] = x
		}
	}
	return out
}

func (relu) name() string { return LayerReLU }

// dropout is the identity at inference time.
type dropout struct{}

func (dropout) forward(in []float64) []float64 { return in }

func (dropout) name() string { return LayerDropout }

// compileLayer converts a validated spec.
func compileLayer(s LayerSpec) (layer, error) {
	switch s.Type {
	case LayerDense:
		w := make([][]float64, len(s.Weights))
		for i, row := range s.Weights {
			w[i] = append([]float64(nil), row...)
		}
		return dense{w: w, b: append([]float64(nil), s.Bias...)}, nil
	case LayerBatchNorm:
		return newBatchNorm(s), nil
	case LayerReLU:
		return relu{}, nil
	case LayerDropout:
		return dropout{}, nil
	default:
		return nil, fmt.Errorf("unknown layer type %q", s.Type)
	}
}
