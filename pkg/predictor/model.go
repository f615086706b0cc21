package predictor

import (
	"math"

	"github.com/o2csim/o2csim/internal/model"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/features"
	"github.com/o2csim/o2csim/pkg/vocab"
)

type head struct {
	w []float64
	b float64
}

// Model is a compiled artifact. It is read-only after NewModel returns.
type Model struct {
	version  string
	center   [features.Dim]float64
	scale    [features.Dim]float64
	layers   []layer
	heads    [model.NumKPIs]head
	ranges   [model.NumKPIs]KPIRange
	baseline model.KPIValues
}

// NewModel validates a and compiles it for inference.
func NewModel(a *Artifact) (*Model, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	m := &Model{version: a.ModelVersion}
	for i := range m.scale {
		m.scale[i] = 1
	}
	for _, s := range a.FeatureScalers {
		g, _ := features.ParseGroup(s.Group)
		off := g.Offset()
		for i := range s.Scale {
			m.center[off+i] = s.Center[i]
			m.scale[off+i] = s.Scale[i]
		}
	}

	for _, s := range a.Layers {
		l, err := compileLayer(s)
		if err != nil {
			return nil, invalid("%v", err)
		}
		m.layers = append(m.layers, l)
	}

	for _, h := range a.Heads {
		k, _ := model.ParseKPI(h.KPI)
		m.heads[k] = head{w: append([]float64(nil), h.Weights...), b: h.Bias}
	}
	for _, s := range a.KPIs {
		k, _ := model.ParseKPI(s.KPI)
		m.ranges[k] = KPIRange{Scale: s.Scale, Offset: s.Offset, Min: s.Min, Max: s.Max}
	}

	m.baseline = vocab.DefaultBaselineKPIs
	for name, v := range a.BaselineKPIs {
		k, _ := model.ParseKPI(name)
		m.baseline[k] = v
	}
	return m, nil
}

// Forward returns the normalized head outputs for v.
func (m *Model) Forward(v *features.Vector) model.KPIValues {
	x := make([]float64, features.Dim)
	for i := range v {
		x[i] = (v[i] - m.center[i]) / m.scale[i]
	}
	for _, l := range m.layers {
		x = l.forward(x)
	}

	var out model.KPIValues
	for k, h := range m.heads {
		sum := h.b
		for j, w := range h.w {
			sum += w * x[j]
		}
		out[k] = sum
	}
	return out
}

// Predict runs the network and maps its outputs to clamped physical values.
func (m *Model) Predict(_ model.ProcessGraph, v *features.Vector) (model.KPIValues, error) {
	norm := m.Forward(v)
	var out model.KPIValues
	for _, k := range model.AllKPIs {
		val := m.ranges[k].Denormalize(norm[k])
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return model.KPIValues{}, simerrors.NumericInference(k.String(), val)
		}
		out[k] = m.ranges[k].Clamp(val)
	}
	return out, nil
}

// Degraded is always false for a loaded model.
func (m *Model) Degraded() bool { return false }

// Version returns the artifact's model version.
func (m *Model) Version() string { return m.version }

// BaselineKPIs returns the baseline values carried by the artifact, or the
// defaults for KPIs the artifact does not set.
func (m *Model) BaselineKPIs() model.KPIValues { return m.baseline }

// Range returns the denormalization range for k.
func (m *Model) Range(k model.KPI) KPIRange { return m.ranges[k] }

// LayerNames lists the compiled trunk layers in order.
func (m *Model) LayerNames() []string {
	out := make([]string, len(m.layers))
	for i, l := range m.layers {
		out[i] = l.name()
	}
	return out
}
