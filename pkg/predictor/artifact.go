package predictor

import (
	"fmt"

	"github.com/o2csim/o2csim/internal/model"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/features"
)

// ArtifactVersion is the artifact format version this package reads.
const ArtifactVersion = 1

// Layer type names as persisted.
const (
	LayerDense     = "dense"
	LayerBatchNorm = "batch_norm"
	LayerReLU      = "relu"
	LayerDropout   = "dropout"
)

// Artifact is the persisted form of a trained regressor and its scalers.
type Artifact struct {
	Version        int                `json:"version"`
	ModelVersion   string             `json:"model_version"`
	FeatureDim     int                `json:"feature_dim"`
	FeatureScalers []FeatureScaler    `json:"feature_scalers"`
	Layers         []LayerSpec        `json:"layers"`
	Heads          []HeadSpec         `json:"heads"`
	KPIs           []KPISpec          `json:"kpis"`
	BaselineKPIs   map[string]float64 `json:"baseline_kpis,omitempty"`
}

// FeatureScaler applies (x - Center[i]) / Scale[i] to one feature group.
// Empty Center and Scale mean identity.
type FeatureScaler struct {
	Group  string    `json:"group"`
	Center []float64 `json:"center,omitempty"`
	Scale  []float64 `json:"scale,omitempty"`
}

// LayerSpec is one layer of the shared trunk.
type LayerSpec struct {
	Type string `json:"type"`

	// dense: Weights is Out x In.
	Weights [][]float64 `json:"weights,omitempty"`
	Bias    []float64   `json:"bias,omitempty"`

	// batch_norm: stored moving statistics.
	Mean    []float64 `json:"mean,omitempty"`
	Var     []float64 `json:"var,omitempty"`
	Gamma   []float64 `json:"gamma,omitempty"`
	Beta    []float64 `json:"beta,omitempty"`
	Epsilon float64   `json:"epsilon,omitempty"`

	// dropout: training rate, ignored at inference.
	Rate float64 `json:"rate,omitempty"`
}

// HeadSpec is a single-output linear head for one KPI.
type HeadSpec struct {
	KPI     string    `json:"kpi"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// KPISpec is the persisted denormalization of one KPI.
type KPISpec struct {
	KPI    string  `json:"kpi"`
	Scale  float64 `json:"scale"`
	Offset float64 `json:"offset"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func invalid(format string, args ...interface{}) *simerrors.SimError {
	return simerrors.New(simerrors.CodeArtifactInvalid, fmt.Sprintf(format, args...))
}

// Validate checks structural consistency: dimensions line up from the
// feature vector through the trunk into every head, and every KPI has
// exactly one head and one denormalization entry.
func (a *Artifact) Validate() error {
	if a.Version != ArtifactVersion {
		return invalid("unsupported artifact version %d", a.Version)
	}
	if a.FeatureDim != features.Dim {
		return invalid("feature_dim is %d, expected %d", a.FeatureDim, features.Dim)
	}

	seenGroups := make(map[string]bool)
	for _, s := range a.FeatureScalers {
		g, err := features.ParseGroup(s.Group)
		if err != nil {
			return invalid("%v", err)
		}
		if seenGroups[s.Group] {
			return invalid("duplicate scaler for group %s", s.Group)
		}
		seenGroups[s.Group] = true
		if len(s.Center) != len(s.Scale) {
			return invalid("scaler %s: center and scale lengths differ", s.Group)
		}
		if len(s.Scale) != 0 && len(s.Scale) != g.Len() {
			return invalid("scaler %s: has %d entries, expected %d", s.Group, len(s.Scale), g.Len())
		}
		for i, sc := range s.Scale {
			if sc == 0 {
				return invalid("scaler %s: zero scale at %d", s.Group, i)
			}
		}
	}

	width := a.FeatureDim
	for i, l := range a.Layers {
		out, err := l.outputWidth(width)
		if err != nil {
			return invalid("layer %d (%s): %v", i, l.Type, err)
		}
		width = out
	}

	if len(a.Heads) != model.NumKPIs {
		return invalid("expected %d heads, got %d", model.NumKPIs, len(a.Heads))
	}
	seenHeads := make(map[model.KPI]bool)
	for _, h := range a.Heads {
		k, err := model.ParseKPI(h.KPI)
		if err != nil {
			return invalid("head: %v", err)
		}
		if seenHeads[k] {
			return invalid("duplicate head for %s", h.KPI)
		}
		seenHeads[k] = true
		if len(h.Weights) != width {
			return invalid("head %s: has %d weights, trunk width is %d", h.KPI, len(h.Weights), width)
		}
	}

	if len(a.KPIs) != model.NumKPIs {
		return invalid("expected %d kpi ranges, got %d", model.NumKPIs, len(a.KPIs))
	}
	seenKPIs := make(map[model.KPI]bool)
	for _, s := range a.KPIs {
		k, err := model.ParseKPI(s.KPI)
		if err != nil {
			return invalid("kpis: %v", err)
		}
		if seenKPIs[k] {
			return invalid("duplicate kpi range for %s", s.KPI)
		}
		seenKPIs[k] = true
		if s.Scale <= 0 || s.Min > s.Max {
			return invalid("kpi %s: invalid range", s.KPI)
		}
	}

	for name := range a.BaselineKPIs {
		if _, err := model.ParseKPI(name); err != nil {
			return invalid("baseline_kpis: %v", err)
		}
	}
	return nil
}

func (l LayerSpec) outputWidth(in int) (int, error) {
	switch l.Type {
	case LayerDense:
		if len(l.Weights) == 0 {
			return 0, fmt.Errorf("no weights")
		}
		if len(l.Bias) != len(l.Weights) {
			return 0, fmt.Errorf("bias has %d entries, expected %d", len(l.Bias), len(l.Weights))
		}
		for r, row := range l.Weights {
			if len(row) != in {
				return 0, fmt.Errorf("row %d has %d inputs, expected %d", r, len(row), in)
			}
		}
		return len(l.Weights), nil
	case LayerBatchNorm:
		for name, p := range map[string][]float64{"mean": l.Mean, "var": l.Var, "gamma": l.Gamma, "beta": l.Beta} {
			if len(p) != in {
				return 0, fmt.Errorf("%s has %d entries, expected %d", name, len(p), in)
			}
		}
		for i, v := range l.Var {
			if v+l.Epsilon <= 0 {
				return 0, fmt.Errorf("non-positive variance at %d", i)
			}
		}
		return in, nil
	case LayerReLU, LayerDropout:
		return in, nil
	default:
		return 0, fmt.Errorf("unknown layer type %q", l.Type)
	}
}
