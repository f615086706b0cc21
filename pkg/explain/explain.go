// Package explain renders deterministic before/after summaries of a
// simulation. It never calls external services.
package explain

import (
	"fmt"
	"math"
	"strings"

	"github.com/o2csim/o2csim/internal/model"
)

// Direction of a KPI change, judged by whether higher is better for that KPI.
type Direction string

const (
	Improved  Direction = "improved"
	Worsened  Direction = "worsened"
	Unchanged Direction = "unchanged"
)

// Tolerance below which a change is reported as unchanged.
const Tolerance = 0.05

// Input is everything the generator looks at.
type Input struct {
	Baseline          model.KPIValues
	Predicted         model.KPIValues
	IsBaseline        bool
	Degraded          bool
	ComputationError  bool
	UnknownActivities []string
}

// Factor is the explanation of one KPI.
type Factor struct {
	KPI       model.KPI `json:"-"`
	Name      string    `json:"kpi"`
	Before    float64   `json:"before"`
	After     float64   `json:"after"`
	Delta     float64   `json:"delta"`
	Direction Direction `json:"direction"`
	Impact    string    `json:"impact"`
}

// Factors computes the per-KPI changes in KPI order.
func Factors(baseline, predicted model.KPIValues) []Factor {
	out := make([]Factor, 0, model.NumKPIs)
	for _, k := range model.AllKPIs {
		d := predicted[k] - baseline[k]
		out = append(out, Factor{
			KPI:       k,
			Name:      k.String(),
			Before:    baseline[k],
			After:     predicted[k],
			Delta:     d,
			Direction: direction(k, d),
			Impact:    impact(baseline[k], d),
		})
	}
	return out
}

func direction(k model.KPI, delta float64) Direction {
	if math.Abs(delta) < Tolerance {
		return Unchanged
	}
	if (delta > 0) == k.HigherIsBetter() {
		return Improved
	}
	return Worsened
}

func impact(before, delta float64) string {
	rel := math.Abs(delta)
	if before != 0 {
		rel = math.Abs(delta / before)
	}
	switch {
	case rel >= 0.10:
		return "high"
	case rel >= 0.03:
		return "medium"
	default:
		return "low"
	}
}

// Format renders a KPI value with its unit.
func Format(k model.KPI, v float64) string {
	if k == model.AvgCostDelivery {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.1f%s", v, k.Unit())
}

// Summary builds the textual summary for in.
func Summary(in Input) string {
	var sb strings.Builder

	switch {
	case in.ComputationError:
		sb.WriteString("Prediction failed numerically; baseline KPIs are shown: ")
		writeValues(&sb, in.Baseline)
		sb.WriteString(".")
	case in.IsBaseline:
		sb.WriteString("Process matches the standard order-to-cash baseline; KPIs are unchanged: ")
		writeValues(&sb, in.Baseline)
		sb.WriteString(".")
	default:
		factors := Factors(in.Baseline, in.Predicted)
		improved, worsened := 0, 0
		for _, f := range factors {
			switch f.Direction {
			case Improved:
				improved++
			case Worsened:
				worsened++
			}
		}
		fmt.Fprintf(&sb, "Compared with the baseline, %d KPI(s) improve and %d worsen. ", improved, worsened)
		for i, f := range factors {
			if i > 0 {
				sb.WriteString("; ")
			}
			fmt.Fprintf(&sb, "%s %s -> %s (%s)", f.KPI.Label(), Format(f.KPI, f.Before), Format(f.KPI, f.After), f.Direction)
		}
		sb.WriteString(".")
	}

	if in.Degraded {
		sb.WriteString(" Model unavailable: figures are rule-based estimates.")
	}
	if len(in.UnknownActivities) > 0 {
		names := make([]string, len(in.UnknownActivities))
		for i, n := range in.UnknownActivities {
			names[i] = DisplayName(n)
		}
		fmt.Fprintf(&sb, " Ignored unknown activities: %s.", strings.Join(names, ", "))
	}
	return sb.String()
}

// MaxDisplayName is the longest activity name, in runes, shown in text.
const MaxDisplayName = 48

// DisplayName makes an activity name safe to print: invalid UTF-8 is
// replaced and long names are cut to MaxDisplayName runes.
func DisplayName(name string) string {
	name = strings.ToValidUTF8(name, "\uFFFD")
	r := []rune(name)
	if len(r) <= MaxDisplayName {
		return name
	}
	return string(r[:MaxDisplayName-1]) + "…"
}

func writeValues(sb *strings.Builder, v model.KPIValues) {
	for i, k := range model.AllKPIs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%s %s", strings.ToLower(k.Label()), Format(k, v[k]))
	}
}
