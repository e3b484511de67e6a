// Package aggregate reduces per-item vision output to one nutrition summary.
package aggregate

import (
	"math"

	"github.com/platewise/api/internal/model"
)

// Per-item upper bounds. Anything above is a model error, and capping keeps
// every sum finite.
const (
	MaxItemKcal   = 100000
	MaxItemMacroG = 10000
)

// Clamp records an out-of-range value that was replaced before aggregation
type Clamp struct {
	Index     int
	Label     string
	Field     string
	Value     float64
	ClampedTo float64
}

// Aggregate computes the summary for raw vision items. It is deterministic:
// the same input always yields the same summary and clamps.
//
// kcal_mean is the sum of item kcal. Each item widens the band by
// kcal*(1-confidence). Confidence is the kcal-weighted mean of item
// confidences. Macronutrients are summed only when every item has them.
func Aggregate(raw []model.ItemEstimate) (model.Summary, []Clamp) {
	summary := model.Summary{Items: make([]model.ItemEstimate, 0, len(raw))}
	if len(raw) == 0 {
		return summary, nil
	}

	var clamps []Clamp
	clamp := func(i int, label, field string, v, lo, hi float64) float64 {
		switch {
		case math.IsNaN(v) || v < lo:
			clamps = append(clamps, Clamp{Index: i, Label: label, Field: field, Value: v, ClampedTo: lo})
			return lo
		case v > hi:
			clamps = append(clamps, Clamp{Index: i, Label: label, Field: field, Value: v, ClampedTo: hi})
			return hi
		}
		return v
	}

	var mean, spread, weighted, confSum float64
	var macros model.Macronutrients
	allMacros := true

	for i, item := range raw {
		kcal := clamp(i, item.Label, "kcal", item.Kcal, 0, MaxItemKcal)
		conf := clamp(i, item.Label, "confidence", item.Confidence, 0, 1)

		mean += kcal
		spread += kcal * (1 - conf)
		weighted += kcal * conf
		confSum += conf

		out := model.ItemEstimate{Label: item.Label, Kcal: round2(kcal), Confidence: round2(conf)}
		if item.Macros == nil {
			allMacros = false
		} else {
			m := model.Macronutrients{
				ProteinG: clamp(i, item.Label, "protein_g", item.Macros.ProteinG, 0, MaxItemMacroG),
				FatG:     clamp(i, item.Label, "fat_g", item.Macros.FatG, 0, MaxItemMacroG),
				CarbsG:   clamp(i, item.Label, "carbs_g", item.Macros.CarbsG, 0, MaxItemMacroG),
			}
			macros.ProteinG += m.ProteinG
			macros.FatG += m.FatG
			macros.CarbsG += m.CarbsG
			out.Macros = &model.Macronutrients{
				ProteinG: round2(m.ProteinG),
				FatG:     round2(m.FatG),
				CarbsG:   round2(m.CarbsG),
			}
		}
		summary.Items = append(summary.Items, out)
	}

	confidence := 0.0
	if mean > 0 {
		confidence = weighted / mean
	} else {
		// every item is zero kcal, so fall back to the plain mean
		confidence = confSum / float64(len(raw))
	}

	summary.KcalMean = round2(mean)
	summary.KcalMin = round2(math.Max(0, mean-spread))
	summary.KcalMax = round2(mean + spread)
	summary.Confidence = round2(math.Min(1, math.Max(0, confidence)))
	if allMacros {
		summary.Macros = &model.Macronutrients{
			ProteinG: round2(macros.ProteinG),
			FatG:     round2(macros.FatG),
			CarbsG:   round2(macros.CarbsG),
		}
	}
	return summary, clamps
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
