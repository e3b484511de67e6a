package aggregate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/api/internal/model"
)

func TestAggregateEmpty(t *testing.T) {
	s, clamps := Aggregate(nil)
	assert.Zero(t, s.KcalMean)
	assert.Zero(t, s.KcalMin)
	assert.Zero(t, s.KcalMax)
	assert.Zero(t, s.Confidence)
	assert.Nil(t, s.Macros)
	assert.NotNil(t, s.Items)
	assert.Empty(t, clamps)
}

func TestAggregateSingleItem(t *testing.T) {
	s, clamps := Aggregate([]model.ItemEstimate{{Label: "apple", Kcal: 95, Confidence: 0.9}})
	assert.Empty(t, clamps)
	assert.Equal(t, 95.0, s.KcalMean)
	assert.Equal(t, 85.5, s.KcalMin)
	assert.Equal(t, 104.5, s.KcalMax)
	assert.Equal(t, 0.9, s.Confidence)
	require.Len(t, s.Items, 1)
	assert.Equal(t, "apple", s.Items[0].Label)
}

func TestAggregateMultiItem(t *testing.T) {
	s, _ := Aggregate([]model.ItemEstimate{
		{Label: "rice", Kcal: 100, Confidence: 0.8},
		{Label: "chicken", Kcal: 200, Confidence: 0.5},
	})
	assert.Equal(t, 300.0, s.KcalMean)
	assert.Equal(t, 180.0, s.KcalMin)
	assert.Equal(t, 420.0, s.KcalMax)
	assert.Equal(t, 0.6, s.Confidence)
	assert.Equal(t, []string{"rice", "chicken"}, []string{s.Items[0].Label, s.Items[1].Label})
}

func TestAggregateClampsNegativeValues(t *testing.T) {
	s, clamps := Aggregate([]model.ItemEstimate{
		{Label: "apple", Kcal: 95, Confidence: 0.9},
		{Label: "ghost", Kcal: -50, Confidence: -0.3},
	})
	assert.Equal(t, 95.0, s.KcalMean)
	assert.Equal(t, 0.9, s.Confidence)
	require.Len(t, clamps, 2)
	assert.Equal(t, Clamp{Index: 1, Label: "ghost", Field: "kcal", Value: -50, ClampedTo: 0}, clamps[0])
	assert.Equal(t, "confidence", clamps[1].Field)
	assert.Zero(t, s.Items[1].Kcal)
}

func TestAggregateClampsConfidenceAboveOne(t *testing.T) {
	s, clamps := Aggregate([]model.ItemEstimate{{Label: "bread", Kcal: 80, Confidence: 1.4}})
	require.Len(t, clamps, 1)
	assert.Equal(t, 1.0, clamps[0].ClampedTo)
	assert.Equal(t, 1.0, s.Confidence)
	assert.Equal(t, 80.0, s.KcalMin)
	assert.Equal(t, 80.0, s.KcalMax)
}

func TestAggregateLowConfidenceFloorsAtZero(t *testing.T) {
	s, _ := Aggregate([]model.ItemEstimate{{Label: "soup", Kcal: 150, Confidence: 0}})
	assert.Equal(t, 0.0, s.KcalMin)
	assert.Equal(t, 300.0, s.KcalMax)
}

func TestAggregateZeroKcalConfidence(t *testing.T) {
	s, _ := Aggregate([]model.ItemEstimate{
		{Label: "water", Kcal: 0, Confidence: 0.9},
		{Label: "tea", Kcal: 0, Confidence: 0.7},
	})
	assert.Zero(t, s.KcalMean)
	assert.Equal(t, 0.8, s.Confidence)
}

func TestAggregateMacros(t *testing.T) {
	t.Run("summed when every item has them", func(t *testing.T) {
		s, _ := Aggregate([]model.ItemEstimate{
			{Label: "egg", Kcal: 70, Confidence: 0.9, Macros: &model.Macronutrients{ProteinG: 6, FatG: 5, CarbsG: 0.6}},
			{Label: "toast", Kcal: 80, Confidence: 0.8, Macros: &model.Macronutrients{ProteinG: 3, FatG: 1, CarbsG: 15}},
		})
		require.NotNil(t, s.Macros)
		assert.Equal(t, 9.0, s.Macros.ProteinG)
		assert.Equal(t, 6.0, s.Macros.FatG)
		assert.Equal(t, 15.6, s.Macros.CarbsG)
	})

	t.Run("null when any item lacks them", func(t *testing.T) {
		s, _ := Aggregate([]model.ItemEstimate{
			{Label: "egg", Kcal: 70, Confidence: 0.9, Macros: &model.Macronutrients{ProteinG: 6}},
			{Label: "toast", Kcal: 80, Confidence: 0.8},
		})
		assert.Nil(t, s.Macros)
		assert.NotNil(t, s.Items[0].Macros)
	})

	t.Run("negative grams clamped", func(t *testing.T) {
		s, clamps := Aggregate([]model.ItemEstimate{
			{Label: "egg", Kcal: 70, Confidence: 0.9, Macros: &model.Macronutrients{ProteinG: 6, FatG: -2}},
		})
		require.NotNil(t, s.Macros)
		assert.Zero(t, s.Macros.FatG)
		require.Len(t, clamps, 1)
		assert.Equal(t, "fat_g", clamps[0].Field)
	})
}

func TestAggregateRoundsToTwoDecimals(t *testing.T) {
	s, _ := Aggregate([]model.ItemEstimate{
		{Label: "a", Kcal: 33.333, Confidence: 0.333},
		{Label: "b", Kcal: 66.667, Confidence: 0.777},
	})
	for _, v := range []float64{s.KcalMean, s.KcalMin, s.KcalMax, s.Confidence} {
		assert.Equal(t, v, math.Round(v*100)/100)
	}
}

func TestAggregateCapsHugeValues(t *testing.T) {
	s, clamps := Aggregate([]model.ItemEstimate{
		{Label: "glitch", Kcal: 1e308, Confidence: 0.5, Macros: &model.Macronutrients{ProteinG: 1e12, FatG: 2, CarbsG: 3}},
		{Label: "apple", Kcal: 95, Confidence: 0.9, Macros: &model.Macronutrients{ProteinG: 0.5, FatG: 0.3, CarbsG: 25}},
	})
	require.Len(t, clamps, 2)
	assert.Equal(t, Clamp{Index: 0, Label: "glitch", Field: "kcal", Value: 1e308, ClampedTo: MaxItemKcal}, clamps[0])
	assert.Equal(t, Clamp{Index: 0, Label: "glitch", Field: "protein_g", Value: 1e12, ClampedTo: MaxItemMacroG}, clamps[1])

	assert.Equal(t, float64(MaxItemKcal), s.Items[0].Kcal)
	assert.Equal(t, 100095.0, s.KcalMean)
	assert.Equal(t, 50085.5, s.KcalMin)
	assert.Equal(t, 150104.5, s.KcalMax)
	require.NotNil(t, s.Macros)
	assert.Equal(t, 10000.5, s.Macros.ProteinG)
}

func TestAggregateIsDeterministic(t *testing.T) {
	in := []model.ItemEstimate{
		{Label: "pasta", Kcal: 412.37, Confidence: 0.61},
		{Label: "salad", Kcal: 88.1, Confidence: 0.93},
		{Label: "sauce", Kcal: -3, Confidence: 0.2},
	}
	a, ca := Aggregate(in)
	b, cb := Aggregate(in)
	assert.Equal(t, a, b)
	assert.Equal(t, ca, cb)
}

func TestAggregateInvariants(t *testing.T) {
	inputs := [][]model.ItemEstimate{
		{{Kcal: 1, Confidence: 1}},
		{{Kcal: 1000, Confidence: 0.01}, {Kcal: 5, Confidence: 0.99}},
		{{Kcal: -10, Confidence: 2}, {Kcal: 12.5, Confidence: -1}},
		{{Kcal: 0, Confidence: 0}},
		{{Kcal: math.NaN(), Confidence: math.NaN()}, {Kcal: 250, Confidence: 0.4}},
		{{Kcal: 1e308, Confidence: 0}, {Kcal: 1e308, Confidence: 0}},
		{{Kcal: 1e307, Confidence: 0.5}},
		{{Kcal: math.Inf(1), Confidence: 0.2}, {Kcal: math.MaxFloat64, Confidence: 1}},
		{{Kcal: 300, Confidence: 0.7, Macros: &model.Macronutrients{ProteinG: math.Inf(1), FatG: 1e308, CarbsG: 5}}},
	}
	for _, in := range inputs {
		s, _ := Aggregate(in)
		for _, v := range []float64{s.KcalMean, s.KcalMin, s.KcalMax, s.Confidence} {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "non-finite summary %+v for %+v", s, in)
		}
		if s.Macros != nil {
			for _, v := range []float64{s.Macros.ProteinG, s.Macros.FatG, s.Macros.CarbsG} {
				require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "non-finite macros %+v", s.Macros)
			}
		}
		assert.GreaterOrEqual(t, s.KcalMin, 0.0)
		assert.LessOrEqual(t, s.KcalMin, s.KcalMean)
		assert.LessOrEqual(t, s.KcalMean, s.KcalMax)
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}
}
