package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		want float64
	}{
		{"simple", []float64{1, 2, 3, 4}, 2.5},
		{"single value", []float64{7}, 7},
		{"empty", []float64{}, 0},
		{"negative values", []float64{-2, 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Mean(tt.data), 1e-12)
		})
	}
}

func TestStdDev(t *testing.T) {
	// Sample standard deviation of {2, 4, 4, 4, 5, 5, 7, 9} is ~2.138
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 2.13809, got, 1e-4)

	assert.Equal(t, 0.0, StdDev(nil))
}

func TestSum(t *testing.T) {
	assert.InDelta(t, 10.0, Sum([]float64{1, 2, 3, 4}), 1e-12)
	assert.Equal(t, 0.0, Sum(nil))
}

func TestWeightedMean(t *testing.T) {
	// Weighted mean of {1, 3} with weights {3, 1} is 1.5
	got := WeightedMean([]float64{1, 3}, []float64{3, 1})
	assert.InDelta(t, 1.5, got, 1e-12)

	// Length mismatch returns zero
	assert.Equal(t, 0.0, WeightedMean([]float64{1, 2}, []float64{1}))
}

func TestWeightedStdDev(t *testing.T) {
	// Equal weights reduce to the population standard deviation:
	// pop std of {1, 2, 3, 4} is sqrt(1.25)
	got := WeightedStdDev([]float64{1, 2, 3, 4}, []float64{1, 1, 1, 1})
	assert.InDelta(t, math.Sqrt(1.25), got, 1e-12)

	// A zero-weight point does not contribute
	got = WeightedStdDev([]float64{1, 2, 3, 4, 100}, []float64{1, 1, 1, 1, 0})
	assert.InDelta(t, math.Sqrt(1.25), got, 1e-12)
}

func TestNormalCDF(t *testing.T) {
	tests := []struct {
		x    float64
		want float64
	}{
		{0, 0.5},
		{1.959963984540054, 0.975},
		{-1.959963984540054, 0.025},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalCDF(tt.x), 1e-9)
	}
}

func TestNormalQuantile(t *testing.T) {
	// Quantile is the inverse of the CDF
	for _, p := range []float64{0.025, 0.25, 0.5, 0.75, 0.975} {
		x := NormalQuantile(p)
		assert.InDelta(t, p, NormalCDF(x), 1e-9)
	}
	assert.InDelta(t, 0.0, NormalQuantile(0.5), 1e-12)
}
