package formulas

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Sum adds up a slice of float64 values
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return floats.Sum(data)
}

// WeightedMean calculates the weighted arithmetic mean of data.
// Weights must be the same length as data and non-negative.
func WeightedMean(data, weights []float64) float64 {
	if len(data) == 0 || len(data) != len(weights) {
		return 0
	}
	return stat.Mean(data, weights)
}

// WeightedStdDev calculates the weighted population standard deviation of
// data, sqrt of the weighted average squared deviation from the weighted mean.
func WeightedStdDev(data, weights []float64) float64 {
	if len(data) == 0 || len(data) != len(weights) {
		return 0
	}
	return stat.PopStdDev(data, weights)
}

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// NormalCDF evaluates the standard normal cumulative distribution at x
func NormalCDF(x float64) float64 {
	return stdNormal.CDF(x)
}

// NormalQuantile evaluates the standard normal inverse CDF at p, p in (0,1)
func NormalQuantile(p float64) float64 {
	return stdNormal.Quantile(p)
}
