// Package pathway generates decay-shaped annual emission trajectories from a
// cumulative budget.
package pathway

import (
	"fmt"
	"math"

	"github.com/aristath/fairshares/internal/modules/allocation"
	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
	"github.com/aristath/fairshares/pkg/formulas"
)

// Root-finding bracket for the decay rate k: solved in the default bracket
// first, widened once on failure, then failed deterministically.
const (
	kMin        = 1e-10
	kMax        = 10.0
	kMaxWidened = 100.0
	brentXTol   = 1e-12
	brentMaxIt  = 100
)

// Config describes the pathway to generate
type Config struct {
	TotalBudget float64
	StartValue  float64
	StartYear   int
	EndYear     int

	// Tolerance is the relative tolerance for budget conservation.
	// Zero means the default 1e-6.
	Tolerance float64
}

// Pathway is an annual emissions trajectory. The first value equals the
// configured start value, the last is exactly zero, and the sum equals the
// total budget within tolerance.
type Pathway struct {
	StartYear int
	Values    []float64
}

// Years returns the pathway's years in order
func (p *Pathway) Years() []int {
	out := make([]int, len(p.Values))
	for i := range p.Values {
		out[i] = p.StartYear + i
	}
	return out
}

// Sum returns the total emissions over the pathway
func (p *Pathway) Sum() float64 {
	return formulas.Sum(p.Values)
}

// Table renders the pathway as a world scenario emissions series, consumable
// by convergence allocations.
func (p *Pathway) Table(unit units.Unit, category string) *series.Table {
	t := series.NewWithCategory(unit, category)
	for i, v := range p.Values {
		t.Set(series.WorldEntity, p.StartYear+i, v)
	}
	return t
}

// Generate produces a normalized shifted exponential decay pathway
//
//	E(t) = startValue * (e^(-k*t) - e^(-k*T)) / (1 - e^(-k*T))
//
// where k is the unique positive root making the discrete sum over all years
// equal the total budget. The normalization guarantees E(0) = startValue and
// E(T) = 0 exactly, so the budget is fully consumed by the end year.
func Generate(cfg Config) (*Pathway, error) {
	if cfg.TotalBudget <= 0 {
		return nil, fmt.Errorf("%w: total budget must be positive, got %g", allocation.ErrConfiguration, cfg.TotalBudget)
	}
	if cfg.StartValue <= 0 {
		return nil, fmt.Errorf("%w: start value must be positive, got %g", allocation.ErrConfiguration, cfg.StartValue)
	}
	if cfg.EndYear <= cfg.StartYear {
		return nil, fmt.Errorf("%w: end year (%d) must be greater than start year (%d)", allocation.ErrConfiguration, cfg.EndYear, cfg.StartYear)
	}
	tolerance := cfg.Tolerance
	if tolerance == 0 {
		tolerance = 1e-6
	}

	nYears := cfg.EndYear - cfg.StartYear + 1
	finalIdx := nYears - 1

	// Maximum achievable sum is the k->0 limit: linear decline to zero,
	// summing to startValue * nYears / 2.
	maxPossibleSum := cfg.StartValue * float64(nYears) / 2.0
	if maxPossibleSum < cfg.TotalBudget {
		return nil, fmt.Errorf("%w: budget %g exceeds the maximum achievable sum %g for a decay ending at zero; increase the start value or reduce the budget",
			allocation.ErrConfiguration, cfg.TotalBudget, maxPossibleSum)
	}

	constantSum := cfg.StartValue * float64(nYears)
	residual := func(k float64) float64 {
		if k <= 0 {
			return constantSum - cfg.TotalBudget
		}
		endValue := math.Exp(-k * float64(finalIdx))
		normFactor := 1.0 - endValue
		if normFactor < 1e-15 {
			return constantSum - cfg.TotalBudget
		}
		var sum float64
		for t := 0; t < nYears; t++ {
			sum += cfg.StartValue * (math.Exp(-k*float64(t)) - endValue) / normFactor
		}
		return sum - cfg.TotalBudget
	}

	if residual(kMin) < 0 {
		return nil, fmt.Errorf("%w: even with minimal decay the pathway sum (~%g) falls short of the budget %g",
			allocation.ErrConfiguration, maxPossibleSum, cfg.TotalBudget)
	}

	hi := kMax
	if residual(hi) > 0 {
		// Even rapid decay exceeds the budget. Below the single-year value
		// the budget is unsatisfiable; otherwise widen the bracket once.
		if cfg.TotalBudget < cfg.StartValue {
			return nil, fmt.Errorf("%w: budget %g is less than the start value %g; the first year alone exceeds the budget",
				allocation.ErrConfiguration, cfg.TotalBudget, cfg.StartValue)
		}
		hi = kMaxWidened
		if residual(hi) > 0 {
			return nil, fmt.Errorf("%w: no decay rate satisfies the budget constraint; budget %g is too small relative to start value %g",
				allocation.ErrConfiguration, cfg.TotalBudget, cfg.StartValue)
		}
	}

	k, err := formulas.Brent(residual, kMin, hi, brentXTol, brentMaxIt)
	if err != nil {
		return nil, fmt.Errorf("%w: solving decay rate for budget %g over %d years: %v",
			allocation.ErrConfiguration, cfg.TotalBudget, nYears, err)
	}

	endValue := math.Exp(-k * float64(finalIdx))
	normFactor := 1.0 - endValue
	values := make([]float64, nYears)
	for t := 0; t < nYears; t++ {
		values[t] = cfg.StartValue * (math.Exp(-k*float64(t)) - endValue) / normFactor
	}

	if math.Abs(values[0]-cfg.StartValue) > 1e-6 {
		return nil, fmt.Errorf("%w: pathway first year %g does not match start value %g",
			allocation.ErrInvariant, values[0], cfg.StartValue)
	}
	if math.Abs(values[nYears-1]) > 1e-10 {
		return nil, fmt.Errorf("%w: pathway does not reach zero at end year: final value %g",
			allocation.ErrInvariant, values[nYears-1])
	}
	actualSum := formulas.Sum(values)
	if relErr := math.Abs(actualSum-cfg.TotalBudget) / cfg.TotalBudget; relErr > tolerance {
		return nil, fmt.Errorf("%w: pathway sums to %g, target was %g (relative error %.2e)",
			allocation.ErrInvariant, actualSum, cfg.TotalBudget, relErr)
	}

	return &Pathway{StartYear: cfg.StartYear, Values: values}, nil
}
