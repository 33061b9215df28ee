package allocation

import (
	"math"
	"sort"

	"github.com/aristath/fairshares/pkg/formulas"
)

// ApplyDeviationConstraint bounds shares to a band around the equal per
// capita baseline. Both the shares and the baseline are converted to
// per-capita space, each entity's per-capita share is clamped to
// baseline +/- maxDeviationSigma standard deviations of the
// population-weighted per-capita share distribution, and the result is
// converted back and renormalized to sum to exactly 1.
//
// Population with NaN values is rejected before any division, since it would
// silently corrupt every weighted statistic downstream.
func ApplyDeviationConstraint(shares, population map[string]float64, maxDeviationSigma float64) (map[string]float64, error) {
	for e, p := range population {
		if math.IsNaN(p) {
			return nil, dataErrorf("population for %s is NaN, cannot apply deviation constraint", e)
		}
	}

	entities := make([]string, 0, len(shares))
	for e := range shares {
		if _, ok := population[e]; !ok {
			return nil, dataErrorf("no population for entity %s in deviation constraint", e)
		}
		entities = append(entities, e)
	}
	sort.Strings(entities)

	var popTotal float64
	for _, e := range entities {
		popTotal += population[e]
	}
	if popTotal <= 0 {
		return nil, dataErrorf("population total is %g, cannot apply deviation constraint", popTotal)
	}

	// Equal per capita baseline in per-capita space is the same for every
	// entity: (pop/popTotal)/pop = 1/popTotal.
	baselinePerCapita := 1.0 / popTotal

	perCapita := make([]float64, len(entities))
	weights := make([]float64, len(entities))
	for i, e := range entities {
		perCapita[i] = shares[e] / population[e]
		weights[i] = population[e]
	}

	stdDev := formulas.WeightedStdDev(perCapita, weights)

	minAllowed := baselinePerCapita - maxDeviationSigma*stdDev
	maxAllowed := baselinePerCapita + maxDeviationSigma*stdDev

	constrained := make(map[string]float64, len(entities))
	var total float64
	for i, e := range entities {
		pc := perCapita[i]
		if pc < minAllowed {
			pc = minAllowed
		} else if pc > maxAllowed {
			pc = maxAllowed
		}
		v := pc * population[e]
		constrained[e] = v
		total += v
	}
	if total <= 0 {
		return nil, invariantErrorf("constrained shares sum to %g, cannot renormalize", total)
	}
	for e := range constrained {
		constrained[e] /= total
	}
	return constrained, nil
}
