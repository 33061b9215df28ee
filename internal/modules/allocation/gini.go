package allocation

import (
	"math"

	"github.com/aristath/fairshares/pkg/formulas"
)

// GiniAdjustedGDP removes the income share below an absolute income floor
// from total GDP, modeling the entity's income distribution as log-normal.
//
// The log-normal shape parameter follows from the Gini coefficient as
// sigma = 2*erfinv(gini), and the location parameter is chosen
// mean-preserving: mu = ln(mean income) - sigma^2/2. The population fraction
// below the floor comes from the normal CDF; the income share held by that
// fraction follows from the Lorenz curve of the log-normal,
// Phi(Phi^-1(p) - sigma). The subtraction is capped so adjusted GDP never
// falls below (1 - maxAdjustment) * GDP.
//
// A zero income floor or zero max adjustment returns GDP unchanged.
func GiniAdjustedGDP(gdp, population, gini, incomeFloor, maxAdjustment float64) (float64, error) {
	if incomeFloor < 0 {
		return 0, configErrorf("income floor must be non-negative, got %g", incomeFloor)
	}
	if maxAdjustment < 0 || maxAdjustment > 1 {
		return 0, configErrorf("max adjustment must be in [0, 1], got %g", maxAdjustment)
	}

	if maxAdjustment == 0 || incomeFloor == 0 {
		return gdp, nil
	}

	if population == 0 {
		return 0, dataErrorf("zero population when calculating Gini-adjusted GDP, mean income is undefined")
	}

	sigma := 2 * math.Erfinv(gini)
	meanIncome := gdp / population
	mu := math.Log(meanIncome) - sigma*sigma/2

	floorProportion := formulas.NormalCDF((math.Log(incomeFloor) - mu) / sigma)
	floorIncomeShare := formulas.NormalCDF(formulas.NormalQuantile(floorProportion) - sigma)

	adjusted := gdp * (1 - floorIncomeShare)
	if minAllowed := gdp * (1 - maxAdjustment); adjusted < minAllowed {
		adjusted = minAllowed
	}
	return adjusted, nil
}
