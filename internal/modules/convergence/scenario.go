package convergence

import (
	"fmt"
	"math"

	"github.com/aristath/fairshares/internal/modules/allocation"
	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
)

// consistencyTolerance is the allowed absolute gap between the country
// emission sum and the world scenario total at the start year.
const consistencyTolerance = 1e-6

// Scenario is a processed world emissions pathway: the allocation years, each
// year's fraction of cumulative scenario emissions, and the world total at
// the start year taken from the full (unfiltered) series.
type Scenario struct {
	Years      []int
	Fractions  map[int]float64
	StartTotal float64
}

// PrepareScenario processes a world scenario emissions table for a
// convergence run starting at startYear. When the table carries an explicit
// world aggregate row, only that row is used; otherwise all rows are summed.
func PrepareScenario(world *series.Table, conv units.Converter, startYear int) (*Scenario, error) {
	w, err := world.Converted(conv, units.CanonicalEmissions)
	if err != nil {
		return nil, fmt.Errorf("%w: world scenario: %v", allocation.ErrData, err)
	}

	rows := []string{series.WorldEntity}
	if _, ok := w.Value(series.WorldEntity, startYear); !ok {
		rows = w.Entities()
	}

	startTotal := 0.0
	haveStart := false
	for _, e := range rows {
		if v, ok := w.Value(e, startYear); ok {
			startTotal += v
			haveStart = true
		}
	}
	if !haveStart {
		min, max, _ := w.YearRange()
		return nil, fmt.Errorf("%w: start year %d not found in world scenario emissions (available years: %d-%d)",
			allocation.ErrData, startYear, min, max)
	}

	years := w.YearsFrom(startYear)
	if len(years) < 2 {
		return nil, fmt.Errorf("%w: world scenario covers only %d year(s) from %d, convergence needs at least two",
			allocation.ErrData, len(years), startYear)
	}

	totals := make(map[int]float64, len(years))
	var sum float64
	for _, y := range years {
		var t float64
		for _, e := range rows {
			if v, ok := w.Value(e, y); ok {
				t += v
			}
		}
		totals[y] = t
		sum += t
	}
	if sum <= 0 || math.IsNaN(sum) {
		return nil, fmt.Errorf("%w: world scenario emissions sum to %g from %d onward, expected positive",
			allocation.ErrData, sum, startYear)
	}

	fractions := make(map[int]float64, len(years))
	for y, t := range totals {
		fractions[y] = t / sum
	}

	return &Scenario{Years: years, Fractions: fractions, StartTotal: startTotal}, nil
}

// ValidateConsistency checks that country emissions add up to the world
// scenario total at the start year.
func ValidateConsistency(countrySum, worldTotal float64, startYear int) error {
	if math.Abs(countrySum-worldTotal) > consistencyTolerance {
		return fmt.Errorf("%w: country emissions (%g) do not add up to the world total (%g) at year %d",
			allocation.ErrData, countrySum, worldTotal, startYear)
	}
	return nil
}
