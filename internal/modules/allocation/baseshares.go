package allocation

import (
	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
)

// BaseSharesAt computes each entity's share of world population for one year,
// implementing the equal per capita principle. Entities with zero population
// receive zero share as long as the world total is positive.
func BaseSharesAt(population *series.Table, conv units.Converter, year int) (map[string]float64, error) {
	pop, err := population.Converted(conv, units.CanonicalPopulation)
	if err != nil {
		return nil, dataErrorf("base shares: %v", err)
	}

	countries := pop.Countries()
	if len(countries) == 0 {
		return nil, dataErrorf("no entity-level population rows found")
	}

	var total float64
	values := make(map[string]float64, len(countries))
	found := false
	for _, e := range countries {
		v, ok := pop.Value(e, year)
		if !ok {
			continue
		}
		found = true
		values[e] = v
		total += v
	}
	if !found {
		min, max, _ := pop.YearRange()
		return nil, dataErrorf("year %d not found in population data (available years: %d-%d)", year, min, max)
	}
	if total <= 0 {
		return nil, dataErrorf("world population total for year %d is %g, cannot compute shares", year, total)
	}

	shares := make(map[string]float64, len(values))
	for e, v := range values {
		shares[e] = v / total
	}
	return shares, nil
}

// BaseShares computes population shares for every year in the table
func BaseShares(population *series.Table, conv units.Converter) (*ShareTable, error) {
	out := NewShareTable()
	for _, year := range population.Years() {
		shares, err := BaseSharesAt(population, conv, year)
		if err != nil {
			return nil, err
		}
		for e, v := range shares {
			out.Set(e, year, v)
		}
	}
	return out, nil
}
