package allocation

import (
	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
)

// ResponsibilityOptions describes the historical responsibility window.
// Budget allocations use the half-open window [HistoricalYear, EndYear);
// convergence allocations set InclusiveEnd to include the first allocation
// year itself.
type ResponsibilityOptions struct {
	HistoricalYear int
	EndYear        int
	InclusiveEnd   bool
	PerCapita      bool
}

// Responsibility aggregates historical emissions per entity over the window,
// optionally dividing by cumulative population over the same window. The
// world aggregate row is excluded. The result is a raw metric; the caller
// feeds it to RelativeAdjustment with inverse=true so higher historical
// emissions reduce allocation.
func Responsibility(emissions, population *series.Table, conv units.Converter, opts ResponsibilityOptions) (map[string]float64, error) {
	emis, err := emissions.Converted(conv, units.CanonicalEmissions)
	if err != nil {
		return nil, dataErrorf("responsibility: %v", err)
	}

	years := emis.YearsIn(opts.HistoricalYear, opts.EndYear, opts.InclusiveEnd)
	if len(years) == 0 {
		last := opts.EndYear
		if !opts.InclusiveEnd {
			last--
		}
		return nil, dataErrorf("no emission years found between %d and %d for responsibility window",
			opts.HistoricalYear, last)
	}

	countries := emis.Countries()
	if len(countries) == 0 {
		return nil, dataErrorf("no country-level emissions rows found for responsibility window")
	}

	metric := make(map[string]float64, len(countries))
	for _, e := range countries {
		sum, _ := emis.SumYears(e, years)
		metric[e] = sum
	}

	if opts.PerCapita {
		pop, err := population.Converted(conv, units.CanonicalPopulation)
		if err != nil {
			return nil, dataErrorf("responsibility population: %v", err)
		}
		popYears := pop.YearsIn(opts.HistoricalYear, opts.EndYear, opts.InclusiveEnd)
		if len(popYears) == 0 {
			return nil, dataErrorf("no population data found for responsibility window %d-%d",
				opts.HistoricalYear, opts.EndYear)
		}
		for _, e := range countries {
			popSum, ok := pop.SumYears(e, popYears)
			if !ok || popSum == 0 {
				return nil, dataErrorf("zero cumulative population for %s in responsibility window %d-%d, cannot compute per-capita responsibility",
					e, opts.HistoricalYear, opts.EndYear)
			}
			metric[e] /= popSum
		}
	}

	var total float64
	for _, v := range metric {
		total += v
	}
	if total <= 0 {
		return nil, dataErrorf("responsibility metric sums to %g over window %d-%d, expected positive",
			total, opts.HistoricalYear, opts.EndYear)
	}

	return metric, nil
}
