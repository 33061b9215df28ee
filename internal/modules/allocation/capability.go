package allocation

import (
	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
)

// CapabilityOptions describes the capability window and its optional Gini
// inequality correction. The window is open-ended from FirstAllocationYear.
type CapabilityOptions struct {
	FirstAllocationYear int
	PerCapita           bool

	// Gini maps entity code to Gini coefficient. When nil, GDP is used as-is.
	Gini              map[string]float64
	IncomeFloor       float64
	MaxGiniAdjustment float64
}

// Capability aggregates economic output per entity from the first allocation
// year onward: GDP (optionally Gini-adjusted per period) summed over the
// years covered by both GDP and population, optionally divided by cumulative
// population. The result is a raw metric for RelativeAdjustment.
func Capability(gdp, population *series.Table, conv units.Converter, opts CapabilityOptions) (map[string]float64, error) {
	gdpT, err := gdp.Converted(conv, units.CanonicalGDP)
	if err != nil {
		return nil, dataErrorf("capability GDP: %v", err)
	}
	popT, err := population.Converted(conv, units.CanonicalPopulation)
	if err != nil {
		return nil, dataErrorf("capability population: %v", err)
	}

	gdpYears := gdpT.YearsFrom(opts.FirstAllocationYear)
	popYears := popT.YearsFrom(opts.FirstAllocationYear)

	common := intersectYears(gdpYears, popYears)
	if len(common) == 0 {
		gMin, gMax, _ := gdpT.YearRange()
		pMin, pMax, _ := popT.YearRange()
		return nil, dataErrorf("no common years between GDP (%d-%d) and population (%d-%d) from %d onward",
			gMin, gMax, pMin, pMax, opts.FirstAllocationYear)
	}

	countries := gdpT.Countries()
	if len(countries) == 0 {
		return nil, dataErrorf("no entity-level GDP rows found for capability window")
	}

	metric := make(map[string]float64, len(countries))
	for _, e := range countries {
		var gdpSum, popSum float64
		for _, y := range common {
			g, gOK := gdpT.Value(e, y)
			p, pOK := popT.Value(e, y)
			if !gOK || !pOK {
				continue
			}
			if opts.Gini != nil {
				gini, has := opts.Gini[e]
				if !has {
					return nil, dataErrorf("no Gini coefficient for entity %s", e)
				}
				g, err = GiniAdjustedGDP(g, p, gini, opts.IncomeFloor, opts.MaxGiniAdjustment)
				if err != nil {
					return nil, err
				}
			}
			gdpSum += g
			popSum += p
		}
		if opts.PerCapita {
			if popSum == 0 {
				return nil, dataErrorf("zero cumulative population for %s in capability window from %d, cannot compute per-capita capability",
					e, opts.FirstAllocationYear)
			}
			metric[e] = gdpSum / popSum
		} else {
			metric[e] = gdpSum
		}
	}

	var total float64
	for _, v := range metric {
		total += v
	}
	if total <= 0 {
		return nil, dataErrorf("capability metric sums to %g from year %d, expected positive",
			total, opts.FirstAllocationYear)
	}

	return metric, nil
}

func intersectYears(a, b []int) []int {
	seen := make(map[int]struct{}, len(b))
	for _, y := range b {
		seen[y] = struct{}{}
	}
	var out []int
	for _, y := range a {
		if _, ok := seen[y]; ok {
			out = append(out, y)
		}
	}
	return out
}
