package convergence

import (
	"fmt"

	"github.com/aristath/fairshares/internal/modules/allocation"
	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
)

// ApproachPerCapitaConvergence blends grandfathered shares into equal per
// capita shares. Not an equity-based approach; included for comparison, since
// grandfathering rewards past high emissions.
const ApproachPerCapitaConvergence = "per-capita-convergence"

// PerCapitaRequest configures a per capita convergence allocation
type PerCapitaRequest struct {
	Population *series.Table
	Emissions  *series.Table

	FirstAllocationYear int
	ConvergenceYear     int
	EmissionCategory    string
}

// AllocatePerCapita blends current-emission (grandfathered) shares linearly
// into equal per capita shares between the first allocation year and the
// convergence year. Before the first allocation year the blend weight is 1
// (pure grandfathering); from the convergence year on it is 0 (pure equal
// per capita). Each year is renormalized.
func AllocatePerCapita(req PerCapitaRequest, conv units.Converter) (*allocation.Result, error) {
	if req.FirstAllocationYear >= req.ConvergenceYear {
		return nil, fmt.Errorf("%w: first allocation year (%d) must be less than convergence year (%d)",
			allocation.ErrConfiguration, req.FirstAllocationYear, req.ConvergenceYear)
	}

	pop, err := req.Population.Converted(conv, units.CanonicalPopulation)
	if err != nil {
		return nil, fmt.Errorf("%w: population: %v", allocation.ErrData, err)
	}
	emis, err := req.Emissions.Converted(conv, units.CanonicalEmissions)
	if err != nil {
		return nil, fmt.Errorf("%w: emissions: %v", allocation.ErrData, err)
	}

	years := pop.YearsFrom(req.FirstAllocationYear)
	if len(years) == 0 {
		min, max, _ := pop.YearRange()
		return nil, fmt.Errorf("%w: no population data from year %d onward (available years: %d-%d)",
			allocation.ErrData, req.FirstAllocationYear, min, max)
	}

	countries := pop.Countries()
	if len(countries) == 0 {
		return nil, fmt.Errorf("%w: no entity-level population rows found", allocation.ErrData)
	}

	var popTotal, emisTotal float64
	popAt := make(map[string]float64, len(countries))
	emisAt := make(map[string]float64, len(countries))
	for _, e := range countries {
		p, ok := pop.Value(e, req.FirstAllocationYear)
		if !ok {
			return nil, fmt.Errorf("%w: no population for %s at year %d", allocation.ErrData, e, req.FirstAllocationYear)
		}
		m, ok := emis.Value(e, req.FirstAllocationYear)
		if !ok {
			return nil, fmt.Errorf("%w: no emissions for %s at year %d", allocation.ErrData, e, req.FirstAllocationYear)
		}
		popAt[e] = p
		emisAt[e] = m
		popTotal += p
		emisTotal += m
	}
	if popTotal <= 0 {
		return nil, fmt.Errorf("%w: world population at year %d is %g", allocation.ErrData, req.FirstAllocationYear, popTotal)
	}
	if emisTotal <= 0 {
		return nil, fmt.Errorf("%w: world emissions at year %d are %g", allocation.ErrData, req.FirstAllocationYear, emisTotal)
	}

	table := allocation.NewShareTable()
	span := float64(req.ConvergenceYear - req.FirstAllocationYear)
	for _, y := range years {
		var weight float64
		switch {
		case y <= req.FirstAllocationYear:
			weight = 1.0
		case y >= req.ConvergenceYear:
			weight = 0.0
		default:
			weight = float64(req.ConvergenceYear-y) / span
		}

		var sum float64
		blended := make(map[string]float64, len(countries))
		for _, e := range countries {
			gf := emisAt[e] / emisTotal
			epc := popAt[e] / popTotal
			v := gf*weight + epc*(1.0-weight)
			blended[e] = v
			sum += v
		}
		for e, v := range blended {
			table.Set(e, y, v/sum)
		}
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}

	return &allocation.Result{
		Approach: ApproachPerCapitaConvergence,
		Parameters: map[string]any{
			"first_allocation_year": req.FirstAllocationYear,
			"convergence_year":      req.ConvergenceYear,
			"emission_category":     req.EmissionCategory,
		},
		Shares: table,
	}, nil
}
