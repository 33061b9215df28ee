package convergence

import (
	"fmt"
	"math"

	"github.com/aristath/fairshares/internal/modules/allocation"
	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
)

// Approach identifiers for convergence allocations
const (
	ApproachCumulativePerCapita             = "cumulative-per-capita-convergence"
	ApproachCumulativePerCapitaAdjusted     = "cumulative-per-capita-convergence-adjusted"
	ApproachCumulativePerCapitaGiniAdjusted = "cumulative-per-capita-convergence-gini-adjusted"
)

// CumulativeRequest configures a cumulative per capita convergence
// allocation. Use NewCumulativeRequest for the standard defaults.
type CumulativeRequest struct {
	Population    *series.Table
	Emissions     *series.Table
	WorldScenario *series.Table
	GDP           *series.Table // required when Weights.Capability > 0
	Gini          map[string]float64

	FirstAllocationYear int
	EmissionCategory    string
	Weights             allocation.Weights

	HistoricalResponsibilityYear int
	ResponsibilityPerCapita      bool
	ResponsibilityExponent       float64
	ResponsibilityForm           allocation.TransformForm

	CapabilityPerCapita bool
	CapabilityExponent  float64
	CapabilityForm      allocation.TransformForm

	IncomeFloor       float64
	MaxGiniAdjustment float64

	MaxDeviationSigma *float64

	// Strict fails hard when the cumulative targets are infeasible; relaxed
	// mode clamps, scales, and attaches per-entity warnings instead.
	Strict              bool
	MaxConvergenceSpeed float64
}

// NewCumulativeRequest creates a convergence request with the standard
// defaults: strict mode, max speed 0.9, responsibility from 1990, per-capita
// metrics, asinh transform with unit exponent, Gini cap 0.8, 2 sigma
// deviation band.
func NewCumulativeRequest(population, emissions, worldScenario *series.Table, firstAllocationYear int, category string) CumulativeRequest {
	sigma := 2.0
	return CumulativeRequest{
		Population:                   population,
		Emissions:                    emissions,
		WorldScenario:                worldScenario,
		FirstAllocationYear:          firstAllocationYear,
		EmissionCategory:             category,
		HistoricalResponsibilityYear: 1990,
		ResponsibilityPerCapita:      true,
		ResponsibilityExponent:       1.0,
		ResponsibilityForm:           allocation.FormAsinh,
		CapabilityPerCapita:          true,
		CapabilityExponent:           1.0,
		CapabilityForm:               allocation.FormAsinh,
		MaxGiniAdjustment:            0.8,
		MaxDeviationSigma:            &sigma,
		Strict:                       true,
		MaxConvergenceSpeed:          0.9,
	}
}

// AllocateCumulative runs the cumulative per capita convergence allocation:
// shares start at actual emission shares in the first allocation year and
// evolve toward long-run shares chosen so each entity's cumulative allocation
// matches its (optionally adjusted) cumulative population share.
func AllocateCumulative(req CumulativeRequest, conv units.Converter) (*allocation.Result, error) {
	if err := req.Weights.Validate(); err != nil {
		return nil, err
	}

	useResponsibility := req.Weights.Responsibility > 0
	useCapability := req.Weights.Capability > 0
	useGini := useCapability && req.Gini != nil

	if useResponsibility && req.Emissions == nil {
		return nil, fmt.Errorf("%w: responsibility_weight %g requires historical emissions data",
			allocation.ErrConfiguration, req.Weights.Responsibility)
	}
	if useCapability && req.GDP == nil {
		return nil, fmt.Errorf("%w: capability_weight %g requires GDP data",
			allocation.ErrConfiguration, req.Weights.Capability)
	}

	normResp, normCap := req.Weights.Normalized()

	approach := ApproachCumulativePerCapita
	if useGini {
		approach = ApproachCumulativePerCapitaGiniAdjusted
	} else if req.Weights.HasAdjustments() {
		approach = ApproachCumulativePerCapitaAdjusted
	}

	// Initial shares from actual country emissions at the start year,
	// validated against the world scenario total.
	emis, err := req.Emissions.Converted(conv, units.CanonicalEmissions)
	if err != nil {
		return nil, fmt.Errorf("%w: emissions: %v", allocation.ErrData, err)
	}
	countries := emis.Countries()
	if len(countries) == 0 {
		return nil, fmt.Errorf("%w: no country-level emissions rows found", allocation.ErrData)
	}

	countryTotals := make(map[string]float64, len(countries))
	countrySum := 0.0
	haveStart := false
	for _, e := range countries {
		if v, ok := emis.Value(e, req.FirstAllocationYear); ok {
			countryTotals[e] = v
			countrySum += v
			haveStart = true
		}
	}
	if !haveStart {
		min, max, _ := emis.YearRange()
		return nil, fmt.Errorf("%w: first allocation year %d not found in country emissions (available years: %d-%d)",
			allocation.ErrData, req.FirstAllocationYear, min, max)
	}

	scenario, err := PrepareScenario(req.WorldScenario, conv, req.FirstAllocationYear)
	if err != nil {
		return nil, err
	}
	if err := ValidateConsistency(countrySum, scenario.StartTotal, req.FirstAllocationYear); err != nil {
		return nil, err
	}

	initialShares := make(map[string]float64, len(countries))
	for e, v := range countryTotals {
		initialShares[e] = v / scenario.StartTotal
	}

	// Cumulative population per entity over the allocation horizon.
	pop, err := req.Population.Converted(conv, units.CanonicalPopulation)
	if err != nil {
		return nil, fmt.Errorf("%w: population: %v", allocation.ErrData, err)
	}
	popYears := pop.YearsFrom(req.FirstAllocationYear)
	if len(popYears) == 0 {
		min, max, _ := pop.YearRange()
		return nil, fmt.Errorf("%w: no population data from year %d onward (available years: %d-%d)",
			allocation.ErrData, req.FirstAllocationYear, min, max)
	}

	cumulativePop := make(map[string]float64, len(countries))
	for _, e := range countries {
		sum, ok := pop.SumYears(e, popYears)
		if !ok {
			return nil, fmt.Errorf("%w: no population data for entity %s from year %d onward",
				allocation.ErrData, e, req.FirstAllocationYear)
		}
		cumulativePop[e] = sum
	}

	// Adjusted population: cumulative population times responsibility and
	// capability factors. No adjustment reduces to equal cumulative per capita.
	adjustedPop := make(map[string]float64, len(countries))
	for e, v := range cumulativePop {
		adjustedPop[e] = v
	}

	if useResponsibility {
		metric, err := allocation.Responsibility(req.Emissions, req.Population, conv, allocation.ResponsibilityOptions{
			HistoricalYear: req.HistoricalResponsibilityYear,
			EndYear:        req.FirstAllocationYear,
			InclusiveEnd:   true,
			PerCapita:      req.ResponsibilityPerCapita,
		})
		if err != nil {
			return nil, err
		}
		factors, err := allocation.RelativeAdjustment(metric, req.ResponsibilityForm, normResp*req.ResponsibilityExponent, true)
		if err != nil {
			return nil, err
		}
		for e := range adjustedPop {
			f, ok := factors[e]
			if !ok {
				// Missing metric values clamp to 1.0 before the transform
				f, err = allocation.AdjustmentFactor(math.NaN(), req.ResponsibilityForm, normResp*req.ResponsibilityExponent, true)
				if err != nil {
					return nil, err
				}
			}
			adjustedPop[e] *= f
		}
	}

	if useCapability {
		metric, err := allocation.Capability(req.GDP, req.Population, conv, allocation.CapabilityOptions{
			FirstAllocationYear: req.FirstAllocationYear,
			PerCapita:           req.CapabilityPerCapita,
			Gini:                req.Gini,
			IncomeFloor:         req.IncomeFloor,
			MaxGiniAdjustment:   req.MaxGiniAdjustment,
		})
		if err != nil {
			return nil, err
		}
		factors, err := allocation.RelativeAdjustment(metric, req.CapabilityForm, normCap*req.CapabilityExponent, true)
		if err != nil {
			return nil, err
		}
		for e := range adjustedPop {
			f, ok := factors[e]
			if !ok {
				f, err = allocation.AdjustmentFactor(math.NaN(), req.CapabilityForm, normCap*req.CapabilityExponent, true)
				if err != nil {
					return nil, err
				}
			}
			adjustedPop[e] *= f
		}
	}

	var adjustedSum float64
	for _, v := range adjustedPop {
		adjustedSum += v
	}
	if adjustedSum <= 0 {
		return nil, fmt.Errorf("%w: adjusted cumulative population sums to %g, cannot compute targets",
			allocation.ErrData, adjustedSum)
	}
	targetShares := make(map[string]float64, len(countries))
	for e, v := range adjustedPop {
		targetShares[e] = v / adjustedSum
	}

	if req.MaxDeviationSigma != nil {
		targetShares = constrainCumulativeTargets(targetShares, cumulativePop, *req.MaxDeviationSigma)
	}

	solution, err := FindMinimumSpeed(SolverInput{
		Years:         scenario.Years,
		StartYear:     req.FirstAllocationYear,
		YearFractions: scenario.Fractions,
		InitialShares: initialShares,
		TargetShares:  targetShares,
	}, req.Strict, req.MaxConvergenceSpeed)
	if err != nil {
		return nil, err
	}

	longRun := solution.LongRunShares
	var longRunSum float64
	for _, v := range longRun {
		longRunSum += v
	}
	if longRunSum > 0 {
		for e := range longRun {
			longRun[e] /= longRunSum
		}
	}

	// Evolve shares year by year, renormalizing after each step.
	table := allocation.NewShareTable()
	current := initialShares
	for e, v := range current {
		table.Set(e, req.FirstAllocationYear, v)
	}
	startIdx := 0
	for i, y := range scenario.Years {
		if y == req.FirstAllocationYear {
			startIdx = i
			break
		}
	}
	for _, y := range scenario.Years[startIdx+1:] {
		next := make(map[string]float64, len(current))
		var sum float64
		for e, v := range current {
			nv := v + solution.Speed*(longRun[e]-v)
			if math.IsNaN(nv) {
				return nil, fmt.Errorf("%w: share evolution produced NaN for %s in year %d",
					allocation.ErrInvariant, e, y)
			}
			next[e] = nv
			sum += nv
		}
		for e := range next {
			next[e] /= sum
			table.Set(e, y, next[e])
		}
		current = next
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}

	params := map[string]any{
		"first_allocation_year": req.FirstAllocationYear,
		"responsibility_weight": normResp,
		"capability_weight":     normCap,
		"convergence_speed":     solution.Speed,
		"emission_category":     req.EmissionCategory,
		"max_convergence_speed": req.MaxConvergenceSpeed,
		"strict":                req.Strict,
	}
	if useResponsibility {
		params["historical_responsibility_year"] = req.HistoricalResponsibilityYear
		params["responsibility_per_capita"] = req.ResponsibilityPerCapita
		params["responsibility_exponent"] = req.ResponsibilityExponent
		params["responsibility_functional_form"] = string(req.ResponsibilityForm)
	}
	if useCapability {
		params["capability_per_capita"] = req.CapabilityPerCapita
		params["capability_exponent"] = req.CapabilityExponent
		params["capability_functional_form"] = string(req.CapabilityForm)
	}
	if req.Gini != nil {
		params["income_floor"] = req.IncomeFloor
		params["max_gini_adjustment"] = req.MaxGiniAdjustment
	}
	if req.MaxDeviationSigma != nil {
		params["max_deviation_sigma"] = *req.MaxDeviationSigma
	}

	var warnings map[string]string
	if solution.Warnings != nil {
		warnings = formatWarnings(solution.Warnings)
	}

	return &allocation.Result{
		Approach:   approach,
		Parameters: params,
		Shares:     table,
		Warnings:   warnings,
	}, nil
}

// constrainCumulativeTargets clips the deviation of each cumulative target
// from the equal cumulative per capita baseline to within maxSigma
// population-weighted standard deviations, then renormalizes.
func constrainCumulativeTargets(targets, cumulativePop map[string]float64, maxSigma float64) map[string]float64 {
	var popSum float64
	for _, v := range cumulativePop {
		popSum += v
	}
	if popSum <= 0 {
		return targets
	}

	deviations := make(map[string]float64, len(targets))
	var varNumerator float64
	for e, t := range targets {
		baseline := cumulativePop[e] / popSum
		d := t - baseline
		deviations[e] = d
		varNumerator += d * d * cumulativePop[e]
	}
	weightedStd := math.Sqrt(varNumerator / popSum)

	maxDev := maxSigma * weightedStd
	out := make(map[string]float64, len(targets))
	var sum float64
	for e := range targets {
		baseline := cumulativePop[e] / popSum
		d := deviations[e]
		if d > maxDev {
			d = maxDev
		} else if d < -maxDev {
			d = -maxDev
		}
		v := baseline + d
		out[e] = v
		sum += v
	}
	for e := range out {
		out[e] /= sum
	}
	return out
}

// formatWarnings renders relaxed-mode correction factors as per-entity
// warning strings, dropping factors that round to 1.00.
func formatWarnings(factors map[string]float64) map[string]string {
	out := make(map[string]string)
	for e, f := range factors {
		rounded := math.Round(f*100) / 100
		if rounded == 1.00 {
			continue
		}
		out[e] = fmt.Sprintf("strict=false:%.2f", rounded)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
