package allocation

import (
	"math"

	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
)

// Approach identifiers for budget allocations
const (
	ApproachEqualPerCapitaBudget    = "equal-per-capita-budget"
	ApproachPerCapitaAdjustedBudget = "per-capita-adjusted-budget"
	ApproachPerCapitaAdjGiniBudget  = "per-capita-adjusted-gini-budget"
)

// BudgetRequest configures a cumulative budget allocation. Use
// NewBudgetRequest for the standard defaults.
type BudgetRequest struct {
	Population *series.Table
	Emissions  *series.Table // required when Weights.Responsibility > 0
	GDP        *series.Table // required when Weights.Capability > 0
	Gini       map[string]float64

	AllocationYear   int
	EmissionCategory string
	Weights          Weights

	HistoricalResponsibilityYear int
	ResponsibilityPerCapita      bool
	ResponsibilityExponent       float64
	ResponsibilityForm           TransformForm

	CapabilityPerCapita bool
	CapabilityExponent  float64
	CapabilityForm      TransformForm

	IncomeFloor       float64
	MaxGiniAdjustment float64

	// MaxDeviationSigma bounds shares around the equal per capita baseline.
	// Nil disables the constraint.
	MaxDeviationSigma *float64

	// PreserveAllocationYearShares switches from cumulative adjusted
	// population (default) to population shares at the allocation year only.
	PreserveAllocationYearShares bool
}

// NewBudgetRequest creates a budget request with the standard defaults:
// responsibility from 1990, per-capita metrics, asinh transform with unit
// exponent, Gini cap 0.8, deviation band of 2 sigma.
func NewBudgetRequest(population *series.Table, allocationYear int, category string) BudgetRequest {
	sigma := 2.0
	return BudgetRequest{
		Population:                   population,
		AllocationYear:               allocationYear,
		EmissionCategory:             category,
		HistoricalResponsibilityYear: 1990,
		ResponsibilityPerCapita:      true,
		ResponsibilityExponent:       1.0,
		ResponsibilityForm:           FormAsinh,
		CapabilityPerCapita:          true,
		CapabilityExponent:           1.0,
		CapabilityForm:               FormAsinh,
		MaxGiniAdjustment:            0.8,
		MaxDeviationSigma:            &sigma,
	}
}

// AllocateBudget computes a single-period budget allocation: base per capita
// shares multiplied by responsibility and capability adjustment factors,
// optionally deviation-constrained, renormalized to sum to exactly 1 at the
// allocation year.
func AllocateBudget(req BudgetRequest, conv units.Converter) (*Result, error) {
	if err := req.Weights.Validate(); err != nil {
		return nil, err
	}

	useResponsibility := req.Weights.Responsibility > 0
	useCapability := req.Weights.Capability > 0
	useGini := useCapability && req.Gini != nil

	if useResponsibility && req.Emissions == nil {
		return nil, configErrorf("responsibility_weight %g requires historical emissions data", req.Weights.Responsibility)
	}
	if useCapability && req.GDP == nil {
		return nil, configErrorf("capability_weight %g requires GDP data", req.Weights.Capability)
	}
	if req.Gini != nil && req.GDP == nil {
		return nil, configErrorf("Gini adjustment requires GDP data")
	}

	normResp, normCap := req.Weights.Normalized()

	approach := ApproachEqualPerCapitaBudget
	if useGini {
		approach = ApproachPerCapitaAdjGiniBudget
	} else if req.Weights.HasAdjustments() {
		approach = ApproachPerCapitaAdjustedBudget
	}

	pop, err := req.Population.Converted(conv, units.CanonicalPopulation)
	if err != nil {
		return nil, dataErrorf("budget population: %v", err)
	}

	years := pop.YearsFrom(req.AllocationYear)
	if len(years) == 0 || years[0] != req.AllocationYear {
		min, max, _ := pop.YearRange()
		return nil, dataErrorf("allocation year %d not found in population data (available years: %d-%d)",
			req.AllocationYear, min, max)
	}

	countries := pop.Countries()
	if len(countries) == 0 {
		return nil, dataErrorf("no entity-level population rows found")
	}

	// Adjusted population per (entity, year): pop * R(e) * C(e, t)
	adjusted := make(map[string]map[int]float64, len(countries))
	for _, e := range countries {
		row := make(map[int]float64, len(years))
		for _, y := range years {
			if v, ok := pop.Value(e, y); ok {
				row[y] = v
			}
		}
		adjusted[e] = row
	}

	if useCapability {
		if err := applyCapabilityFactors(adjusted, req, conv, years, normCap); err != nil {
			return nil, err
		}
	}

	if useResponsibility {
		metric, err := Responsibility(req.Emissions, req.Population, conv, ResponsibilityOptions{
			HistoricalYear: req.HistoricalResponsibilityYear,
			EndYear:        req.AllocationYear,
			InclusiveEnd:   false,
			PerCapita:      req.ResponsibilityPerCapita,
		})
		if err != nil {
			return nil, err
		}
		factors, err := RelativeAdjustment(metric, req.ResponsibilityForm, normResp*req.ResponsibilityExponent, true)
		if err != nil {
			return nil, err
		}
		for _, e := range countries {
			f, ok := factors[e]
			if !ok {
				// Missing metric values clamp to 1.0 before the transform
				f, err = AdjustmentFactor(math.NaN(), req.ResponsibilityForm, normResp*req.ResponsibilityExponent, true)
				if err != nil {
					return nil, err
				}
			}
			for y, v := range adjusted[e] {
				adjusted[e][y] = v * f
			}
		}
	}

	var shares map[string]float64
	if !req.PreserveAllocationYearShares {
		// Mode 1: shares of cumulative adjusted population from the
		// allocation year onward.
		totals := make(map[string]float64, len(countries))
		var world float64
		for _, e := range countries {
			var sum float64
			for _, v := range adjusted[e] {
				sum += v
			}
			totals[e] = sum
			world += sum
		}
		if world <= 0 {
			return nil, dataErrorf("adjusted world population sums to %g, cannot compute budget shares", world)
		}
		shares = make(map[string]float64, len(countries))
		for e, t := range totals {
			shares[e] = t / world
		}
		if req.MaxDeviationSigma != nil {
			cumulativePop := make(map[string]float64, len(countries))
			for _, e := range countries {
				sum, _ := pop.SumYears(e, years)
				cumulativePop[e] = sum
			}
			shares, err = ApplyDeviationConstraint(shares, cumulativePop, *req.MaxDeviationSigma)
			if err != nil {
				return nil, err
			}
		}
	} else {
		// Mode 2: shares of adjusted population at the allocation year.
		var world float64
		atYear := make(map[string]float64, len(countries))
		for _, e := range countries {
			v := adjusted[e][req.AllocationYear]
			atYear[e] = v
			world += v
		}
		if world <= 0 {
			return nil, dataErrorf("adjusted population at year %d sums to %g, cannot compute budget shares",
				req.AllocationYear, world)
		}
		shares = make(map[string]float64, len(countries))
		for e, v := range atYear {
			shares[e] = v / world
		}
		if req.MaxDeviationSigma != nil {
			popAtYear := make(map[string]float64, len(countries))
			for _, e := range countries {
				v, _ := pop.Value(e, req.AllocationYear)
				popAtYear[e] = v
			}
			shares, err = ApplyDeviationConstraint(shares, popAtYear, *req.MaxDeviationSigma)
			if err != nil {
				return nil, err
			}
		}
	}

	table := NewShareTable()
	for e, v := range shares {
		table.Set(e, req.AllocationYear, v)
	}
	table.NormalizeYear(req.AllocationYear)
	if err := table.Validate(); err != nil {
		return nil, err
	}

	params := map[string]any{
		"allocation_year":                 req.AllocationYear,
		"preserve_allocation_year_shares": req.PreserveAllocationYearShares,
		"responsibility_weight":           normResp,
		"capability_weight":               normCap,
		"emission_category":               req.EmissionCategory,
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
	if useGini {
		params["income_floor"] = req.IncomeFloor
		params["max_gini_adjustment"] = req.MaxGiniAdjustment
	}
	if req.MaxDeviationSigma != nil {
		params["max_deviation_sigma"] = *req.MaxDeviationSigma
	}

	return &Result{
		Approach:   approach,
		Parameters: params,
		Shares:     table,
	}, nil
}

// applyCapabilityFactors multiplies per-year capability adjustment factors
// into the adjusted population. The capability metric is computed on the
// years covered by both GDP and population; later years carry the last
// available factor forward, earlier years stay neutral.
func applyCapabilityFactors(adjusted map[string]map[int]float64, req BudgetRequest, conv units.Converter, years []int, normCap float64) error {
	gdpT, err := req.GDP.Converted(conv, units.CanonicalGDP)
	if err != nil {
		return dataErrorf("budget GDP: %v", err)
	}
	popT, err := req.Population.Converted(conv, units.CanonicalPopulation)
	if err != nil {
		return dataErrorf("budget population: %v", err)
	}

	common := intersectYears(gdpT.YearsFrom(req.AllocationYear), popT.YearsFrom(req.AllocationYear))
	if len(common) == 0 {
		gMin, gMax, _ := gdpT.YearRange()
		pMin, pMax, _ := popT.YearRange()
		return dataErrorf("no common years between GDP (%d-%d) and population (%d-%d) from %d onward",
			gMin, gMax, pMin, pMax, req.AllocationYear)
	}
	commonSet := make(map[int]struct{}, len(common))
	for _, y := range common {
		commonSet[y] = struct{}{}
	}

	exponent := normCap * req.CapabilityExponent
	for e, row := range adjusted {
		lastFactor := 1.0
		haveFactor := false
		for _, y := range years {
			factor := 1.0
			if _, ok := commonSet[y]; ok {
				// Entities with no metric data carry NaN into the transform,
				// which clamps to 1.0 before exponentiation.
				metric := math.NaN()
				g, gOK := gdpT.Value(e, y)
				p, pOK := popT.Value(e, y)
				if gOK && pOK {
					metric = g
					if req.Gini != nil {
						gini, has := req.Gini[e]
						if !has {
							return dataErrorf("no Gini coefficient for entity %s", e)
						}
						metric, err = GiniAdjustedGDP(g, p, gini, req.IncomeFloor, req.MaxGiniAdjustment)
						if err != nil {
							return err
						}
					}
					if req.CapabilityPerCapita {
						if p == 0 {
							return dataErrorf("zero population for %s in year %d, cannot compute per-capita capability", e, y)
						}
						metric /= p
					}
				}
				factor, err = AdjustmentFactor(metric, req.CapabilityForm, exponent, true)
				if err != nil {
					return err
				}
				lastFactor = factor
				haveFactor = true
			} else if haveFactor {
				factor = lastFactor
			}
			if v, ok := row[y]; ok {
				row[y] = v * factor
			}
		}
	}
	return nil
}
