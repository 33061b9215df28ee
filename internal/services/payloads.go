package services

import (
	"fmt"
	"strconv"

	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
)

// SeriesPayload is the wire form of an annual data table: a unit code plus
// entity -> year -> value, with years as JSON object keys.
type SeriesPayload struct {
	Unit string                        `json:"unit"`
	Data map[string]map[string]float64 `json:"data"`
}

// Table parses the payload into a series table
func (p *SeriesPayload) Table(category string) (*series.Table, error) {
	if p == nil || len(p.Data) == 0 {
		return nil, fmt.Errorf("series payload is empty")
	}
	t := series.NewWithCategory(units.Unit(p.Unit), category)
	for entity, row := range p.Data {
		for yearStr, v := range row {
			year, err := strconv.Atoi(yearStr)
			if err != nil {
				return nil, fmt.Errorf("invalid year %q for entity %s", yearStr, entity)
			}
			t.Set(entity, year, v)
		}
	}
	return t, nil
}

// BudgetAllocationRequest is the wire form of a budget allocation run.
// Pointer fields fall back to the configured defaults when omitted.
type BudgetAllocationRequest struct {
	Population *SeriesPayload     `json:"population"`
	Emissions  *SeriesPayload     `json:"emissions,omitempty"`
	GDP        *SeriesPayload     `json:"gdp,omitempty"`
	Gini       map[string]float64 `json:"gini,omitempty"`

	AllocationYear       int     `json:"allocation_year"`
	EmissionCategory     string  `json:"emission_category"`
	ResponsibilityWeight float64 `json:"responsibility_weight,omitempty"`
	CapabilityWeight     float64 `json:"capability_weight,omitempty"`

	HistoricalResponsibilityYear *int     `json:"historical_responsibility_year,omitempty"`
	ResponsibilityPerCapita      *bool    `json:"responsibility_per_capita,omitempty"`
	ResponsibilityExponent       *float64 `json:"responsibility_exponent,omitempty"`
	ResponsibilityForm           string   `json:"responsibility_functional_form,omitempty"`
	CapabilityPerCapita          *bool    `json:"capability_per_capita,omitempty"`
	CapabilityExponent           *float64 `json:"capability_exponent,omitempty"`
	CapabilityForm               string   `json:"capability_functional_form,omitempty"`

	IncomeFloor       float64  `json:"income_floor,omitempty"`
	MaxGiniAdjustment *float64 `json:"max_gini_adjustment,omitempty"`

	MaxDeviationSigma     *float64 `json:"max_deviation_sigma,omitempty"`
	NoDeviationConstraint bool     `json:"no_deviation_constraint,omitempty"`

	PreserveAllocationYearShares bool `json:"preserve_allocation_year_shares,omitempty"`

	// Recurring runs are stored for replay by the sweep job.
	Recurring bool `json:"recurring,omitempty"`
}

// PathwayAllocationRequest is the wire form of a pathway allocation run:
// either a per capita convergence or one of the cumulative convergence
// approaches, selected by Approach.
type PathwayAllocationRequest struct {
	Approach string `json:"approach"`

	Population    *SeriesPayload     `json:"population"`
	Emissions     *SeriesPayload     `json:"emissions"`
	GDP           *SeriesPayload     `json:"gdp,omitempty"`
	WorldScenario *SeriesPayload     `json:"world_scenario,omitempty"`
	Gini          map[string]float64 `json:"gini,omitempty"`

	FirstAllocationYear int    `json:"first_allocation_year"`
	ConvergenceYear     int    `json:"convergence_year,omitempty"`
	EmissionCategory    string `json:"emission_category"`

	ResponsibilityWeight float64 `json:"responsibility_weight,omitempty"`
	CapabilityWeight     float64 `json:"capability_weight,omitempty"`

	HistoricalResponsibilityYear *int     `json:"historical_responsibility_year,omitempty"`
	ResponsibilityPerCapita      *bool    `json:"responsibility_per_capita,omitempty"`
	ResponsibilityExponent       *float64 `json:"responsibility_exponent,omitempty"`
	ResponsibilityForm           string   `json:"responsibility_functional_form,omitempty"`
	CapabilityPerCapita          *bool    `json:"capability_per_capita,omitempty"`
	CapabilityExponent           *float64 `json:"capability_exponent,omitempty"`
	CapabilityForm               string   `json:"capability_functional_form,omitempty"`

	IncomeFloor       float64  `json:"income_floor,omitempty"`
	MaxGiniAdjustment *float64 `json:"max_gini_adjustment,omitempty"`

	MaxDeviationSigma     *float64 `json:"max_deviation_sigma,omitempty"`
	NoDeviationConstraint bool     `json:"no_deviation_constraint,omitempty"`

	Strict              *bool    `json:"strict,omitempty"`
	MaxConvergenceSpeed *float64 `json:"max_convergence_speed,omitempty"`

	Recurring bool `json:"recurring,omitempty"`
}

// PathwayRequest is the wire form of a pathway generation call
type PathwayRequest struct {
	TotalBudget float64 `json:"total_budget"`
	StartValue  float64 `json:"start_value"`
	StartYear   int     `json:"start_year"`
	EndYear     int     `json:"end_year"`
	Unit        string  `json:"unit,omitempty"`
	Tolerance   float64 `json:"tolerance,omitempty"`
}
