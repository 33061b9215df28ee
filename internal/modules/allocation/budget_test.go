package allocation

import (
	"errors"
	"math"
	"testing"

	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
)

func budgetPopulation() *series.Table {
	t := series.New(units.People)
	// A's population grows, B's stays flat
	t.Set("A", 2021, 100)
	t.Set("A", 2022, 200)
	t.Set("B", 2021, 100)
	t.Set("B", 2022, 100)
	return t
}

func TestAllocateBudgetEqualPerCapitaCumulative(t *testing.T) {
	reg := units.NewRegistry()
	req := NewBudgetRequest(budgetPopulation(), 2021, "total")

	res, err := AllocateBudget(req, reg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Approach != ApproachEqualPerCapitaBudget {
		t.Errorf("approach = %q", res.Approach)
	}

	// Cumulative population shares: A 300/500, B 200/500
	a, _ := res.Shares.Get("A", 2021)
	b, _ := res.Shares.Get("B", 2021)
	if math.Abs(a-0.6) > 1e-12 {
		t.Errorf("A = %g, want 0.6", a)
	}
	if math.Abs(b-0.4) > 1e-12 {
		t.Errorf("B = %g, want 0.4", b)
	}
}

func TestAllocateBudgetPreserveAllocationYearShares(t *testing.T) {
	reg := units.NewRegistry()
	req := NewBudgetRequest(budgetPopulation(), 2021, "total")
	req.PreserveAllocationYearShares = true

	res, err := AllocateBudget(req, reg)
	if err != nil {
		t.Fatal(err)
	}

	// Population at 2021 only: equal split
	a, _ := res.Shares.Get("A", 2021)
	if math.Abs(a-0.5) > 1e-12 {
		t.Errorf("A = %g, want 0.5", a)
	}
}

func TestAllocateBudgetResponsibilityPenalty(t *testing.T) {
	reg := units.NewRegistry()

	pop := series.New(units.People)
	emis := series.New(units.MegatonneCO2PerYr)
	for year := 1990; year <= 2021; year++ {
		pop.Set("A", year, 100)
		pop.Set("B", year, 100)
		emis.Set("A", year, 10)
		emis.Set("B", year, 1)
	}

	req := NewBudgetRequest(pop, 2021, "total")
	req.Emissions = emis
	req.Weights = Weights{Responsibility: 1.0}

	res, err := AllocateBudget(req, reg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Approach != ApproachPerCapitaAdjustedBudget {
		t.Errorf("approach = %q", res.Approach)
	}

	a, _ := res.Shares.Get("A", 2021)
	b, _ := res.Shares.Get("B", 2021)
	if a >= b {
		t.Errorf("high emitter should receive less: A=%g, B=%g", a, b)
	}
	if math.Abs(a+b-1.0) > 1e-12 {
		t.Errorf("shares sum to %g", a+b)
	}
}

func TestAllocateBudgetCapabilityGini(t *testing.T) {
	reg := units.NewRegistry()

	pop := series.New(units.People)
	gdp := series.New(units.BillionUSD)
	for year := 2021; year <= 2025; year++ {
		pop.Set("A", year, 100)
		pop.Set("B", year, 100)
		gdp.Set("A", year, 10)
		gdp.Set("B", year, 1)
	}

	req := NewBudgetRequest(pop, 2021, "total")
	req.GDP = gdp
	req.Weights = Weights{Capability: 1.0}
	req.Gini = map[string]float64{"A": 0.4, "B": 0.4}
	req.IncomeFloor = 0.001

	res, err := AllocateBudget(req, reg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Approach != ApproachPerCapitaAdjGiniBudget {
		t.Errorf("approach = %q", res.Approach)
	}

	a, _ := res.Shares.Get("A", 2021)
	b, _ := res.Shares.Get("B", 2021)
	if a >= b {
		t.Errorf("richer entity should receive less: A=%g, B=%g", a, b)
	}
	if _, ok := res.Parameters["income_floor"]; !ok {
		t.Error("parameters should record the income floor")
	}
}

func TestAllocateBudgetMissingCapabilityMetric(t *testing.T) {
	reg := units.NewRegistry()

	pop := series.New(units.People)
	pop.Set("A", 2025, 100)
	pop.Set("B", 2025, 100)
	gdp := series.New(units.BillionUSD)
	gdp.Set("A", 2025, 200)

	req := NewBudgetRequest(pop, 2025, "total")
	req.GDP = gdp
	req.Weights = Weights{Capability: 1.0}
	req.PreserveAllocationYearShares = true
	req.MaxDeviationSigma = nil

	res, err := AllocateBudget(req, reg)
	if err != nil {
		t.Fatal(err)
	}

	// B has no GDP: its metric clamps to 1.0 and still passes through the
	// transform, so its factor is asinh(1)^-1, not 1.0.
	fA := 1 / math.Asinh(2)
	fB := 1 / math.Asinh(1)
	want := fA / (fA + fB)
	a, _ := res.Shares.Get("A", 2025)
	if math.Abs(a-want) > 1e-12 {
		t.Errorf("A = %g, want %g", a, want)
	}
}

func TestAllocateBudgetMissingResponsibilityMetric(t *testing.T) {
	reg := units.NewRegistry()

	pop := series.New(units.People)
	withEmissions := series.New(units.MegatonneCO2PerYr)
	withoutEmissions := series.New(units.MegatonneCO2PerYr)
	for year := 1990; year <= 2025; year++ {
		pop.Set("A", year, 100)
		pop.Set("B", year, 100)
		if year < 2025 {
			withEmissions.Set("A", year, 10)
			withoutEmissions.Set("A", year, 10)
			// B's per-capita responsibility metric comes out exactly 1.0
			withEmissions.Set("B", year, 100)
		}
	}

	run := func(emis *series.Table) (float64, float64) {
		req := NewBudgetRequest(pop, 2025, "total")
		req.Emissions = emis
		req.Weights = Weights{Responsibility: 1.0}
		req.MaxDeviationSigma = nil
		res, err := AllocateBudget(req, reg)
		if err != nil {
			t.Fatal(err)
		}
		a, _ := res.Shares.Get("A", 2025)
		b, _ := res.Shares.Get("B", 2025)
		return a, b
	}

	// An entity absent from the emissions data behaves exactly like one
	// whose metric equals the clamp value.
	aMissing, bMissing := run(withoutEmissions)
	aNeutral, bNeutral := run(withEmissions)
	if math.Abs(aMissing-aNeutral) > 1e-12 || math.Abs(bMissing-bNeutral) > 1e-12 {
		t.Errorf("missing metric = (%g, %g), metric 1.0 = (%g, %g)",
			aMissing, bMissing, aNeutral, bNeutral)
	}
}

func TestAllocateBudgetSingleEntity(t *testing.T) {
	reg := units.NewRegistry()

	pop := series.New(units.People)
	emis := series.New(units.MegatonneCO2PerYr)
	gdp := series.New(units.BillionUSD)
	for year := 1990; year <= 2025; year++ {
		pop.Set("A", year, 100)
		if year < 2025 {
			emis.Set("A", year, 5)
		}
	}
	gdp.Set("A", 2025, 50)

	req := NewBudgetRequest(pop, 2025, "total")
	req.Emissions = emis
	req.GDP = gdp
	req.Weights = Weights{Responsibility: 0.3, Capability: 0.3}

	res, err := AllocateBudget(req, reg)
	if err != nil {
		t.Fatal(err)
	}
	a, ok := res.Shares.Get("A", 2025)
	if !ok {
		t.Fatal("no share for A")
	}
	if a != 1.0 {
		t.Errorf("single entity share = %g, want exactly 1", a)
	}
}

func TestAllocateBudgetErrors(t *testing.T) {
	reg := units.NewRegistry()

	// Responsibility weight without emissions data
	req := NewBudgetRequest(budgetPopulation(), 2021, "total")
	req.Weights = Weights{Responsibility: 0.5}
	if _, err := AllocateBudget(req, reg); !errors.Is(err, ErrConfiguration) {
		t.Errorf("missing emissions: %v", err)
	}

	// Capability weight without GDP data
	req = NewBudgetRequest(budgetPopulation(), 2021, "total")
	req.Weights = Weights{Capability: 0.5}
	if _, err := AllocateBudget(req, reg); !errors.Is(err, ErrConfiguration) {
		t.Errorf("missing GDP: %v", err)
	}

	// Allocation year outside the population data
	req = NewBudgetRequest(budgetPopulation(), 1990, "total")
	if _, err := AllocateBudget(req, reg); !errors.Is(err, ErrData) {
		t.Errorf("missing allocation year: %v", err)
	}

	// Invalid weights
	req = NewBudgetRequest(budgetPopulation(), 2021, "total")
	req.Weights = Weights{Responsibility: 0.8, Capability: 0.8}
	if _, err := AllocateBudget(req, reg); !errors.Is(err, ErrConfiguration) {
		t.Errorf("invalid weights: %v", err)
	}
}
