package convergence

import (
	"errors"
	"math"
	"testing"

	"github.com/aristath/fairshares/internal/modules/allocation"
	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
)

func perCapitaTables() (pop, emis *series.Table) {
	pop = series.New(units.People)
	emis = series.New(units.MegatonneCO2PerYr)
	for year := 2025; year <= 2035; year++ {
		pop.Set("A", year, 100)
		pop.Set("B", year, 300)
	}
	emis.Set("A", 2025, 80)
	emis.Set("B", 2025, 20)
	return
}

func TestAllocatePerCapita(t *testing.T) {
	pop, emis := perCapitaTables()
	res, err := AllocatePerCapita(PerCapitaRequest{
		Population:          pop,
		Emissions:           emis,
		FirstAllocationYear: 2025,
		ConvergenceYear:     2030,
		EmissionCategory:    "total",
	}, units.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if res.Approach != ApproachPerCapitaConvergence {
		t.Errorf("approach = %q", res.Approach)
	}

	// Start year: pure grandfathered emission shares
	a, _ := res.Shares.Get("A", 2025)
	if math.Abs(a-0.8) > 1e-12 {
		t.Errorf("A at 2025 = %g, want 0.8", a)
	}

	// From the convergence year on: pure equal per capita
	for _, y := range []int{2030, 2033, 2035} {
		a, _ := res.Shares.Get("A", y)
		if math.Abs(a-0.25) > 1e-12 {
			t.Errorf("A at %d = %g, want 0.25", y, a)
		}
	}

	// Midway through, the blend is linear: 2027 is 3/5 grandfathered
	a, _ = res.Shares.Get("A", 2027)
	want := 0.8*0.6 + 0.25*0.4
	if math.Abs(a-want) > 1e-12 {
		t.Errorf("A at 2027 = %g, want %g", a, want)
	}

	// A's share falls monotonically until convergence
	prev := math.Inf(1)
	for y := 2025; y <= 2030; y++ {
		v, _ := res.Shares.Get("A", y)
		if v >= prev {
			t.Errorf("A's share should fall strictly through %d: %g >= %g", y, v, prev)
		}
		prev = v
	}

	// Every year remains a valid distribution
	for _, y := range res.Shares.Years() {
		if s := res.Shares.SumYear(y); math.Abs(s-1.0) > 1e-12 {
			t.Errorf("year %d sums to %g", y, s)
		}
	}
}

func TestAllocatePerCapitaErrors(t *testing.T) {
	pop, emis := perCapitaTables()
	reg := units.NewRegistry()

	_, err := AllocatePerCapita(PerCapitaRequest{
		Population:          pop,
		Emissions:           emis,
		FirstAllocationYear: 2030,
		ConvergenceYear:     2030,
	}, reg)
	if !errors.Is(err, allocation.ErrConfiguration) {
		t.Errorf("first year at convergence year: %v", err)
	}

	// No emissions at the first allocation year
	_, err = AllocatePerCapita(PerCapitaRequest{
		Population:          pop,
		Emissions:           emis,
		FirstAllocationYear: 2026,
		ConvergenceYear:     2030,
	}, reg)
	if !errors.Is(err, allocation.ErrData) {
		t.Errorf("missing emissions: %v", err)
	}
}
