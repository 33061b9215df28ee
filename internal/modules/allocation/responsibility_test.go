package allocation

import (
	"errors"
	"math"
	"testing"

	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
)

func respTables() (emissions, population *series.Table) {
	emissions = series.New(units.MegatonneCO2PerYr)
	population = series.New(units.People)
	for year := 1990; year <= 2000; year++ {
		emissions.Set("A", year, 10)
		emissions.Set("B", year, 2)
		emissions.Set(series.WorldEntity, year, 12)
		population.Set("A", year, 100)
		population.Set("B", year, 400)
	}
	return
}

func TestResponsibilityAbsolute(t *testing.T) {
	emis, pop := respTables()
	reg := units.NewRegistry()

	// Half-open window [1990, 2000) covers ten years
	metric, err := Responsibility(emis, pop, reg, ResponsibilityOptions{
		HistoricalYear: 1990,
		EndYear:        2000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(metric["A"]-100) > 1e-9 {
		t.Errorf("A = %g, want 100", metric["A"])
	}
	if math.Abs(metric["B"]-20) > 1e-9 {
		t.Errorf("B = %g, want 20", metric["B"])
	}
	if _, ok := metric[series.WorldEntity]; ok {
		t.Error("world row leaked into responsibility metric")
	}
}

func TestResponsibilityInclusiveEnd(t *testing.T) {
	emis, pop := respTables()
	reg := units.NewRegistry()

	metric, err := Responsibility(emis, pop, reg, ResponsibilityOptions{
		HistoricalYear: 1990,
		EndYear:        2000,
		InclusiveEnd:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Eleven years with the inclusive end
	if math.Abs(metric["A"]-110) > 1e-9 {
		t.Errorf("A = %g, want 110", metric["A"])
	}
}

func TestResponsibilityPerCapita(t *testing.T) {
	emis, pop := respTables()
	reg := units.NewRegistry()

	metric, err := Responsibility(emis, pop, reg, ResponsibilityOptions{
		HistoricalYear: 1990,
		EndYear:        2000,
		PerCapita:      true,
	})
	if err != nil {
		t.Fatal(err)
	}
	// A: 100 Mt over 1000 cumulative people, B: 20 Mt over 4000
	wantA := 100.0 * 1e6 / 1000.0
	wantB := 20.0 * 1e6 / 4000.0
	if math.Abs(metric["A"]-wantA)/wantA > 1e-12 {
		t.Errorf("A = %g, want %g", metric["A"], wantA)
	}
	if math.Abs(metric["B"]-wantB)/wantB > 1e-12 {
		t.Errorf("B = %g, want %g", metric["B"], wantB)
	}
}

func TestResponsibilityErrors(t *testing.T) {
	emis, pop := respTables()
	reg := units.NewRegistry()

	// Empty window
	_, err := Responsibility(emis, pop, reg, ResponsibilityOptions{HistoricalYear: 2050, EndYear: 2060})
	if !errors.Is(err, ErrData) {
		t.Errorf("empty window: %v", err)
	}

	// Zero population in per-capita mode
	zeroPop := series.New(units.People)
	for year := 1990; year <= 2000; year++ {
		zeroPop.Set("A", year, 0)
		zeroPop.Set("B", year, 400)
	}
	_, err = Responsibility(emis, zeroPop, reg, ResponsibilityOptions{
		HistoricalYear: 1990, EndYear: 2000, PerCapita: true,
	})
	if !errors.Is(err, ErrData) {
		t.Errorf("zero population: %v", err)
	}

	// Only world-level rows
	worldOnly := series.New(units.MegatonneCO2PerYr)
	worldOnly.Set(series.WorldEntity, 1995, 12)
	_, err = Responsibility(worldOnly, pop, reg, ResponsibilityOptions{HistoricalYear: 1990, EndYear: 2000})
	if !errors.Is(err, ErrData) {
		t.Errorf("world-only rows: %v", err)
	}
}
