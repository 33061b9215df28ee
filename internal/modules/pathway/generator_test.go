package pathway

import (
	"errors"
	"math"
	"testing"

	"github.com/aristath/fairshares/internal/modules/allocation"
	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
)

func TestGenerate(t *testing.T) {
	p, err := Generate(Config{
		TotalBudget: 700,
		StartValue:  50,
		StartYear:   2020,
		EndYear:     2050,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(p.Values) != 31 {
		t.Fatalf("pathway has %d years, want 31", len(p.Values))
	}
	if math.Abs(p.Values[0]-50) > 1e-6 {
		t.Errorf("first year = %g, want 50", p.Values[0])
	}
	if math.Abs(p.Values[len(p.Values)-1]) > 1e-10 {
		t.Errorf("final year = %g, want 0", p.Values[len(p.Values)-1])
	}
	if relErr := math.Abs(p.Sum()-700) / 700; relErr > 1e-6 {
		t.Errorf("sum = %g, relative error %g", p.Sum(), relErr)
	}

	// Strictly declining
	for i := 1; i < len(p.Values); i++ {
		if p.Values[i] >= p.Values[i-1] {
			t.Errorf("pathway not declining at index %d: %g >= %g", i, p.Values[i], p.Values[i-1])
		}
	}

	years := p.Years()
	if years[0] != 2020 || years[len(years)-1] != 2050 {
		t.Errorf("years span %d-%d, want 2020-2050", years[0], years[len(years)-1])
	}
}

func TestGenerateNearLinearBudget(t *testing.T) {
	// Budget close to the linear-decline maximum (startValue*n/2) still solves
	p, err := Generate(Config{
		TotalBudget: 50 * 31 / 2.0 * 0.98,
		StartValue:  50,
		StartYear:   2020,
		EndYear:     2050,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := 50 * 31 / 2.0 * 0.98
	if relErr := math.Abs(p.Sum()-want) / want; relErr > 1e-6 {
		t.Errorf("sum = %g, want %g", p.Sum(), want)
	}
}

func TestGenerateTightBudget(t *testing.T) {
	// A budget barely above the start value forces rapid decay
	p, err := Generate(Config{
		TotalBudget: 60,
		StartValue:  50,
		StartYear:   2020,
		EndYear:     2050,
	})
	if err != nil {
		t.Fatal(err)
	}
	if relErr := math.Abs(p.Sum()-60) / 60; relErr > 1e-6 {
		t.Errorf("sum = %g, want 60", p.Sum())
	}
}

func TestGenerateErrors(t *testing.T) {
	base := Config{TotalBudget: 700, StartValue: 50, StartYear: 2020, EndYear: 2050}

	cfg := base
	cfg.TotalBudget = 0
	if _, err := Generate(cfg); !errors.Is(err, allocation.ErrConfiguration) {
		t.Errorf("zero budget: %v", err)
	}

	cfg = base
	cfg.StartValue = -1
	if _, err := Generate(cfg); !errors.Is(err, allocation.ErrConfiguration) {
		t.Errorf("negative start value: %v", err)
	}

	cfg = base
	cfg.EndYear = 2020
	if _, err := Generate(cfg); !errors.Is(err, allocation.ErrConfiguration) {
		t.Errorf("end year at start year: %v", err)
	}

	// Budget above the linear-decline maximum (50*31/2 = 775) cannot end at zero
	cfg = base
	cfg.TotalBudget = 1000
	if _, err := Generate(cfg); !errors.Is(err, allocation.ErrConfiguration) {
		t.Errorf("budget above maximum: %v", err)
	}

	cfg = base
	cfg.TotalBudget = 50*31/2.0 + 1
	if _, err := Generate(cfg); !errors.Is(err, allocation.ErrConfiguration) {
		t.Errorf("budget just above maximum: %v", err)
	}

	// Budget below the start value cannot cover even the first year
	cfg = base
	cfg.TotalBudget = 40
	if _, err := Generate(cfg); !errors.Is(err, allocation.ErrConfiguration) {
		t.Errorf("budget below start value: %v", err)
	}
}

func TestPathwayTable(t *testing.T) {
	p, err := Generate(Config{TotalBudget: 300, StartValue: 40, StartYear: 2025, EndYear: 2040})
	if err != nil {
		t.Fatal(err)
	}

	table := p.Table(units.MegatonneCO2PerYr, "total")
	v, ok := table.Value(series.WorldEntity, 2025)
	if !ok {
		t.Fatal("world row missing at start year")
	}
	if math.Abs(v-40) > 1e-6 {
		t.Errorf("world value at 2025 = %g, want 40", v)
	}
	if len(table.Years()) != 16 {
		t.Errorf("table covers %d years, want 16", len(table.Years()))
	}
}
