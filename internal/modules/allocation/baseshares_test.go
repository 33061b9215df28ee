package allocation

import (
	"errors"
	"math"
	"testing"

	"github.com/aristath/fairshares/internal/modules/series"
	"github.com/aristath/fairshares/internal/modules/units"
)

func popTable() *series.Table {
	t := series.New(units.MillionPeople)
	t.Set("DEU", 2021, 83.0)
	t.Set("IND", 2021, 1400.0)
	t.Set("USA", 2021, 332.0)
	t.Set(series.WorldEntity, 2021, 7900.0)
	return t
}

func TestBaseSharesAt(t *testing.T) {
	reg := units.NewRegistry()
	shares, err := BaseSharesAt(popTable(), reg, 2021)
	if err != nil {
		t.Fatal(err)
	}

	// World row must not participate
	if _, ok := shares[series.WorldEntity]; ok {
		t.Error("world row leaked into base shares")
	}

	total := 83.0 + 1400.0 + 332.0
	if math.Abs(shares["IND"]-1400.0/total) > 1e-12 {
		t.Errorf("IND share = %g, want %g", shares["IND"], 1400.0/total)
	}

	var sum float64
	for _, v := range shares {
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("shares sum to %g", sum)
	}
}

func TestBaseSharesAtMissingYear(t *testing.T) {
	reg := units.NewRegistry()
	_, err := BaseSharesAt(popTable(), reg, 1990)
	if !errors.Is(err, ErrData) {
		t.Errorf("missing year should return ErrData, got %v", err)
	}
}

func TestBaseSharesAtZeroTotal(t *testing.T) {
	reg := units.NewRegistry()
	tbl := series.New(units.People)
	tbl.Set("A", 2021, 0)
	tbl.Set("B", 2021, 0)
	_, err := BaseSharesAt(tbl, reg, 2021)
	if !errors.Is(err, ErrData) {
		t.Errorf("zero world total should return ErrData, got %v", err)
	}
}

func TestBaseShares(t *testing.T) {
	reg := units.NewRegistry()
	tbl := series.New(units.People)
	tbl.Set("A", 2020, 100)
	tbl.Set("B", 2020, 300)
	tbl.Set("A", 2021, 200)
	tbl.Set("B", 2021, 200)

	table, err := BaseShares(tbl, reg)
	if err != nil {
		t.Fatal(err)
	}

	if v, _ := table.Get("A", 2020); math.Abs(v-0.25) > 1e-12 {
		t.Errorf("A 2020 = %g, want 0.25", v)
	}
	if v, _ := table.Get("A", 2021); math.Abs(v-0.5) > 1e-12 {
		t.Errorf("A 2021 = %g, want 0.5", v)
	}
	if err := table.Validate(); err != nil {
		t.Errorf("base shares failed validation: %v", err)
	}
}
