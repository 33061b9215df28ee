package allocation

import (
	"errors"
	"testing"
)

func TestGiniAdjustedGDPNoOp(t *testing.T) {
	// Zero income floor or zero cap disables the adjustment entirely
	got, err := GiniAdjustedGDP(1000, 50, 0.4, 0, 0.8)
	if err != nil || got != 1000 {
		t.Errorf("zero floor: got %g, err %v", got, err)
	}

	got, err = GiniAdjustedGDP(1000, 50, 0.4, 5, 0)
	if err != nil || got != 1000 {
		t.Errorf("zero cap: got %g, err %v", got, err)
	}
}

func TestGiniAdjustedGDPReducesGDP(t *testing.T) {
	gdp := 1000.0
	adjusted, err := GiniAdjustedGDP(gdp, 100, 0.4, 2.0, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if adjusted >= gdp {
		t.Errorf("adjustment should remove income below the floor, got %g", adjusted)
	}
	if adjusted < gdp*(1-0.8) {
		t.Errorf("adjustment exceeded the cap: %g", adjusted)
	}

	// Higher inequality puts more income below the floor
	moreUnequal, err := GiniAdjustedGDP(gdp, 100, 0.6, 2.0, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if moreUnequal >= adjusted {
		t.Errorf("gini 0.6 adjusted %g should be below gini 0.4 adjusted %g", moreUnequal, adjusted)
	}
}

func TestGiniAdjustedGDPCapBinds(t *testing.T) {
	// A floor near mean income would remove most of GDP; the cap holds
	gdp := 1000.0
	adjusted, err := GiniAdjustedGDP(gdp, 100, 0.5, 9.0, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if adjusted != gdp*0.9 {
		t.Errorf("cap should bind at %g, got %g", gdp*0.9, adjusted)
	}
}

func TestGiniAdjustedGDPErrors(t *testing.T) {
	if _, err := GiniAdjustedGDP(1000, 100, 0.4, -1, 0.8); !errors.Is(err, ErrConfiguration) {
		t.Errorf("negative floor: %v", err)
	}
	if _, err := GiniAdjustedGDP(1000, 100, 0.4, 1, 1.5); !errors.Is(err, ErrConfiguration) {
		t.Errorf("cap above 1: %v", err)
	}
	if _, err := GiniAdjustedGDP(1000, 0, 0.4, 1, 0.8); !errors.Is(err, ErrData) {
		t.Errorf("zero population: %v", err)
	}
}
