// Package units provides explicit physical-unit conversion for allocation
// inputs. A Registry is passed to every component that does arithmetic; there
// is no process-wide default.
package units

import "fmt"

// Unit is a canonical unit label
type Unit string

// Units known to the default registry
const (
	Unitless Unit = "unitless"

	People         Unit = "people"
	ThousandPeople Unit = "thousand people"
	MillionPeople  Unit = "million people"

	USD        Unit = "USD"
	MillionUSD Unit = "million USD"
	BillionUSD Unit = "billion USD"

	TonneCO2PerYear   Unit = "t CO2/yr"
	KilotonneCO2PerYr Unit = "kt CO2/yr"
	MegatonneCO2PerYr Unit = "Mt CO2/yr"
	GigatonneCO2PerYr Unit = "Gt CO2/yr"
)

// Canonical units per dimension, used by callers that normalize before math
const (
	CanonicalPopulation = People
	CanonicalGDP        = BillionUSD
	CanonicalEmissions  = MegatonneCO2PerYr
)

// Converter converts values between units of the same dimension
type Converter interface {
	// Factor returns the multiplier taking a value in `from` to `to`
	Factor(from, to Unit) (float64, error)
	// Convert applies Factor to a single value
	Convert(value float64, from, to Unit) (float64, error)
}

type unitDef struct {
	dimension string
	scale     float64 // multiplier to the dimension's base unit
}

// Registry is a table-driven Converter with linear unit scales
type Registry struct {
	defs map[Unit]unitDef
}

// NewRegistry creates a registry pre-loaded with the units used by
// allocation inputs: population counts, GDP, CO2 emission rates.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[Unit]unitDef)}

	r.Define(Unitless, "none", 1)

	r.Define(People, "population", 1)
	r.Define(ThousandPeople, "population", 1e3)
	r.Define(MillionPeople, "population", 1e6)

	r.Define(USD, "currency", 1)
	r.Define(MillionUSD, "currency", 1e6)
	r.Define(BillionUSD, "currency", 1e9)

	r.Define(TonneCO2PerYear, "emissions", 1)
	r.Define(KilotonneCO2PerYr, "emissions", 1e3)
	r.Define(MegatonneCO2PerYr, "emissions", 1e6)
	r.Define(GigatonneCO2PerYr, "emissions", 1e9)

	return r
}

// Define registers a unit with its dimension and scale to the dimension base
func (r *Registry) Define(u Unit, dimension string, scale float64) {
	r.defs[u] = unitDef{dimension: dimension, scale: scale}
}

// Factor returns the multiplier taking a value in `from` to `to`
func (r *Registry) Factor(from, to Unit) (float64, error) {
	fd, ok := r.defs[from]
	if !ok {
		return 0, fmt.Errorf("unknown unit: %q", from)
	}
	td, ok := r.defs[to]
	if !ok {
		return 0, fmt.Errorf("unknown unit: %q", to)
	}
	if fd.dimension != td.dimension {
		return 0, fmt.Errorf("incompatible units: %q (%s) -> %q (%s)", from, fd.dimension, to, td.dimension)
	}
	return fd.scale / td.scale, nil
}

// Convert converts a single value between compatible units
func (r *Registry) Convert(value float64, from, to Unit) (float64, error) {
	f, err := r.Factor(from, to)
	if err != nil {
		return 0, err
	}
	return value * f, nil
}
