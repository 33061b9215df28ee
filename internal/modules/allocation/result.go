package allocation

import (
	"math"
	"sort"
)

// ShareSumTolerance is the allowed deviation of per-period share sums from 1.0
const ShareSumTolerance = 1e-10

// ShareTable maps (entity, year) to a non-negative allocation share.
// For every year the shares over all entities sum to 1 within tolerance.
// Budget allocations hold a single year, pathway allocations many.
type ShareTable struct {
	shares map[string]map[int]float64
}

// NewShareTable creates an empty share table
func NewShareTable() *ShareTable {
	return &ShareTable{shares: make(map[string]map[int]float64)}
}

// Set records a share for (entity, year)
func (s *ShareTable) Set(entity string, year int, share float64) {
	row, ok := s.shares[entity]
	if !ok {
		row = make(map[int]float64)
		s.shares[entity] = row
	}
	row[year] = share
}

// Get returns the share at (entity, year)
func (s *ShareTable) Get(entity string, year int) (float64, bool) {
	row, ok := s.shares[entity]
	if !ok {
		return 0, false
	}
	v, ok := row[year]
	return v, ok
}

// Entities returns the entity codes in sorted order
func (s *ShareTable) Entities() []string {
	out := make([]string, 0, len(s.shares))
	for e := range s.shares {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Years returns the sorted union of years
func (s *ShareTable) Years() []int {
	seen := make(map[int]struct{})
	for _, row := range s.shares {
		for y := range row {
			seen[y] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for y := range seen {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// SumYear returns the sum of shares over all entities for one year
func (s *ShareTable) SumYear(year int) float64 {
	var sum float64
	for _, row := range s.shares {
		if v, ok := row[year]; ok {
			sum += v
		}
	}
	return sum
}

// YearShares returns a copy of all entity shares for one year
func (s *ShareTable) YearShares(year int) map[string]float64 {
	out := make(map[string]float64)
	for e, row := range s.shares {
		if v, ok := row[year]; ok {
			out[e] = v
		}
	}
	return out
}

// NormalizeYear rescales one year's shares to sum to exactly 1
func (s *ShareTable) NormalizeYear(year int) {
	sum := s.SumYear(year)
	if sum == 0 {
		return
	}
	for _, row := range s.shares {
		if v, ok := row[year]; ok {
			row[year] = v / sum
		}
	}
}

// Validate checks the conservation invariant: every year sums to 1 within
// ShareSumTolerance and every share lies in [0, 1].
func (s *ShareTable) Validate() error {
	for _, year := range s.Years() {
		sum := s.SumYear(year)
		if math.Abs(sum-1.0) > ShareSumTolerance {
			return invariantErrorf("shares for year %d sum to %.15f, expected 1.0", year, sum)
		}
		for e, row := range s.shares {
			if v, ok := row[year]; ok {
				if math.IsNaN(v) || v < 0 || v > 1 {
					return invariantErrorf("share for %s in year %d is %g, outside [0, 1]", e, year, v)
				}
			}
		}
	}
	return nil
}

// Map exposes the table as entity -> year -> share for serialization.
// The returned maps are copies.
func (s *ShareTable) Map() map[string]map[int]float64 {
	out := make(map[string]map[int]float64, len(s.shares))
	for e, row := range s.shares {
		cp := make(map[int]float64, len(row))
		for y, v := range row {
			cp[y] = v
		}
		out[e] = cp
	}
	return out
}

// FromMap builds a share table from entity -> year -> share data
func FromMap(data map[string]map[int]float64) *ShareTable {
	t := NewShareTable()
	for e, row := range data {
		for y, v := range row {
			t.Set(e, y, v)
		}
	}
	return t
}

// Result is the outcome of one allocation run: the share table plus the
// approach identifier, the resolved parameters, and per-entity warnings
// attached by relaxed-mode convergence.
type Result struct {
	Approach   string            `json:"approach"`
	Parameters map[string]any    `json:"parameters"`
	Shares     *ShareTable       `json:"-"`
	Warnings   map[string]string `json:"country_warnings,omitempty"`
}
