// Package series holds per-entity annual time series (population, GDP,
// historical emissions) keyed by entity code and year.
package series

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/fairshares/internal/modules/units"
)

// WorldEntity is the aggregate row present in emission scenarios. It is
// excluded from every per-country calculation.
const WorldEntity = "World"

// Table is a per-entity annual series with a unit tag and an optional
// category tag (used for emissions, e.g. "fossil").
type Table struct {
	unit     units.Unit
	category string
	data     map[string]map[int]float64
}

// New creates an empty table with the given unit
func New(unit units.Unit) *Table {
	return &Table{unit: unit, data: make(map[string]map[int]float64)}
}

// NewWithCategory creates an empty table with a unit and category tag
func NewWithCategory(unit units.Unit, category string) *Table {
	t := New(unit)
	t.category = category
	return t
}

// Unit returns the table's unit tag
func (t *Table) Unit() units.Unit { return t.unit }

// Category returns the table's category tag (empty when untagged)
func (t *Table) Category() string { return t.category }

// Set records a value for (entity, year)
func (t *Table) Set(entity string, year int, value float64) {
	row, ok := t.data[entity]
	if !ok {
		row = make(map[int]float64)
		t.data[entity] = row
	}
	row[year] = value
}

// Value returns the value at (entity, year) and whether it exists
func (t *Table) Value(entity string, year int) (float64, bool) {
	row, ok := t.data[entity]
	if !ok {
		return 0, false
	}
	v, ok := row[year]
	return v, ok
}

// Entities returns all entity codes in sorted order, including the world row
func (t *Table) Entities() []string {
	out := make([]string, 0, len(t.data))
	for e := range t.data {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Countries returns entity codes excluding the world aggregate row
func (t *Table) Countries() []string {
	out := make([]string, 0, len(t.data))
	for e := range t.data {
		if e != WorldEntity {
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out
}

// Years returns the sorted union of years across all entities
func (t *Table) Years() []int {
	seen := make(map[int]struct{})
	for _, row := range t.data {
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

// YearRange returns the min and max year present; ok is false when empty
func (t *Table) YearRange() (min, max int, ok bool) {
	years := t.Years()
	if len(years) == 0 {
		return 0, 0, false
	}
	return years[0], years[len(years)-1], true
}

// YearsIn returns the years present in the table inside [start, end).
// With inclusiveEnd the window is [start, end].
func (t *Table) YearsIn(start, end int, inclusiveEnd bool) []int {
	var out []int
	for _, y := range t.Years() {
		if y < start {
			continue
		}
		if inclusiveEnd {
			if y > end {
				continue
			}
		} else if y >= end {
			continue
		}
		out = append(out, y)
	}
	return out
}

// YearsFrom returns the years present in the table at or after start
func (t *Table) YearsFrom(start int) []int {
	var out []int
	for _, y := range t.Years() {
		if y >= start {
			out = append(out, y)
		}
	}
	return out
}

// SumYears sums an entity's values over the given years. Missing years
// contribute zero; ok reports whether at least one year was present.
func (t *Table) SumYears(entity string, years []int) (sum float64, ok bool) {
	row, present := t.data[entity]
	if !present {
		return 0, false
	}
	for _, y := range years {
		if v, has := row[y]; has {
			sum += v
			ok = true
		}
	}
	return sum, ok
}

// HasNaN reports whether any value in the table is NaN
func (t *Table) HasNaN() bool {
	for _, row := range t.data {
		for _, v := range row {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// CommonYears returns the sorted years present in both tables
func (t *Table) CommonYears(other *Table) []int {
	seen := make(map[int]struct{})
	for _, y := range other.Years() {
		seen[y] = struct{}{}
	}
	var out []int
	for _, y := range t.Years() {
		if _, ok := seen[y]; ok {
			out = append(out, y)
		}
	}
	return out
}

// Converted returns a copy of the table with all values converted to the
// target unit using the supplied converter.
func (t *Table) Converted(conv units.Converter, target units.Unit) (*Table, error) {
	factor, err := conv.Factor(t.unit, target)
	if err != nil {
		return nil, fmt.Errorf("converting series %q -> %q: %w", t.unit, target, err)
	}
	out := NewWithCategory(target, t.category)
	for e, row := range t.data {
		for y, v := range row {
			out.Set(e, y, v*factor)
		}
	}
	return out, nil
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	out := NewWithCategory(t.unit, t.category)
	for e, row := range t.data {
		for y, v := range row {
			out.Set(e, y, v)
		}
	}
	return out
}
