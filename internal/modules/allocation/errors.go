package allocation

import (
	"errors"
	"fmt"
)

// Error categories. Callers match with errors.Is to distinguish bad
// configuration from insufficient input data and mathematical infeasibility.
var (
	// ErrConfiguration marks invalid parameters (weights, forms, domains).
	// Never retryable.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrData marks insufficient or inconsistent input data (missing years,
	// empty windows, zero totals). The message carries the offending range.
	ErrData = errors.New("insufficient data")

	// ErrInfeasible marks convergence targets that cannot be met in strict mode.
	ErrInfeasible = errors.New("infeasible allocation")

	// ErrInvariant marks computed shares that violate conservation. A defect,
	// never recovered automatically.
	ErrInvariant = errors.New("invariant violation")
)

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func dataErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrData, fmt.Sprintf(format, args...))
}

func invariantErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
