package allocation

// weightSumEpsilon tolerates float representation noise at the r+c == 1.0
// boundary. Sums above 1 by more than this are rejected.
const weightSumEpsilon = 1e-9

// Weights combines the responsibility and capability principles. The residual
// 1 - (responsibility + capability) is implicitly assigned to equal per capita.
type Weights struct {
	Responsibility float64 `json:"responsibility_weight"`
	Capability     float64 `json:"capability_weight"`
}

// Validate checks the weight constraints: both non-negative, sum at most 1.0.
// Equality at the boundary is valid.
func (w Weights) Validate() error {
	if w.Responsibility < 0 {
		return configErrorf("responsibility_weight must be non-negative, got %g", w.Responsibility)
	}
	if w.Capability < 0 {
		return configErrorf("capability_weight must be non-negative, got %g", w.Capability)
	}
	if sum := w.Responsibility + w.Capability; sum > 1.0+weightSumEpsilon {
		return configErrorf("responsibility_weight (%g) + capability_weight (%g) = %g exceeds 1.0",
			w.Responsibility, w.Capability, sum)
	}
	return nil
}

// Normalized returns the weights scaled to their own sum. Used as transform
// exponent multipliers so the two principles split the adjustment between
// them. Returns zeros when both weights are zero.
func (w Weights) Normalized() (responsibility, capability float64) {
	total := w.Responsibility + w.Capability
	if total <= 0 {
		return 0, 0
	}
	return w.Responsibility / total, w.Capability / total
}

// HasAdjustments reports whether either principle carries weight
func (w Weights) HasAdjustments() bool {
	return w.Responsibility > 0 || w.Capability > 0
}
