// Package convergence implements pathway allocations that move shares from
// current-emission levels toward per-capita-consistent long-run targets.
package convergence

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/fairshares/internal/modules/allocation"
)

// Solver search bounds and tolerances
const (
	minSearchSpeed       = 0.001
	speedSearchTolerance = 1e-6
	denominatorFloor     = 1e-12
	cumulativeTolerance  = 1e-4
)

// SolverInput carries the constraint system for the convergence speed search.
type SolverInput struct {
	// Years are the allocation years in ascending order, starting at or
	// before StartYear.
	Years     []int
	StartYear int

	// YearFractions gives each year's fraction of cumulative world scenario
	// emissions; sums to 1 over Years.
	YearFractions map[int]float64

	// InitialShares are the per-entity emission shares at StartYear.
	InitialShares map[string]float64

	// TargetShares are the per-entity cumulative target shares.
	TargetShares map[string]float64
}

// Solution is the outcome of the minimum-speed search. Warnings and
// AchievedCumulative are nil when the targets were met exactly; otherwise
// Warnings maps entity to the achieved/target correction factor.
type Solution struct {
	Speed              float64
	LongRunShares      map[string]float64
	Warnings           map[string]float64
	AchievedCumulative map[string]float64
}

func (in SolverInput) entities() []string {
	out := make([]string, 0, len(in.TargetShares))
	for e := range in.TargetShares {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// initialWeight computes the total contribution w of the initial shares to
// the cumulative targets for a given speed: the start year counts at full
// weight, every later year decays by (1-speed)^(t-t0).
func (in SolverInput) initialWeight(speed float64) (float64, bool) {
	startIdx := -1
	for i, y := range in.Years {
		if y == in.StartYear {
			startIdx = i
			break
		}
	}
	if startIdx < 0 || startIdx+1 >= len(in.Years) {
		return 0, false
	}

	startFraction, ok := in.YearFractions[in.StartYear]
	if !ok || math.IsNaN(startFraction) {
		return 0, false
	}

	lambda := 1.0 - speed
	cumulative := 0.0
	beta := lambda
	for _, y := range in.Years[startIdx+1:] {
		fraction, ok := in.YearFractions[y]
		if !ok || math.IsNaN(fraction) {
			return 0, false
		}
		cumulative += fraction * beta
		beta *= lambda
	}
	return startFraction + cumulative, true
}

// validateSpeed checks whether a convergence speed admits long-run shares in
// [0, 1]. The cumulative constraint target = initial*w + longRun*(1-w) is
// solved for longRun; since initial and target shares both sum to 1, the
// long-run shares sum to 1 automatically, so only the per-entity bounds need
// checking.
func (in SolverInput) validateSpeed(speed float64) (bool, map[string]float64) {
	w, ok := in.initialWeight(speed)
	if !ok {
		return false, nil
	}
	denominator := 1.0 - w
	if denominator <= denominatorFloor {
		return false, nil
	}

	longRun := make(map[string]float64, len(in.TargetShares))
	for _, e := range in.entities() {
		lr := (in.TargetShares[e] - in.InitialShares[e]*w) / denominator
		if lr < 0.0 || lr > 1.0 {
			return false, nil
		}
		longRun[e] = lr
	}
	return true, longRun
}

// FindMinimumSpeed binary-searches the smallest convergence speed in
// [0.001, maxSpeed] whose implied long-run shares are valid. When even
// maxSpeed is infeasible, strict mode fails with a diagnostic naming the
// worst entities; relaxed mode falls back to the nearest feasible long-run
// shares with per-entity correction factors.
func FindMinimumSpeed(in SolverInput, strict bool, maxSpeed float64) (Solution, error) {
	valid, longRun := in.validateSpeed(maxSpeed)
	if !valid {
		if !strict {
			adjustedLongRun, warnings, adjustedCumulative := in.feasibleLongRun()
			return Solution{
				Speed:              maxSpeed,
				LongRunShares:      adjustedLongRun,
				Warnings:           warnings,
				AchievedCumulative: adjustedCumulative,
			}, nil
		}
		return Solution{}, in.strictInfeasibleError(maxSpeed)
	}

	lo := minSearchSpeed
	hi := maxSpeed
	bestSpeed := maxSpeed
	bestLongRun := longRun

	for hi-lo > speedSearchTolerance {
		mid := (lo + hi) / 2
		valid, lr := in.validateSpeed(mid)
		if valid {
			bestSpeed = mid
			bestLongRun = lr
			hi = mid
		} else {
			lo = mid
		}
	}

	// Verify the achieved cumulative shares against the targets.
	w, _ := in.initialWeight(bestSpeed)
	achieved := make(map[string]float64, len(in.TargetShares))
	maxDeviation := 0.0
	for _, e := range in.entities() {
		a := in.InitialShares[e]*w + bestLongRun[e]*(1.0-w)
		achieved[e] = a
		if d := math.Abs(a - in.TargetShares[e]); d > maxDeviation {
			maxDeviation = d
		}
	}

	if maxDeviation > cumulativeTolerance {
		if !strict {
			warnings := make(map[string]float64, len(in.TargetShares))
			for _, e := range in.entities() {
				target := in.TargetShares[e]
				if target > 1e-10 {
					warnings[e] = achieved[e] / target
				} else if achieved[e] < 1e-10 {
					warnings[e] = 1.0
				} else {
					warnings[e] = math.Inf(1)
				}
			}
			return Solution{
				Speed:              bestSpeed,
				LongRunShares:      bestLongRun,
				Warnings:           warnings,
				AchievedCumulative: achieved,
			}, nil
		}
		return Solution{}, fmt.Errorf("%w: cumulative shares deviate from targets by %.6f (tolerance %g) at max speed %g over %d-%d",
			allocation.ErrInfeasible, maxDeviation, cumulativeTolerance, maxSpeed, in.Years[0], in.Years[len(in.Years)-1])
	}

	return Solution{Speed: bestSpeed, LongRunShares: bestLongRun}, nil
}

// feasibleLongRun finds the nearest feasible long-run shares when the targets
// are infeasible even at maximum speed: the unconstrained long-run shares are
// clipped to [0, 1], clipped entities lock in their achieved cumulative, the
// rest are scaled proportionally to fill the remainder, and everything is
// renormalized.
func (in SolverInput) feasibleLongRun() (longRun, warnings, adjustedCumulative map[string]float64) {
	entities := in.entities()
	startIdx := 0
	for i, y := range in.Years {
		if y == in.StartYear {
			startIdx = i
			break
		}
	}
	startFraction := in.YearFractions[in.StartYear]
	var denominator float64
	for _, y := range in.Years[startIdx+1:] {
		denominator += in.YearFractions[y]
	}

	initialContribution := make(map[string]float64, len(entities))
	longRun = make(map[string]float64, len(entities))
	clipped := make(map[string]bool, len(entities))
	anyClipped := false
	for _, e := range entities {
		initialContribution[e] = in.InitialShares[e] * startFraction
		lr := (in.TargetShares[e] - initialContribution[e]) / denominator
		if lr < 0 {
			lr = 0
			clipped[e] = true
			anyClipped = true
		} else if lr > 1 {
			lr = 1
			clipped[e] = true
			anyClipped = true
		}
		longRun[e] = lr
	}

	warnings = make(map[string]float64, len(entities))
	if anyClipped {
		var lockedCumulative, originalRemainingSum float64
		for _, e := range entities {
			if clipped[e] {
				lockedCumulative += initialContribution[e] + longRun[e]*denominator
			} else {
				originalRemainingSum += in.TargetShares[e]
			}
		}
		remaining := 1.0 - lockedCumulative

		if originalRemainingSum > 0 {
			factor := remaining / originalRemainingSum
			for _, e := range entities {
				if clipped[e] {
					achieved := initialContribution[e] + longRun[e]*denominator
					if in.TargetShares[e] > 0 {
						warnings[e] = achieved / in.TargetShares[e]
					} else {
						warnings[e] = 0
					}
					continue
				}
				adjustedTarget := in.TargetShares[e] * factor
				longRun[e] = (adjustedTarget - initialContribution[e]) / denominator
				warnings[e] = factor
			}
		} else {
			nonClipped := 0
			for _, e := range entities {
				if !clipped[e] {
					nonClipped++
				}
			}
			if nonClipped > 0 {
				equalShare := remaining / float64(nonClipped)
				for _, e := range entities {
					if clipped[e] {
						continue
					}
					longRun[e] = (equalShare - initialContribution[e]) / denominator
					warnings[e] = math.Inf(1)
				}
			}
		}
	}

	// Renormalize so the implied cumulative shares sum to exactly 1.
	var finalCumulativeSum float64
	for _, e := range entities {
		finalCumulativeSum += initialContribution[e] + longRun[e]*denominator
	}
	adjustedCumulative = make(map[string]float64, len(entities))
	for _, e := range entities {
		longRun[e] /= finalCumulativeSum
		adjustedCumulative[e] = initialContribution[e] + longRun[e]*denominator
	}
	return longRun, warnings, adjustedCumulative
}

func (in SolverInput) strictInfeasibleError(maxSpeed float64) error {
	startFraction := in.YearFractions[in.StartYear]
	denominator := 1.0 - startFraction
	if denominator <= denominatorFloor {
		return fmt.Errorf("%w: first year carries %.1f%% of cumulative emissions, leaving no room for convergence",
			allocation.ErrInfeasible, startFraction*100)
	}

	worst := ""
	lrMin := math.Inf(1)
	lrMax := math.Inf(-1)
	invalid := 0
	for _, e := range in.entities() {
		lr := (in.TargetShares[e] - in.InitialShares[e]*startFraction) / denominator
		if lr < lrMin {
			lrMin = lr
		}
		if lr > lrMax {
			lrMax = lr
		}
		if lr < 0 || lr > 1 {
			invalid++
			if worst == "" || lr < 0 {
				worst = e
			}
		}
	}
	return fmt.Errorf("%w: cannot converge to target cumulative shares even at maximum speed %g; "+
		"targets imply long-run shares in [%.4f, %.4f] (valid range [0, 1]), %d entities out of bounds (e.g. %s)",
		allocation.ErrInfeasible, maxSpeed, lrMin, lrMax, invalid, worst)
}
