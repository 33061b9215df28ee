package formulas

import (
	"fmt"
	"math"
)

// Brent finds a root of f in the bracketing interval [a, b] using Brent's
// method (inverse quadratic interpolation with bisection fallback).
// f(a) and f(b) must have opposite signs.
func Brent(f func(float64) float64, a, b, tol float64, maxIter int) (float64, error) {
	fa := f(a)
	fb := f(b)

	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if fa*fb > 0 {
		return 0, fmt.Errorf("root not bracketed in [%g, %g]: f(a)=%g, f(b)=%g", a, b, fa, fb)
	}

	c, fc := a, fa
	d := b - a
	e := d

	for i := 0; i < maxIter; i++ {
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol1 := 2*math.SmallestNonzeroFloat64*math.Abs(b) + tol/2
		xm := (c - b) / 2

		if math.Abs(xm) <= tol1 || fb == 0 {
			return b, nil
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			// Attempt interpolation
			s := fb / fa
			var p, q float64
			if a == c {
				// Secant
				p = 2 * xm * s
				q = 1 - s
			} else {
				// Inverse quadratic
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)

			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		fb = f(b)

		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
	}

	return b, fmt.Errorf("no convergence after %d iterations (last estimate %g)", maxIter, b)
}
