package allocation

import "math"

// TransformForm selects the monotone transform applied to a raw metric
// before exponentiation.
type TransformForm string

// Supported functional forms
const (
	FormPower TransformForm = "power"
	FormAsinh TransformForm = "asinh"
)

// AdjustmentFactor turns one raw metric value into a multiplicative
// adjustment factor: transform(value)^(sign*exponent), where sign is -1 when
// inverse is set so higher raw values yield lower weight. Values that are
// non-positive or NaN are clamped to 1.0 first, treating net-sink and
// missing-data entities as neutral.
func AdjustmentFactor(value float64, form TransformForm, exponent float64, inverse bool) (float64, error) {
	sign := 1.0
	if inverse {
		sign = -1.0
	}

	if value <= 0 || math.IsNaN(value) {
		value = 1.0
	}

	switch form {
	case FormPower:
		return math.Pow(value, sign*exponent), nil
	case FormAsinh:
		return math.Pow(math.Asinh(value), sign*exponent), nil
	default:
		return 0, configErrorf("unknown functional form %q, must be %q or %q", form, FormPower, FormAsinh)
	}
}

// RelativeAdjustment applies AdjustmentFactor to a per-entity metric
func RelativeAdjustment(values map[string]float64, form TransformForm, exponent float64, inverse bool) (map[string]float64, error) {
	out := make(map[string]float64, len(values))
	for e, v := range values {
		f, err := AdjustmentFactor(v, form, exponent, inverse)
		if err != nil {
			return nil, err
		}
		out[e] = f
	}
	return out, nil
}
