package hotune

import (
	"context"
	"math"
	"time"

	"golang.org/x/exp/constraints"
)

//////
// Helper functions.
//////

// Helper function used by PI and EI to compute the cumulative distribution
// function of the standard normal distribution.
//
// Returns:
// - Probability that a standard normal random variable is less than x.
func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// Helper function used by EI to compute the probability density function
// of the standard normal distribution.
//
// Returns:
// - Value of the standard normal PDF at x.
func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}

// measure runs the objective once and reports its value and wall time.
//
// Important notes:
// - Time measurement includes only the execution of f
// - The error is returned unchanged; penalizing or aborting is the caller's
// decision
func measure(ctx context.Context, f ObjectiveFunc, params Params) (float64, time.Duration, error) {
	start := time.Now()

	value, err := f(ctx, params)

	return value, time.Since(start), err
}

// clamp limits v to [lo, hi].
func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// unitScale maps v from [lo, hi] onto [0, 1]. A degenerate range maps to 0.5.
func unitScale(v, lo, hi float64) float64 {
	if hi == lo {
		return 0.5
	}

	return clamp((v-lo)/(hi-lo), 0, 1)
}

// toFloat converts a numeric Params value to float64.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		return 0
	}
}

// internalValue converts an objective value into the minimized quantity.
func internalValue(v float64, d Direction) float64 {
	if d == Maximize {
		return -v
	}

	return v
}
