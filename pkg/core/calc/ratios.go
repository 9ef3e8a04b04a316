package calc

import "math"

// =============================================================================
// NULL-PROPAGATING HELPERS
// =============================================================================
//
// A nil *float64 means "no data". Every helper returns nil rather than failing
// when an input is missing, a denominator is zero, or the result is not finite.

// SafeDiv returns a / b.
func SafeDiv(a, b *float64) *float64 {
	if a == nil || b == nil || *b == 0 {
		return nil
	}
	return finite(*a / *b)
}

// PctChange returns (current - previous) / |previous|.
func PctChange(current, previous *float64) *float64 {
	if current == nil || previous == nil || *previous == 0 {
		return nil
	}
	return finite((*current - *previous) / math.Abs(*previous))
}

// CAGR returns (end/start)^(1/years) - 1. Both endpoints must be strictly positive.
func CAGR(start, end *float64, years int) *float64 {
	if start == nil || end == nil || *start <= 0 || *end <= 0 || years <= 0 {
		return nil
	}
	return finite(math.Pow(*end / *start, 1.0/float64(years)) - 1)
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// at returns series[i], or nil when the series is shorter than the axis.
func at(series []*float64, i int) *float64 {
	if i < 0 || i >= len(series) {
		return nil
	}
	return series[i]
}

func allNil(series []*float64) bool {
	for _, v := range series {
		if v != nil {
			return false
		}
	}
	return true
}
