package mathx

import "golang.org/x/exp/constraints"

// RoundDiv returns n/d rounded to nearest, halves away from zero. d must be
// positive; zero yields 0.
func RoundDiv[T constraints.Signed](n, d T) T {
	if d <= 0 {
		return 0
	}
	if n < 0 {
		return -((-n + d/2) / d)
	}
	return (n + d/2) / d
}
