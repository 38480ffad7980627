package mathx

import "golang.org/x/exp/constraints"

// Clamp pins v to the closed range [lo, hi]. The bounds may be given
// in either order.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	return Min(Max(v, lo), hi)
}
