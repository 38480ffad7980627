package mathx

import "golang.org/x/exp/constraints"

// CeilDiv returns ceil(a/b) for unsigned integers. A zero divisor
// yields zero.
func CeilDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// RoundDiv returns a/b rounded half up. A zero divisor yields zero.
func RoundDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b/2) / b
}
