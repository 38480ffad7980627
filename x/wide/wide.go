// Package wide provides 128-bit unsigned integers for fixed-point
// frequency arithmetic. Values are plain structs; all operations are
// allocation-free and wrap on overflow like the built-in unsigned types.
package wide

import "math/bits"

// U128 is an unsigned 128-bit integer.
type U128 struct {
	Hi, Lo uint64
}

// From64 returns x as a U128.
func From64(x uint64) U128 { return U128{Lo: x} }

// Mul64 returns the full 128-bit product a*b.
func Mul64(a, b uint64) U128 {
	hi, lo := bits.Mul64(a, b)
	return U128{Hi: hi, Lo: lo}
}

// Add returns u+v (mod 2^128).
func (u U128) Add(v U128) U128 {
	lo, carry := bits.Add64(u.Lo, v.Lo, 0)
	hi, _ := bits.Add64(u.Hi, v.Hi, carry)
	return U128{Hi: hi, Lo: lo}
}

// Add64 returns u+x (mod 2^128).
func (u U128) Add64(x uint64) U128 { return u.Add(U128{Lo: x}) }

// Sub returns u-v (mod 2^128).
func (u U128) Sub(v U128) U128 {
	lo, borrow := bits.Sub64(u.Lo, v.Lo, 0)
	hi, _ := bits.Sub64(u.Hi, v.Hi, borrow)
	return U128{Hi: hi, Lo: lo}
}

// Or returns the bitwise OR of u and v.
func (u U128) Or(v U128) U128 {
	return U128{Hi: u.Hi | v.Hi, Lo: u.Lo | v.Lo}
}

// Cmp returns -1, 0 or +1 according to u < v, u == v, u > v.
func (u U128) Cmp(v U128) int {
	switch {
	case u.Hi != v.Hi:
		if u.Hi < v.Hi {
			return -1
		}
		return 1
	case u.Lo != v.Lo:
		if u.Lo < v.Lo {
			return -1
		}
		return 1
	}
	return 0
}

// IsZero reports u == 0.
func (u U128) IsZero() bool { return u.Hi == 0 && u.Lo == 0 }

// Shl returns u<<n. Shifts of 128 or more return zero.
func (u U128) Shl(n uint) U128 {
	switch {
	case n == 0:
		return u
	case n >= 128:
		return U128{}
	case n >= 64:
		return U128{Hi: u.Lo << (n - 64)}
	}
	return U128{Hi: u.Hi<<n | u.Lo>>(64-n), Lo: u.Lo << n}
}

// Shr returns u>>n. Shifts of 128 or more return zero.
func (u U128) Shr(n uint) U128 {
	switch {
	case n == 0:
		return u
	case n >= 128:
		return U128{}
	case n >= 64:
		return U128{Lo: u.Hi >> (n - 64)}
	}
	return U128{Hi: u.Hi >> n, Lo: u.Lo>>n | u.Hi<<(64-n)}
}

// Bit returns bit i of u (0 = least significant).
func (u U128) Bit(i uint) uint64 {
	if i >= 64 {
		return (u.Hi >> (i - 64)) & 1
	}
	return (u.Lo >> i) & 1
}

// Len returns the minimum number of bits required to represent u.
func (u U128) Len() int {
	if u.Hi != 0 {
		return 64 + bits.Len64(u.Hi)
	}
	return bits.Len64(u.Lo)
}

// Mask returns the low n bits of u.
func (u U128) Mask(n uint) U128 {
	switch {
	case n >= 128:
		return u
	case n >= 64:
		return U128{Hi: u.Hi & (1<<(n-64) - 1), Lo: u.Lo}
	case n == 0:
		return U128{}
	}
	return U128{Lo: u.Lo & (1<<n - 1)}
}

// String renders u as 0x-prefixed hex with no leading zeros.
func (u U128) String() string {
	const hexd = "0123456789abcdef"
	var buf [34]byte
	i := len(buf)
	v := u
	for {
		i--
		buf[i] = hexd[v.Lo&0xF]
		v = v.Shr(4)
		if v.IsZero() {
			break
		}
	}
	i--
	buf[i] = 'x'
	i--
	buf[i] = '0'
	return string(buf[i:])
}
