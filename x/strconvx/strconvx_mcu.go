//go:build rp2040 || rp2350

package strconvx

import "errors"

// Hand implementations of the strconv calls the firmware makes.
// Format* and Parse* take bases 2..36 (or 0 for prefix detection);
// float support is plain fixed-point, enough for console output.

var (
	ErrSyntax = errors.New("invalid syntax")
	ErrRange  = errors.New("value out of range")
)

const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

func Itoa(i int) string { return FormatInt(int64(i), 10) }

func Atoi(s string) (int, error) {
	v, err := ParseInt(s, 10, 0)
	return int(v), err
}

// FormatUint returns the base-b representation of u. Bases outside
// 2..36 fall back to decimal.
func FormatUint(u uint64, base int) string {
	var buf [64]byte
	return string(appendUint(buf[:0], u, base))
}

// FormatInt returns the base-b representation of i.
func FormatInt(i int64, base int) string {
	var buf [65]byte
	if i < 0 {
		return string(appendUint(append(buf[:0], '-'), uint64(-i), base))
	}
	return string(appendUint(buf[:0], uint64(i), base))
}

// appendUint appends the digits of u in the given base to dst.
func appendUint(dst []byte, u uint64, base int) []byte {
	if base < 2 || base > 36 {
		base = 10
	}
	var tmp [64]byte
	i := len(tmp)
	b := uint64(base)
	for {
		i--
		tmp[i] = digits[u%b]
		u /= b
		if u == 0 {
			break
		}
	}
	return append(dst, tmp[i:]...)
}

// ParseUint mirrors strconv.ParseUint for bases 0 and 2..36. A value
// past the bitSize range returns the range maximum and ErrRange.
func ParseUint(s string, base, bitSize int) (uint64, error) {
	if base == 0 {
		base, s = baseFromPrefix(s)
	}
	if base < 2 || base > 36 || s == "" {
		return 0, ErrSyntax
	}
	if bitSize == 0 {
		bitSize = 64
	}
	max := uint64(1)<<bitSize - 1
	b := uint64(base)
	var v uint64
	for i := 0; i < len(s); i++ {
		d := digitVal(s[i])
		if d >= base {
			return 0, ErrSyntax
		}
		if v > (max-uint64(d))/b {
			return max, ErrRange
		}
		v = v*b + uint64(d)
	}
	return v, nil
}

// ParseInt mirrors strconv.ParseInt. bitSize 0 is taken as 64.
func ParseInt(s string, base, bitSize int) (int64, error) {
	if s == "" {
		return 0, ErrSyntax
	}
	neg := s[0] == '-'
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	if bitSize == 0 {
		bitSize = 64
	}
	u, err := ParseUint(s, base, bitSize)
	if err != nil && err != ErrRange {
		return 0, err
	}
	cutoff := uint64(1) << (bitSize - 1)
	if neg {
		if u > cutoff {
			return -int64(cutoff), ErrRange
		}
		return -int64(u), nil
	}
	if u >= cutoff {
		return int64(cutoff - 1), ErrRange
	}
	return int64(u), nil
}

// digitVal decodes one digit character; values >= 36 mean invalid.
func digitVal(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'z':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'Z':
		return int(c-'A') + 10
	}
	return 99
}

// baseFromPrefix resolves base 0 the way strconv does: 0b, 0o and 0x
// prefixes, a bare leading zero meaning octal, decimal otherwise.
func baseFromPrefix(s string) (int, string) {
	if len(s) >= 2 && s[0] == '0' {
		switch s[1] {
		case 'b', 'B':
			return 2, s[2:]
		case 'o', 'O':
			return 8, s[2:]
		case 'x', 'X':
			return 16, s[2:]
		}
		return 8, s[1:]
	}
	return 10, s
}

// FormatFloat renders f in fixed-point notation. Only the 'f' form is
// produced whatever verb is asked for; negative prec means 6. Values
// whose scaled magnitude exceeds uint64 are not supported.
func FormatFloat(f float64, _ byte, prec, _ int) string {
	if prec < 0 {
		prec = 6
	}
	neg := f < 0
	if neg {
		f = -f
	}
	scale := uint64(1)
	for i := 0; i < prec; i++ {
		scale *= 10
	}
	// Round once at the requested precision, then split, so a carry
	// out of the fraction lands in the integer part.
	total := uint64(f*float64(scale) + 0.5)
	ip, fp := total/scale, total%scale

	var buf [40]byte
	out := buf[:0]
	if neg {
		out = append(out, '-')
	}
	out = appendUint(out, ip, 10)
	if prec == 0 {
		return string(out)
	}
	out = append(out, '.')
	for d := scale / 10; d > 1; d /= 10 {
		if fp >= d {
			break
		}
		out = append(out, '0')
	}
	return string(appendUint(out, fp, 10))
}

// ParseFloat handles plain fixed-point forms like "114.285714". No
// exponents, no hex floats.
func ParseFloat(s string, _ int) (float64, error) {
	if s == "" {
		return 0, ErrSyntax
	}
	neg := s[0] == '-'
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	var v float64
	nd := 0
	i := 0
	for i < len(s) && '0' <= s[i] && s[i] <= '9' {
		v = v*10 + float64(s[i]-'0')
		nd++
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		div := 1.0
		for i < len(s) && '0' <= s[i] && s[i] <= '9' {
			v = v*10 + float64(s[i]-'0')
			div *= 10
			nd++
			i++
		}
		v /= div
	}
	if nd == 0 || i != len(s) {
		return 0, ErrSyntax
	}
	if neg {
		v = -v
	}
	return v, nil
}
