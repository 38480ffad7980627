//go:build rp2040 || rp2350

package fmtx

import (
	"io"
	"unicode/utf8"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/strconvx"
)

// DefaultOutput receives Print and Printf on MCU builds. Point it at a
// UART writer during boot; until then output is dropped.
var DefaultOutput io.Writer = io.Discard

// --- fmt-compatible surface ---

func Sprintf(format string, a ...any) string {
	var b builder
	b.format(format, a...)
	return string(b.buf)
}

func Printf(format string, a ...any) (int, error) {
	return io.WriteString(DefaultOutput, Sprintf(format, a...))
}

func Fprintf(w io.Writer, format string, a ...any) (int, error) {
	return io.WriteString(w, Sprintf(format, a...))
}

func Errorf(format string, a ...any) error {
	return &errorString{Sprintf(format, a...)}
}

func Sprint(a ...any) string {
	var b builder
	for i, v := range a {
		if i > 0 {
			b.add(' ')
		}
		b.appendValue(v)
	}
	return string(b.buf)
}

func Fprint(w io.Writer, a ...any) (int, error) {
	return io.WriteString(w, Sprint(a...))
}

func Print(a ...any) (int, error) { return Fprint(DefaultOutput, a...) }

// --- Formatter internals ---
//
// Verb subset: %s %q %d %x %X %v %t %%. Width and precision apply to
// %s; width with optional zero fill applies to %d/%x/%X. No other
// flags. Operands outside the supported types come out as "<unk>".

type errorString struct{ s string }

func (e *errorString) Error() string { return e.s }

type builder struct{ buf []byte }

func (b *builder) add(c byte)   { b.buf = append(b.buf, c) }
func (b *builder) str(s string) { b.buf = append(b.buf, s...) }

// num writes s left-padded to width. Zero padding goes after the sign.
func (b *builder) num(s string, width int, zero bool) {
	if pad := width - len(s); pad > 0 {
		fill := byte(' ')
		if zero {
			fill = '0'
			if len(s) > 0 && s[0] == '-' {
				b.add('-')
				s = s[1:]
			}
		}
		for j := 0; j < pad; j++ {
			b.add(fill)
		}
	}
	b.str(s)
}

func (b *builder) bool(v bool) {
	if v {
		b.str("true")
	} else {
		b.str("false")
	}
}

// appendValue renders one operand the way %v would.
func (b *builder) appendValue(v any) {
	switch x := v.(type) {
	case string:
		b.str(x)
	case []byte:
		b.buf = append(b.buf, x...)
	case bool:
		b.bool(x)
	case float32:
		b.str(strconvx.FormatFloat(float64(x), 'f', 6, 32))
	case float64:
		b.str(strconvx.FormatFloat(x, 'f', 6, 64))
	case error:
		b.str(x.Error())
	default:
		if i64, u64, signed, ok := intArg(v); ok {
			if signed {
				b.str(strconvx.FormatInt(i64, 10))
			} else {
				b.str(strconvx.FormatUint(u64, 10))
			}
			return
		}
		b.str("<unk>")
	}
}

// intArg classifies an integer operand. Exactly one of i64/u64 is
// meaningful, per signed.
func intArg(v any) (i64 int64, u64 uint64, signed, ok bool) {
	switch t := v.(type) {
	case int:
		return int64(t), 0, true, true
	case int8:
		return int64(t), 0, true, true
	case int16:
		return int64(t), 0, true, true
	case int32: // covers rune
		return int64(t), 0, true, true
	case int64:
		return t, 0, true, true
	case uint:
		return 0, uint64(t), false, true
	case uint8: // covers byte
		return 0, uint64(t), false, true
	case uint16:
		return 0, uint64(t), false, true
	case uint32:
		return 0, uint64(t), false, true
	case uint64:
		return 0, t, false, true
	}
	return 0, 0, false, false
}

// stringArg unwraps operands the string verbs accept directly.
func stringArg(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	}
	return "", false
}

// spec is one parsed %-directive: %[0][width][.prec]<verb>.
type spec struct {
	width   int
	prec    int
	hasPrec bool
	zero    bool
}

// parseSpec reads the optional zero flag, width and precision starting
// at format[i] and returns the index of the verb.
func parseSpec(format string, i int, sp *spec) int {
	if i < len(format) && format[i] == '0' {
		sp.zero = true
		i++
	}
	i = parseNum(format, i, &sp.width)
	if i < len(format) && format[i] == '.' {
		sp.hasPrec = true
		i = parseNum(format, i+1, &sp.prec)
	}
	return i
}

func (b *builder) format(format string, args ...any) {
	ai := 0
	for i := 0; i < len(format); {
		if format[i] != '%' {
			b.add(format[i])
			i++
			continue
		}
		if i+1 < len(format) && format[i+1] == '%' {
			b.add('%')
			i += 2
			continue
		}
		var sp spec
		i = parseSpec(format, i+1, &sp)
		if i >= len(format) || ai >= len(args) {
			return
		}
		verb := format[i]
		arg := args[ai]
		ai++
		i++

		switch verb {
		case 's', 'q':
			s, ok := stringArg(arg)
			if !ok {
				b.appendValue(arg)
				continue
			}
			if verb == 'q' {
				s = quote(s)
			}
			if sp.hasPrec && sp.prec < len(s) {
				s = s[:sp.prec]
			}
			for pad := sp.width - utf8.RuneCountInString(s); pad > 0; pad-- {
				b.add(' ')
			}
			b.str(s)
		case 'd':
			i64, u64, signed, ok := intArg(arg)
			if !ok {
				b.str("0")
				continue
			}
			if signed {
				b.num(strconvx.FormatInt(i64, 10), sp.width, sp.zero)
			} else {
				b.num(strconvx.FormatUint(u64, 10), sp.width, sp.zero)
			}
		case 'x', 'X':
			i64, u64, signed, ok := intArg(arg)
			if !ok {
				b.str("0")
				continue
			}
			neg := false
			if signed {
				if i64 < 0 {
					neg = true
					u64 = uint64(-i64)
				} else {
					u64 = uint64(i64)
				}
			}
			h := strconvx.FormatUint(u64, 16)
			if verb == 'X' {
				h = upperHex(h)
			}
			if neg {
				h = "-" + h
			}
			b.num(h, sp.width, sp.zero)
		case 't':
			v, _ := arg.(bool)
			b.bool(v)
		case 'v':
			b.appendValue(arg)
		default:
			// Unknown verb comes out literally so it shows up on the
			// console rather than vanishing.
			b.add('%')
			b.add(verb)
		}
	}
}

// parseNum consumes a decimal run at s[i:], leaving *out untouched
// when none is present.
func parseNum(s string, i int, out *int) int {
	n, digits := 0, false
	for i < len(s) && '0' <= s[i] && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		digits = true
		i++
	}
	if digits {
		*out = n
	}
	return i
}

func upperHex(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'f' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// quote is a small %q: escape backslash, quote and the common control
// characters, pass everything else through.
func quote(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\n':
			c = 'n'
		case '\r':
			c = 'r'
		case '\t':
			c = 't'
		case '\\', '"':
		default:
			out = append(out, c)
			continue
		}
		out = append(out, '\\', c)
	}
	return string(append(out, '"'))
}
