//go:build !(rp2040 || rp2350)

package fmtx

import (
	"fmt"
	"io"
	"os"
)

// DefaultOutput is used by Print/Printf.
var DefaultOutput io.Writer = os.Stdout

func Sprintf(format string, a ...any) string                    { return fmt.Sprintf(format, a...) }
func Printf(format string, a ...any) (int, error)               { return fmt.Fprintf(DefaultOutput, format, a...) }
func Fprintf(w io.Writer, format string, a ...any) (int, error) { return fmt.Fprintf(w, format, a...) }
func Errorf(format string, a ...any) error                      { return fmt.Errorf(format, a...) }

// Sprint joins every operand with a single space, unlike fmt.Sprint,
// which omits the space next to string operands.
func Sprint(a ...any) string {
	var b []byte
	for i, v := range a {
		if i > 0 {
			b = append(b, ' ')
		}
		b = fmt.Appendf(b, "%v", v)
	}
	return string(b)
}

func Fprint(w io.Writer, a ...any) (int, error) { return io.WriteString(w, Sprint(a...)) }
func Print(a ...any) (int, error)               { return Fprint(DefaultOutput, a...) }
