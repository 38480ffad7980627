package fmtx

import (
	"bytes"
	"testing"
)

func TestSprintfVerbs(t *testing.T) {
	cases := []struct {
		fmt  string
		args []any
		want string
	}{
		{"ch%d %012x -> %012x", []any{0, uint64(0x01C2BC000000), uint64(0x00C2D1E00000)},
			"ch0 01c2bc000000 -> 00c2d1e00000"},
		{"crystal=%d Hz", []any{uint64(114_285_714)}, "crystal=114285714 Hz"},
		{"faults=%02x", []any{uint8(0x0C)}, "faults=0c"},
		{"HEX %X", []any{255}, "HEX FF"},
		{"state %q retained=%t", []any{"done", true}, `state "done" retained=true`},
		{"escaped %q", []any{"a\"b\\c"}, `escaped "a\"b\\c"`},
		{"pad %6d|", []any{42}, "pad     42|"},
		{"neg %04d", []any{-7}, "neg -007"},
		{"trim %.3s", []any{"programming_ch0"}, "trim pro"},
		{"v=%v of %v", []any{uint32(4), "hsdiv"}, "v=4 of hsdiv"},
		{"literal %%", nil, "literal %"},
	}
	for _, c := range cases {
		if got := Sprintf(c.fmt, c.args...); got != c.want {
			t.Fatalf("Sprintf(%q, ...) = %q, want %q", c.fmt, got, c.want)
		}
	}
}

func TestPrintRoutesToDefaultOutput(t *testing.T) {
	var buf bytes.Buffer
	old := DefaultOutput
	DefaultOutput = &buf
	t.Cleanup(func() { DefaultOutput = old })

	n, err := Print("tick", 42)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if n == 0 {
		t.Fatalf("Print wrote nothing")
	}
	if got, want := buf.String(), "tick 42"; got != want {
		t.Fatalf("Print wrote %q, want %q", got, want)
	}

	buf.Reset()
	_, _ = Printf("[state] %s\n", "settling")
	if got, want := buf.String(), "[state] settling\n"; got != want {
		t.Fatalf("Printf wrote %q, want %q", got, want)
	}
}

func TestSprintJoinsEveryOperand(t *testing.T) {
	if got, want := Sprint("state", 2, true), "state 2 true"; got != want {
		t.Fatalf("Sprint = %q, want %q", got, want)
	}
}

func TestFprintf(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Fprintf(&buf, "retry in %s", "500ms"); err != nil {
		t.Fatalf("Fprintf: %v", err)
	}
	if got, want := buf.String(), "retry in 500ms"; got != want {
		t.Fatalf("Fprintf wrote %q, want %q", got, want)
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf("dial %s: attempt %d", "uart", 3)
	if err == nil {
		t.Fatalf("Errorf returned nil")
	}
	if err.Error() != "dial uart: attempt 3" {
		t.Fatalf("Errorf string = %q", err.Error())
	}
}
