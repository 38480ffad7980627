package strconvx

import "testing"

func TestItoaAtoiRoundTrip(t *testing.T) {
	for _, v := range []int{0, 1, -1, 100, 115_200, -115_200, 322_265_625} {
		s := Itoa(v)
		got, err := Atoi(s)
		if err != nil {
			t.Fatalf("Atoi(%q): %v", s, err)
		}
		if got != v {
			t.Fatalf("Itoa/Atoi round trip: want %d, got %d", v, got)
		}
	}
}

func TestFormatBases(t *testing.T) {
	cases := []struct {
		u    uint64
		base int
		want string
	}{
		{0, 10, "0"},
		{0x01C2BC000000, 16, "1c2bc000000"},
		{0x2BC000000, 16, "2bc000000"},
		{255, 2, "11111111"},
		{156_250_000, 10, "156250000"},
		{35, 36, "z"},
	}
	for _, c := range cases {
		if got := FormatUint(c.u, c.base); got != c.want {
			t.Fatalf("FormatUint(%d, %d) = %q, want %q", c.u, c.base, got, c.want)
		}
	}
	if got := FormatInt(-99, 10); got != "-99" {
		t.Fatalf("FormatInt(-99, 10) = %q", got)
	}
}

func TestParseUintPrefixes(t *testing.T) {
	cases := []struct {
		s    string
		base int
		want uint64
	}{
		{"0", 0, 0},
		{"115200", 0, 115_200},
		{"0x1c2bc000000", 0, 0x01C2BC000000},
		{"0X55", 0, 0x55},
		{"0b101", 0, 5},
		{"0o70", 0, 0o70},
		{"070", 0, 0o70}, // bare leading zero is octal in base 0
		{"FF", 16, 255},
		{"101", 2, 5},
	}
	for _, c := range cases {
		got, err := ParseUint(c.s, c.base, 64)
		if err != nil {
			t.Fatalf("ParseUint(%q, %d): %v", c.s, c.base, err)
		}
		if got != c.want {
			t.Fatalf("ParseUint(%q, %d) = %d, want %d", c.s, c.base, got, c.want)
		}
	}
}

func TestParseUintErrors(t *testing.T) {
	bad := []struct {
		s       string
		base    int
		bitSize int
	}{
		{"", 10, 64},
		{"0x", 0, 64},
		{"12a", 10, 64},
		{"2", 2, 64},
		{"300", 10, 8},                   // past uint8
		{"18446744073709551616", 10, 64}, // past uint64
	}
	for _, c := range bad {
		if _, err := ParseUint(c.s, c.base, c.bitSize); err == nil {
			t.Fatalf("ParseUint(%q, %d, %d) expected error", c.s, c.base, c.bitSize)
		}
	}
}

func TestParseIntSignsAndLimits(t *testing.T) {
	cases := []struct {
		s       string
		base    int
		bitSize int
		want    int64
	}{
		{"+42", 10, 64, 42},
		{"-42", 10, 64, -42},
		{"-0x55", 0, 64, -0x55},
		{"-128", 10, 8, -128},
		{"127", 10, 8, 127},
	}
	for _, c := range cases {
		got, err := ParseInt(c.s, c.base, c.bitSize)
		if err != nil {
			t.Fatalf("ParseInt(%q, %d, %d): %v", c.s, c.base, c.bitSize, err)
		}
		if got != c.want {
			t.Fatalf("ParseInt(%q, %d, %d) = %d, want %d", c.s, c.base, c.bitSize, got, c.want)
		}
	}
	if _, err := ParseInt("128", 10, 8); err == nil {
		t.Fatalf("ParseInt(128, 10, 8) expected range error")
	}
	if _, err := ParseInt("18446744073709551615", 10, 64); err == nil {
		t.Fatalf("ParseInt(max uint64) expected range error")
	}
}

func TestFormatParseFloatFixedPoint(t *testing.T) {
	cases := []struct {
		in   float64
		prec int
		want string
	}{
		{0, 0, "0"},
		{12.3, 1, "12.3"},
		{12.345, 2, "12.35"}, // rounds up
		{-1.25, 2, "-1.25"},
		{322.265625, 6, "322.265625"},
		{114.285714, 6, "114.285714"},
		{1.005, 1, "1.0"},
	}
	for _, c := range cases {
		got := FormatFloat(c.in, 'f', c.prec, 64)
		if got != c.want {
			t.Fatalf("FormatFloat(%v, 'f', %d) = %q, want %q", c.in, c.prec, got, c.want)
		}
		v, err := ParseFloat(got, 64)
		if err != nil {
			t.Fatalf("ParseFloat(%q): %v", got, err)
		}
		if FormatFloat(v, 'f', c.prec, 64) != c.want {
			t.Fatalf("round trip mismatch for %q", c.want)
		}
	}

	for _, s := range []string{"", ".", "12.3.4"} {
		if _, err := ParseFloat(s, 64); err == nil {
			t.Fatalf("ParseFloat(%q) expected error", s)
		}
	}
}
