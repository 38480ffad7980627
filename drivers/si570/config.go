package si570

import "errors"

var (
	ErrZeroRFREQ = errors.New("si570: rfreq is zero")
	ErrDCORange  = errors.New("si570: dco outside supported range")
)

// Config is the packed 48-bit content of the frequency registers 7..12:
//
//	{HS_DIV-4 : 3, N1-1 : 7, RFREQ : 38}
//
// stored most significant field first, so register 7 holds the top byte.
// Only the low 48 bits of the underlying value are meaningful.
type Config uint64

const (
	ConfigBits = 48
	RFREQMask  = (1 << RFREQBits) - 1

	configMask = (1 << ConfigBits) - 1
	n1Bits     = 7
	n1Shift    = RFREQBits
	hsShift    = RFREQBits + n1Bits
)

// Pack assembles a Config from decoded divider values and the raw Q10.28
// RFREQ word. Out-of-field values are truncated to their field widths.
func Pack(hsdiv, n1 uint32, rfreq uint64) Config {
	v := (uint64(hsdiv-4) & 0x7) << hsShift
	v |= (uint64(n1-1) & 0x7F) << n1Shift
	v |= rfreq & RFREQMask
	return Config(v)
}

// FromWords rebuilds a Config from the two bus reads the reprogramming
// sequence performs: a 4-byte read at register 7 and a 2-byte read at
// register 11.
func FromWords(hi uint32, lo uint16) Config {
	return Config(uint64(hi)<<16 | uint64(lo))
}

// Words splits the Config into the two words the reprogramming sequence
// writes back: 4 bytes for register 7 and 2 bytes for register 11.
func (c Config) Words() (hi uint32, lo uint16) {
	return uint32(c >> 16), uint16(c)
}

// FromBytes decodes the 6 raw register bytes, register 7 first.
func FromBytes(b [6]byte) Config {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return Config(v & configMask)
}

// Bytes encodes the Config as the 6 raw register bytes, register 7 first.
func (c Config) Bytes() (b [6]byte) {
	for i := range b {
		b[i] = byte(c >> (8 * (5 - i)))
	}
	return b
}

func (c Config) HSDivField() uint32 { return uint32(c>>hsShift) & 0x7 }
func (c Config) N1Field() uint32    { return uint32(c>>n1Shift) & 0x7F }

// HSDiv returns the decoded high-speed divider, 4..11.
func (c Config) HSDiv() uint32 { return c.HSDivField() + 4 }

// N1 returns the decoded output divider, 1..128.
func (c Config) N1() uint32 { return c.N1Field() + 1 }

// RFREQ returns the raw 38-bit Q10.28 DCO multiplier.
func (c Config) RFREQ() uint64 { return uint64(c) & RFREQMask }

// Validate rejects configurations no functioning part can report, such as
// an all-zero RFREQ from a failed or floating read.
func (c Config) Validate() error {
	if c.RFREQ() == 0 {
		return ErrZeroRFREQ
	}
	return nil
}

// DCOInRange reports whether an internal oscillator frequency is inside
// the supported 4.85..5.67 GHz window.
func DCOInRange(hz uint64) bool {
	return hz >= DCOMinHz && hz <= DCOMaxHz
}
