// Package pca9543 provides constants for the PCA9543A two-channel I2C bus
// switch that sits in front of the oscillator pair. The device has a single
// control register, written with a one-hot channel mask and readable back
// for verification; selecting a channel routes all following transactions
// to the oscillator behind it.
package pca9543

const (
	// 7-bit I2C address with all address pins strapped low.
	AddressDefault = 0x70

	// Control-register channel masks. Writing 0 isolates both channels.
	SelectNone = 0x00
	SelectCh0  = 0x01
	SelectCh1  = 0x02
)

// ChannelMask returns the one-hot control value that routes traffic to
// the given downstream channel.
func ChannelMask(ch int) byte {
	if ch == 0 {
		return SelectCh0
	}
	return SelectCh1
}

// ValidMask reports whether a control value selects at most one channel.
func ValidMask(m byte) bool {
	return m == SelectNone || m == SelectCh0 || m == SelectCh1
}
