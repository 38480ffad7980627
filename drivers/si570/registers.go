// Package si570 provides register addresses, bitfields and the packed
// frequency-configuration codec for the Si570 programmable XO.
//
// Device notes (datasheet references):
// • I2C, 7-bit address, one-byte register numbers.
// • Output chain: fxtal × RFREQ = DCO, divided by HS_DIV × N1 to the pin.
// • RFREQ is a 38-bit Q10.28 multiplier; DCO must stay within 4.85–5.67 GHz.
// • Frequency registers 7–12 hold {HS_DIV-4:3, N1-1:7, RFREQ:38}, register 7
//   carrying the most significant bits.
package si570

const (
	// 7-bit I2C address of the CMOS 20-ppm parts used on the carrier.
	AddressDefault = 0x55

	// --- Register sub-addresses ---

	RegFreqConfig   = 7   // first of 6 frequency-config registers (7..12)
	RegFreqConfigLo = 11  // low word (registers 11..12)
	RegControl      = 135 // R/W: reset / new-freq / freeze / recall
	RegFreezeDCO    = 137 // R/W: bit 4 freezes the DCO for config updates

	// --- CONTROL (135) bits ---

	CtlReset   = 0x80 // RST_REG: full register reset
	CtlNewFreq = 0x40 // NewFreq: apply registers 7..12 to the DCO (self-clearing)
	CtlFreezeM = 0x20 // FreezeM: freeze the ±ppm adjustment (7-ppm parts)
	CtlRecall  = 0x01 // RECALL: reload NVM factory configuration (self-clearing)

	// --- FREEZE_DCO (137) bits ---

	FreezeDCO = 0x10

	// Valid internal oscillator range for this device family.
	DCOMinHz = 4_850_000_000
	DCOMaxHz = 5_670_000_000

	// RFREQ geometry.
	RFREQBits     = 38
	RFREQFracBits = 28
)
