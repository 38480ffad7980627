package si570

// Profile is a factory calibration point: the output frequency a part
// ships programmed to in NVM and the dividers it uses to produce it.
// Recalling the NVM configuration and reading RFREQ back recovers the
// true crystal frequency of each unit, so no per-part calibration data
// has to be stored on the host side.
type Profile struct {
	OutHz uint64
	HSDiv uint32
	N1    uint32
}

// Factory156M25 matches the stock 156.25 MHz parts fitted to both
// channels of the carrier board.
var Factory156M25 = Profile{OutHz: 156_250_000, HSDiv: 4, N1: 8}

// FactoryRFREQ is the nominal Q10.28 RFREQ of the 156.25 MHz part: with
// an ideal 114.285714 MHz crystal the DCO sits at exactly 5 GHz. Real
// parts report a slightly different value that encodes their crystal's
// true frequency.
const FactoryRFREQ = 0x2BC000000

// DCOHz returns the internal oscillator frequency of the profile.
func (p Profile) DCOHz() uint64 {
	return p.OutHz * uint64(p.HSDiv) * uint64(p.N1)
}
