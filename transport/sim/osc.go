package sim

import "github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/si570"

// Oscillator models one Si570 closely enough to catch sequencing bugs:
// RECALL reloads the factory configuration and self-clears, writes to
// the frequency registers are dropped unless the DCO is frozen, and
// NewFreq snapshots the configuration that actually reaches the DCO.
type Oscillator struct {
	regs    [256]byte
	factory si570.Config
	applied si570.Config
}

func newOscillator(factory si570.Config) *Oscillator {
	o := &Oscillator{factory: factory}
	o.powerOn()
	return o
}

func (o *Oscillator) powerOn() {
	o.regs = [256]byte{}
	o.loadFactory()
	o.applied = o.factory
}

func (o *Oscillator) loadFactory() {
	b := o.factory.Bytes()
	copy(o.regs[si570.RegFreqConfig:], b[:])
}

// Frozen reports whether the DCO is frozen for configuration updates.
func (o *Oscillator) Frozen() bool {
	return o.regs[si570.RegFreezeDCO]&si570.FreezeDCO != 0
}

// Config returns the live content of the frequency registers 7..12.
func (o *Oscillator) Config() si570.Config {
	var b [6]byte
	copy(b[:], o.regs[si570.RegFreqConfig:])
	return si570.FromBytes(b)
}

// Applied returns the configuration last latched into the DCO, which is
// the factory configuration until NewFreq has been asserted.
func (o *Oscillator) Applied() si570.Config { return o.applied }

func (o *Oscillator) write(reg byte, data []byte) {
	for _, v := range data {
		o.writeByte(reg, v)
		reg++
	}
}

func (o *Oscillator) writeByte(reg, v byte) {
	switch {
	case reg == si570.RegControl:
		if v&si570.CtlReset != 0 {
			o.powerOn()
			return
		}
		if v&si570.CtlRecall != 0 {
			o.loadFactory()
			o.applied = o.factory
		}
		if v&si570.CtlNewFreq != 0 {
			o.applied = o.Config()
		}
		// Action bits self-clear and are never stored.
		o.regs[reg] = v &^ (si570.CtlReset | si570.CtlNewFreq | si570.CtlRecall)
	case reg >= si570.RegFreqConfig && reg < si570.RegFreqConfig+6:
		if o.Frozen() {
			o.regs[reg] = v
		}
	default:
		o.regs[reg] = v
	}
}

func (o *Oscillator) read(reg byte, data []byte) {
	for i := range data {
		data[i] = o.regs[reg]
		reg++
	}
}
