// Package sim models the I2C side of the oscillator carrier behind the
// transport register block: the two-channel bus switch and an Si570
// behind each channel. Host tests and the command-line simulator run
// complete reprogramming cycles against it, then assert on the recorded
// transaction trace and on the configurations the devices latched.
package sim

import (
	"github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/pca9543"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/si570"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/transport"
)

var _ transport.Transport = (*Bus)(nil)

// Config sets up the simulated carrier. The zero value models the stock
// board: switch at 0x70, oscillators at 0x55, both parts carrying the
// nominal 156.25 MHz factory configuration.
type Config struct {
	SwitchAddr uint16
	OscAddr    uint16
	Factory    [2]si570.Config
}

func (c Config) withDefaults() Config {
	if c.SwitchAddr == 0 {
		c.SwitchAddr = pca9543.AddressDefault
	}
	if c.OscAddr == 0 {
		c.OscAddr = si570.AddressDefault
	}
	for i, f := range c.Factory {
		if f == 0 {
			c.Factory[i] = si570.Pack(si570.Factory156M25.HSDiv,
				si570.Factory156M25.N1, si570.FactoryRFREQ)
		}
	}
	return c
}

// Bus implements transport.Transport over the device models. Like the
// hardware block it executes one posted transaction per Tick.
type Bus struct {
	cfg  Config
	regs [transport.NumRegs]uint32
	pend bool
	wr   bool

	swCtl byte
	osc   [2]*Oscillator

	trace  []transport.Txn
	count  int
	failAt int
	failSt uint32
}

func New(cfg Config) *Bus {
	b := &Bus{cfg: cfg.withDefaults()}
	b.osc[0] = newOscillator(b.cfg.Factory[0])
	b.osc[1] = newOscillator(b.cfg.Factory[1])
	return b
}

func (b *Bus) Ready() bool { return !b.pend }
func (b *Bus) Idle() bool  { return !b.pend }

func (b *Bus) Write(reg int, val uint32) bool {
	if reg < 0 || reg >= transport.NumRegs || b.pend {
		return false
	}
	b.regs[reg] = val
	switch reg {
	case transport.RegWriteLen:
		b.pend, b.wr = true, true
	case transport.RegReadLen:
		b.pend, b.wr = true, false
	}
	return true
}

func (b *Bus) Read(reg int) (uint32, bool) {
	if reg < 0 || reg >= transport.NumRegs {
		return 0, false
	}
	return b.regs[reg], true
}

// Reset clears the register block and any posted transaction. The
// devices, trace and transaction counter persist: they belong to the
// modeled hardware, not to the block.
func (b *Bus) Reset() {
	b.regs = [transport.NumRegs]uint32{}
	b.pend = false
	b.wr = false
}

func (b *Bus) Tick() {
	if !b.pend {
		return
	}
	b.regs[transport.RegStatus] = b.run()
	b.pend = false
}

// FailAt arranges for the nth transaction (1-based, counted over the
// life of the bus) to complete with the given status without reaching
// any device.
func (b *Bus) FailAt(n int, status uint32) {
	b.failAt, b.failSt = n, status
}

// Trace returns every transaction executed so far, oldest first.
func (b *Bus) Trace() []transport.Txn { return b.trace }

// Transactions returns the number of transactions executed so far.
func (b *Bus) Transactions() int { return b.count }

// Oscillator returns the device model behind the given channel.
func (b *Bus) Oscillator(ch int) *Oscillator { return b.osc[ch&1] }

// Selected returns the channel the switch routes to, or -1 when no
// single channel is selected.
func (b *Bus) Selected() int {
	switch b.swCtl {
	case pca9543.SelectCh0:
		return 0
	case pca9543.SelectCh1:
		return 1
	}
	return -1
}

func (b *Bus) run() uint32 {
	n := int(b.regs[transport.RegReadLen])
	if b.wr {
		n = int(b.regs[transport.RegWriteLen])
	}
	if n > transport.MaxData {
		n = transport.MaxData
	}
	txn := transport.Txn{
		Addr:   uint16(b.regs[transport.RegDevAddr] & 0x7F),
		Reg:    b.regs[transport.RegRegNum],
		RegLen: int(b.regs[transport.RegRegNumLen]),
		Write:  b.wr,
		Len:    n,
	}
	if txn.Write {
		txn.Data = b.regs[transport.RegTxData] & wordMask(n)
	}

	b.count++
	if b.failAt != 0 && b.count == b.failAt {
		txn.Status = b.failSt
	} else {
		txn.Status = b.exec(&txn)
	}
	b.trace = append(b.trace, txn)
	return txn.Status
}

func (b *Bus) exec(txn *transport.Txn) uint32 {
	switch txn.Addr {
	case b.cfg.SwitchAddr:
		// The switch has a single control register; every written byte
		// lands there, so only the last one matters.
		if txn.Write {
			if txn.Len >= 1 {
				b.swCtl = byte(txn.Data)
			}
		} else if txn.Len >= 1 {
			txn.Data = uint32(b.swCtl)
			b.regs[transport.RegRxData] = txn.Data
		}
		return transport.StatusSuccess

	case b.cfg.OscAddr:
		ch := b.Selected()
		if ch < 0 {
			return transport.StatusAddrNack
		}
		if txn.RegLen != 1 {
			// The model only speaks the 1-byte register-pointer form.
			return transport.StatusDataNack
		}
		o := b.osc[ch]
		var buf [transport.MaxData]byte
		if txn.Write {
			for i := 0; i < txn.Len; i++ {
				buf[i] = byte(txn.Data >> (8 * uint(txn.Len-1-i)))
			}
			o.write(byte(txn.Reg), buf[:txn.Len])
		} else {
			o.read(byte(txn.Reg), buf[:txn.Len])
			var v uint32
			for _, x := range buf[:txn.Len] {
				v = v<<8 | uint32(x)
			}
			txn.Data = v
			b.regs[transport.RegRxData] = v
		}
		return transport.StatusSuccess

	default:
		return transport.StatusAddrNack
	}
}

func wordMask(n int) uint32 {
	return uint32(uint64(1)<<(8*uint(n)) - 1)
}
