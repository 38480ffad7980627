package transport

import (
	"tinygo.org/x/drivers"
)

var _ Transport = (*I2C)(nil)

// I2C bridges the register block onto a drivers.I2C bus. Control writes
// land in a local register file; the transaction posted by a write to
// RegWriteLen or RegReadLen executes on the next Tick, which keeps the
// Idle handshake observable even though the underlying Tx call is
// synchronous. Scratch buffers are fixed so steady-state operation does
// not allocate.
type I2C struct {
	bus  drivers.I2C
	regs [NumRegs]uint32
	pend bool
	wr   bool

	wbuf [2 + MaxData]byte
	rbuf [MaxData]byte
}

func NewI2C(bus drivers.I2C) *I2C {
	d := &I2C{bus: bus}
	d.Reset()
	return d
}

func (d *I2C) Reset() {
	d.regs = [NumRegs]uint32{}
	d.pend = false
	d.wr = false
}

func (d *I2C) Ready() bool { return !d.pend }
func (d *I2C) Idle() bool  { return !d.pend }

func (d *I2C) Write(reg int, val uint32) bool {
	if reg < 0 || reg >= NumRegs || d.pend {
		return false
	}
	d.regs[reg] = val
	switch reg {
	case RegWriteLen:
		d.pend, d.wr = true, true
	case RegReadLen:
		d.pend, d.wr = true, false
	}
	return true
}

func (d *I2C) Read(reg int) (uint32, bool) {
	if reg < 0 || reg >= NumRegs {
		return 0, false
	}
	return d.regs[reg], true
}

func (d *I2C) Tick() {
	if !d.pend {
		return
	}
	d.regs[RegStatus] = d.run()
	d.pend = false
}

func (d *I2C) run() uint32 {
	addr := uint16(d.regs[RegDevAddr] & 0x7F)
	w := d.wbuf[:0]
	switch d.regs[RegRegNumLen] {
	case 1:
		w = append(w, byte(d.regs[RegRegNum]))
	case 2:
		w = append(w, byte(d.regs[RegRegNum]>>8), byte(d.regs[RegRegNum]))
	}

	if d.wr {
		n := dataLen(d.regs[RegWriteLen])
		for i := n - 1; i >= 0; i-- {
			w = append(w, byte(d.regs[RegTxData]>>(8*uint(i))))
		}
		if err := d.bus.Tx(addr, w, nil); err != nil {
			return StatusBusFault
		}
		return StatusSuccess
	}

	n := dataLen(d.regs[RegReadLen])
	r := d.rbuf[:n]
	if err := d.bus.Tx(addr, w, r); err != nil {
		return StatusBusFault
	}
	var v uint32
	for _, b := range r {
		v = v<<8 | uint32(b)
	}
	d.regs[RegRxData] = v
	return StatusSuccess
}

func dataLen(v uint32) int {
	if v > MaxData {
		return MaxData
	}
	return int(v)
}
