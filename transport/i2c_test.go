package transport

import (
	"bytes"
	"errors"
	"testing"

	"tinygo.org/x/drivers"
)

// Compile-time check.
var _ drivers.I2C = (*scriptI2C)(nil)

// Scripted bus: expected transactions in order, with canned replies.
type scriptI2C struct {
	t   *testing.T
	ops []busOp
	n   int
}

type busOp struct {
	addr uint16
	w    []byte
	r    []byte
	err  error
}

func (f *scriptI2C) Tx(addr uint16, w, r []byte) error {
	f.t.Helper()
	if f.n >= len(f.ops) {
		f.t.Fatalf("unexpected transaction %d: addr=%#x w=%x rlen=%d", f.n, addr, w, len(r))
	}
	op := f.ops[f.n]
	f.n++
	if addr != op.addr {
		f.t.Fatalf("transaction %d: addr %#x want %#x", f.n-1, addr, op.addr)
	}
	if !bytes.Equal(w, op.w) {
		f.t.Fatalf("transaction %d: wrote %x want %x", f.n-1, w, op.w)
	}
	if len(r) != len(op.r) {
		f.t.Fatalf("transaction %d: read len %d want %d", f.n-1, len(r), len(op.r))
	}
	copy(r, op.r)
	return op.err
}

func (f *scriptI2C) done() {
	f.t.Helper()
	if f.n != len(f.ops) {
		f.t.Fatalf("ran %d of %d scripted transactions", f.n, len(f.ops))
	}
}

func mustWrite(t *testing.T, d *I2C, reg int, val uint32) {
	t.Helper()
	if !d.Write(reg, val) {
		t.Fatalf("write reg %d refused", reg)
	}
}

func TestWriteTransaction(t *testing.T) {
	bus := &scriptI2C{t: t, ops: []busOp{
		{addr: 0x55, w: []byte{135, 0x01}},
	}}
	d := NewI2C(bus)

	mustWrite(t, d, RegDevAddr, 0x55)
	mustWrite(t, d, RegRegNum, 135)
	mustWrite(t, d, RegRegNumLen, 1)
	mustWrite(t, d, RegTxData, 0x01)
	mustWrite(t, d, RegWriteLen, 1)

	if d.Idle() || d.Ready() {
		t.Fatal("expected busy after posting")
	}
	if d.Write(RegTxData, 0xFF) {
		t.Fatal("write accepted while busy")
	}

	d.Tick()
	bus.done()

	if !d.Idle() {
		t.Fatal("expected idle after tick")
	}
	if st, _ := d.Read(RegStatus); st != StatusSuccess {
		t.Fatalf("status got %d", st)
	}
}

func TestReadTransaction(t *testing.T) {
	bus := &scriptI2C{t: t, ops: []busOp{
		{addr: 0x55, w: []byte{7}, r: []byte{0x01, 0xC2, 0xBC, 0x00}},
	}}
	d := NewI2C(bus)

	mustWrite(t, d, RegDevAddr, 0x55)
	mustWrite(t, d, RegRegNum, 7)
	mustWrite(t, d, RegRegNumLen, 1)
	mustWrite(t, d, RegReadLen, 4)
	d.Tick()
	bus.done()

	if st, _ := d.Read(RegStatus); st != StatusSuccess {
		t.Fatalf("status got %d", st)
	}
	if rx, _ := d.Read(RegRxData); rx != 0x01C2BC00 {
		t.Fatalf("rx data got %#x", rx)
	}
}

func TestRawWriteWithoutRegNum(t *testing.T) {
	bus := &scriptI2C{t: t, ops: []busOp{
		{addr: 0x70, w: []byte{0x02}},
	}}
	d := NewI2C(bus)

	mustWrite(t, d, RegDevAddr, 0x70)
	mustWrite(t, d, RegRegNumLen, 0)
	mustWrite(t, d, RegTxData, 0x02)
	mustWrite(t, d, RegWriteLen, 1)
	d.Tick()
	bus.done()
}

func TestWordEndianness(t *testing.T) {
	bus := &scriptI2C{t: t, ops: []busOp{
		{addr: 0x55, w: []byte{11, 0xAB, 0xCD}},
		{addr: 0x55, w: []byte{0x01, 0x02}, r: []byte{0xDE, 0xAD}},
	}}
	d := NewI2C(bus)

	// 2-byte write sends the low word, MSB first.
	mustWrite(t, d, RegDevAddr, 0x55)
	mustWrite(t, d, RegRegNum, 11)
	mustWrite(t, d, RegRegNumLen, 1)
	mustWrite(t, d, RegTxData, 0xABCD)
	mustWrite(t, d, RegWriteLen, 2)
	d.Tick()

	// 2-byte register number, MSB first, then a 2-byte read.
	mustWrite(t, d, RegRegNum, 0x0102)
	mustWrite(t, d, RegRegNumLen, 2)
	mustWrite(t, d, RegReadLen, 2)
	d.Tick()
	bus.done()

	if rx, _ := d.Read(RegRxData); rx != 0xDEAD {
		t.Fatalf("rx data got %#x", rx)
	}
}

func TestBusFaultStatus(t *testing.T) {
	bus := &scriptI2C{t: t, ops: []busOp{
		{addr: 0x55, w: []byte{135, 0x40}, err: errors.New("nack")},
		{addr: 0x55, w: []byte{135, 0x40}},
	}}
	d := NewI2C(bus)

	mustWrite(t, d, RegDevAddr, 0x55)
	mustWrite(t, d, RegRegNum, 135)
	mustWrite(t, d, RegRegNumLen, 1)
	mustWrite(t, d, RegTxData, 0x40)
	mustWrite(t, d, RegWriteLen, 1)
	d.Tick()

	if st, _ := d.Read(RegStatus); st != StatusBusFault {
		t.Fatalf("status got %d want %d", st, StatusBusFault)
	}
	if !d.Idle() {
		t.Fatal("expected idle after failed transaction")
	}

	// The block stays usable after a fault.
	mustWrite(t, d, RegWriteLen, 1)
	d.Tick()
	bus.done()
	if st, _ := d.Read(RegStatus); st != StatusSuccess {
		t.Fatalf("status after retry got %d", st)
	}
}

func TestReset(t *testing.T) {
	d := NewI2C(&scriptI2C{t: t})
	mustWrite(t, d, RegDevAddr, 0x55)
	mustWrite(t, d, RegWriteLen, 1)
	d.Reset()

	if !d.Idle() {
		t.Fatal("expected idle after reset")
	}
	if v, _ := d.Read(RegDevAddr); v != 0 {
		t.Fatalf("dev addr not cleared: %#x", v)
	}
	d.Tick() // nothing posted, nothing runs
}
