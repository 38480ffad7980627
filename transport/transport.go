// Package transport defines the control/status register block through
// which the reprogramming engine drives its I2C bus.
//
// The block mirrors the bridge core used on the FPGA side of the carrier:
// a handful of 32-bit registers are programmed with the target address,
// an optional register sub-address and the data word, and a write to
// RegWriteLen or RegReadLen launches the transaction. Idle drops while
// the transaction is in flight and RegStatus reports the outcome once it
// re-rises. Multi-byte words travel big-endian: the low `len` bytes of
// the 32-bit word, most significant byte first on the wire.
package transport

import "fmt"

// Register indices of the control/status block.
const (
	RegDevAddr   = iota // 7-bit target device address
	RegRegNum           // register sub-address within the target
	RegRegNumLen        // sub-address width in bytes: 0, 1 or 2
	RegReadLen          // write N here to start an N-byte read
	RegWriteLen         // write N here to start an N-byte write
	RegTxData           // data word for writes
	RegTimeout          // transaction timeout, microseconds
	RegStatus           // outcome of the last transaction
	RegRxData           // data word from the last read

	NumRegs
)

// RegStatus values.
const (
	StatusSuccess  = 1
	StatusAddrNack = 2
	StatusDataNack = 3
	StatusTimeout  = 4
	StatusBusFault = 5 // unclassified bus driver error
)

// MaxData is the data payload limit per transaction: one 32-bit word.
const MaxData = 4

// Transport is the register-block interface the reprogramming sequencer
// drives. Implementations execute at most one posted transaction per
// Tick, so a caller that issues a transaction always observes Idle low
// before the completion status becomes valid.
type Transport interface {
	// Ready reports whether the block accepts register writes.
	Ready() bool
	// Write stores val into a control register. Writing RegWriteLen or
	// RegReadLen posts a transaction. Returns false if the write was
	// refused (unknown register, or a transaction is in flight).
	Write(reg int, val uint32) bool
	// Read returns the current value of a register.
	Read(reg int) (uint32, bool)
	// Idle is low from the moment a transaction is posted until the
	// Tick that completes it.
	Idle() bool
	Tick()
	Reset()
}

// Txn describes one bus transaction as seen at the register-block
// boundary. The simulated bus records these for trace assertions and
// the CLI prints them.
type Txn struct {
	Addr   uint16
	Reg    uint32
	RegLen int
	Write  bool
	Len    int
	Data   uint32
	Status uint32
}

func (t Txn) String() string {
	dir := "rd"
	if t.Write {
		dir = "wr"
	}
	if t.RegLen == 0 {
		return fmt.Sprintf("%s %02x len=%d data=%0*x st=%d",
			dir, t.Addr, t.Len, 2*t.Len, t.Data, t.Status)
	}
	return fmt.Sprintf("%s %02x reg=%d len=%d data=%0*x st=%d",
		dir, t.Addr, t.Reg, t.Len, 2*t.Len, t.Data, t.Status)
}
