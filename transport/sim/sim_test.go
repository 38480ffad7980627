package sim

import (
	"testing"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/si570"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/transport"
)

// busWrite drives a full posted write the way the sequencer does and
// returns the completion status.
func busWrite(t *testing.T, b *Bus, addr uint16, reg uint32, reglen int, data uint32, n int) uint32 {
	t.Helper()
	steps := [][2]uint32{
		{transport.RegDevAddr, uint32(addr)},
		{transport.RegRegNum, reg},
		{transport.RegRegNumLen, uint32(reglen)},
		{transport.RegTxData, data},
		{transport.RegWriteLen, uint32(n)},
	}
	for _, s := range steps {
		if !b.Write(int(s[0]), s[1]) {
			t.Fatalf("register write %d refused", s[0])
		}
	}
	if b.Idle() {
		t.Fatal("expected busy after posting")
	}
	b.Tick()
	if !b.Idle() {
		t.Fatal("expected idle after tick")
	}
	st, _ := b.Read(transport.RegStatus)
	return st
}

// busRead drives a full posted read and returns the data word and
// completion status.
func busRead(t *testing.T, b *Bus, addr uint16, reg uint32, reglen int, n int) (uint32, uint32) {
	t.Helper()
	steps := [][2]uint32{
		{transport.RegDevAddr, uint32(addr)},
		{transport.RegRegNum, reg},
		{transport.RegRegNumLen, uint32(reglen)},
		{transport.RegReadLen, uint32(n)},
	}
	for _, s := range steps {
		if !b.Write(int(s[0]), s[1]) {
			t.Fatalf("register write %d refused", s[0])
		}
	}
	b.Tick()
	rx, _ := b.Read(transport.RegRxData)
	st, _ := b.Read(transport.RegStatus)
	return rx, st
}

func TestFactorySeed(t *testing.T) {
	b := New(Config{})
	if st := busWrite(t, b, 0x70, 0, 0, 0x01, 1); st != transport.StatusSuccess {
		t.Fatalf("switch select: status %d", st)
	}

	hi, st := busRead(t, b, 0x55, 7, 1, 4)
	if st != transport.StatusSuccess || hi != 0x01C2BC00 {
		t.Fatalf("high word got %#x status %d", hi, st)
	}
	lo, st := busRead(t, b, 0x55, 11, 1, 2)
	if st != transport.StatusSuccess || lo != 0x0000 {
		t.Fatalf("low word got %#x status %d", lo, st)
	}
	if cfg := si570.FromWords(hi, uint16(lo)); cfg != 0x01C2BC000000 {
		t.Fatalf("factory config got %#x", cfg)
	}
}

func TestSwitchRouting(t *testing.T) {
	b := New(Config{})

	// Nothing selected: the oscillators are unreachable.
	if st := busWrite(t, b, 0x55, 135, 1, 0x01, 1); st != transport.StatusAddrNack {
		t.Fatalf("unselected oscillator: status %d", st)
	}

	busWrite(t, b, 0x70, 0, 0, 0x02, 1)
	if b.Selected() != 1 {
		t.Fatalf("selected got %d", b.Selected())
	}
	busWrite(t, b, 0x55, 137, 1, 0x10, 1)
	if !b.Oscillator(1).Frozen() {
		t.Fatal("channel 1 should be frozen")
	}
	if b.Oscillator(0).Frozen() {
		t.Fatal("channel 0 should be untouched")
	}

	ctl, st := busRead(t, b, 0x70, 0, 0, 1)
	if st != transport.StatusSuccess || ctl != 0x02 {
		t.Fatalf("switch readback got %#x status %d", ctl, st)
	}
}

func TestFreezeGating(t *testing.T) {
	b := New(Config{})
	busWrite(t, b, 0x70, 0, 0, 0x01, 1)

	busWrite(t, b, 0x55, 7, 1, 0x00C2D1E0, 4)
	if got := b.Oscillator(0).Config(); got != 0x01C2BC000000 {
		t.Fatalf("unfrozen write changed config to %#x", got)
	}

	busWrite(t, b, 0x55, 137, 1, 0x10, 1)
	busWrite(t, b, 0x55, 7, 1, 0x00C2D1E0, 4)
	if got := b.Oscillator(0).Config(); got != 0x00C2D1E00000 {
		t.Fatalf("frozen write got %#x", got)
	}
}

func TestRecallAndNewFreq(t *testing.T) {
	b := New(Config{})
	busWrite(t, b, 0x70, 0, 0, 0x01, 1)
	osc := b.Oscillator(0)

	busWrite(t, b, 0x55, 137, 1, 0x10, 1)
	busWrite(t, b, 0x55, 7, 1, 0x00C2D1E1, 4)
	busWrite(t, b, 0x55, 11, 1, 0x27AE, 2)
	if osc.Applied() != 0x01C2BC000000 {
		t.Fatal("config applied before NewFreq")
	}

	busWrite(t, b, 0x55, 137, 1, 0x00, 1)
	busWrite(t, b, 0x55, 135, 1, uint32(si570.CtlNewFreq), 1)
	if got := osc.Applied(); got != 0x00C2D1E127AE {
		t.Fatalf("applied got %#x", got)
	}
	if ctl, _ := busRead(t, b, 0x55, 135, 1, 1); ctl != 0 {
		t.Fatalf("NewFreq did not self-clear: %#x", ctl)
	}

	busWrite(t, b, 0x55, 135, 1, uint32(si570.CtlRecall), 1)
	if got := osc.Config(); got != 0x01C2BC000000 {
		t.Fatalf("recall got %#x", got)
	}
	if got := osc.Applied(); got != 0x01C2BC000000 {
		t.Fatalf("recall applied got %#x", got)
	}
}

func TestFailAt(t *testing.T) {
	b := New(Config{})
	b.FailAt(2, transport.StatusTimeout)

	if st := busWrite(t, b, 0x70, 0, 0, 0x01, 1); st != transport.StatusSuccess {
		t.Fatalf("transaction 1: status %d", st)
	}
	if st := busWrite(t, b, 0x55, 137, 1, 0x10, 1); st != transport.StatusTimeout {
		t.Fatalf("transaction 2: status %d", st)
	}
	if b.Oscillator(0).Frozen() {
		t.Fatal("failed transaction reached the device")
	}
	if st := busWrite(t, b, 0x55, 137, 1, 0x10, 1); st != transport.StatusSuccess {
		t.Fatalf("transaction 3: status %d", st)
	}

	tr := b.Trace()
	if len(tr) != 3 || tr[1].Status != transport.StatusTimeout {
		t.Fatalf("trace %v", tr)
	}
}

func TestTraceRecords(t *testing.T) {
	b := New(Config{})
	busWrite(t, b, 0x70, 0, 0, 0x01, 1)
	busRead(t, b, 0x55, 7, 1, 4)

	tr := b.Trace()
	if len(tr) != 2 {
		t.Fatalf("trace length %d", len(tr))
	}
	if !tr[0].Write || tr[0].Addr != 0x70 || tr[0].Len != 1 || tr[0].Data != 0x01 {
		t.Fatalf("trace[0] = %+v", tr[0])
	}
	if tr[1].Write || tr[1].Addr != 0x55 || tr[1].Reg != 7 || tr[1].Len != 4 ||
		tr[1].Data != 0x01C2BC00 {
		t.Fatalf("trace[1] = %+v", tr[1])
	}
}

func TestResetKeepsDevices(t *testing.T) {
	b := New(Config{})
	busWrite(t, b, 0x70, 0, 0, 0x01, 1)
	busWrite(t, b, 0x55, 137, 1, 0x10, 1)

	b.Reset()
	if !b.Idle() {
		t.Fatal("expected idle after reset")
	}
	if st, _ := b.Read(transport.RegStatus); st != 0 {
		t.Fatalf("status not cleared: %d", st)
	}
	if !b.Oscillator(0).Frozen() {
		t.Fatal("reset must not touch the devices")
	}
	if len(b.Trace()) != 2 {
		t.Fatal("reset must not discard the trace")
	}
}

func TestPerChannelFactory(t *testing.T) {
	b := New(Config{Factory: [2]si570.Config{0, 0x01C2BC011EB8}})
	busWrite(t, b, 0x70, 0, 0, 0x02, 1)
	hi, _ := busRead(t, b, 0x55, 7, 1, 4)
	lo, _ := busRead(t, b, 0x55, 11, 1, 2)
	if cfg := si570.FromWords(hi, uint16(lo)); cfg != 0x01C2BC011EB8 {
		t.Fatalf("channel 1 factory got %#x", cfg)
	}
	if b.Oscillator(0).Config() != 0x01C2BC000000 {
		t.Fatal("channel 0 should default to the nominal part")
	}
}
