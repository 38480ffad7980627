package sequencer

import (
	"testing"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/si570"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/errcode"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen/internal/divider"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen/internal/solver"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/transport"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/transport/sim"
)

type rig struct {
	bus *sim.Bus
	div *divider.Engine
	sol *solver.Solver
	seq *Sequencer
}

func newRig(simCfg sim.Config) *rig {
	bus := sim.New(simCfg)
	div := divider.New(solver.DivWidth)
	sol := solver.New(solver.Config{}, div)
	seq := New(Config{RecallSettleTicks: 3}, bus, sol)
	return &rig{bus: bus, div: div, sol: sol, seq: seq}
}

func (r *rig) tick() {
	r.bus.Tick()
	r.div.Tick()
	r.sol.Tick()
	r.seq.Tick()
}

func (r *rig) run(t *testing.T, ch int) {
	t.Helper()
	if !r.seq.Start(ch) {
		t.Fatal("start refused")
	}
	for i := 0; !r.seq.Idle(); i++ {
		if i > 5000 {
			t.Fatal("sequencer did not finish")
		}
		r.tick()
	}
}

func TestProgramTrace(t *testing.T) {
	r := newRig(sim.Config{})
	if !r.seq.Start(0) {
		t.Fatal("start refused")
	}
	maxDepth := 0
	for i := 0; !r.seq.Idle(); i++ {
		if i > 5000 {
			t.Fatal("sequencer did not finish")
		}
		r.tick()
		if r.seq.sp > maxDepth {
			maxDepth = r.seq.sp
		}
	}

	ok := transport.StatusSuccess
	want := []transport.Txn{
		{Addr: 0x70, Reg: 0, RegLen: 0, Write: true, Len: 1, Data: 0x01, Status: uint32(ok)},
		{Addr: 0x55, Reg: 135, RegLen: 1, Write: true, Len: 1, Data: 0x01, Status: uint32(ok)},
		{Addr: 0x55, Reg: 7, RegLen: 1, Write: false, Len: 4, Data: 0x01C2BC00, Status: uint32(ok)},
		{Addr: 0x55, Reg: 11, RegLen: 1, Write: false, Len: 2, Data: 0x0000, Status: uint32(ok)},
		{Addr: 0x55, Reg: 137, RegLen: 1, Write: true, Len: 1, Data: 0x10, Status: uint32(ok)},
		{Addr: 0x55, Reg: 7, RegLen: 1, Write: true, Len: 4, Data: 0x00C2D1E0, Status: uint32(ok)},
		{Addr: 0x55, Reg: 11, RegLen: 1, Write: true, Len: 2, Data: 0x0000, Status: uint32(ok)},
		{Addr: 0x55, Reg: 137, RegLen: 1, Write: true, Len: 1, Data: 0x00, Status: uint32(ok)},
		{Addr: 0x55, Reg: 135, RegLen: 1, Write: true, Len: 1, Data: 0x40, Status: uint32(ok)},
	}
	got := r.bus.Trace()
	if len(got) != len(want) {
		t.Fatalf("trace length %d want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("trace[%d] = %+v want %+v", i, got[i], want[i])
		}
	}

	if r.seq.Fault() {
		t.Fatal("unexpected fault")
	}
	if r.seq.Cause() != "" {
		t.Fatalf("cause %q on a clean run", r.seq.Cause())
	}
	if r.seq.sp != 0 {
		t.Fatalf("return stack not empty: depth %d", r.seq.sp)
	}
	if maxDepth != 1 {
		t.Fatalf("max call depth %d", maxDepth)
	}
	if r.seq.OrigConfig() != 0x01C2BC000000 {
		t.Fatalf("orig config %#x", r.seq.OrigConfig())
	}
	if r.seq.NewConfig() != 0x00C2D1E00000 {
		t.Fatalf("new config %#x", r.seq.NewConfig())
	}

	osc := r.bus.Oscillator(0)
	if osc.Applied() != 0x00C2D1E00000 {
		t.Fatalf("device applied %#x", osc.Applied())
	}
	if osc.Frozen() {
		t.Fatal("device left frozen")
	}
	if tmo, _ := r.bus.Read(transport.RegTimeout); tmo != 1500 {
		t.Fatalf("timeout register %d", tmo)
	}
}

func TestFaultAbortsWithoutFurtherTraffic(t *testing.T) {
	for n := 1; n <= 9; n++ {
		r := newRig(sim.Config{})
		r.bus.FailAt(n, transport.StatusAddrNack)
		r.run(t, 0)

		if !r.seq.Fault() {
			t.Fatalf("fail at %d: fault not recorded", n)
		}
		if r.seq.Cause() != errcode.TransactionFault {
			t.Fatalf("fail at %d: cause %q", n, r.seq.Cause())
		}
		if r.seq.sp != 0 {
			t.Fatalf("fail at %d: stack depth %d", n, r.seq.sp)
		}
		if got := r.bus.Transactions(); got != n {
			t.Fatalf("fail at %d: %d transactions issued", n, got)
		}
		// A few more rounds must not produce traffic.
		for i := 0; i < 20; i++ {
			r.tick()
		}
		if got := r.bus.Transactions(); got != n {
			t.Fatalf("fail at %d: traffic after abort (%d)", n, got)
		}
		if r.bus.Oscillator(0).Applied() != 0x01C2BC000000 {
			t.Fatalf("fail at %d: device reprogrammed despite fault", n)
		}
	}
}

func TestSolverFaultAborts(t *testing.T) {
	// A part reporting RFREQ of zero cannot be solved for.
	r := newRig(sim.Config{Factory: [2]si570.Config{si570.Pack(4, 8, 0)}})
	r.run(t, 0)

	if !r.seq.Fault() {
		t.Fatal("fault not recorded")
	}
	if r.seq.Cause() != errcode.DivideByZero {
		t.Fatalf("cause %q", r.seq.Cause())
	}
	// Switch select, recall and the two config reads, then nothing.
	if got := r.bus.Transactions(); got != 4 {
		t.Fatalf("%d transactions issued", got)
	}
}

func TestBackToBackChannels(t *testing.T) {
	r := newRig(sim.Config{Factory: [2]si570.Config{0, 0x01C2BC011EB8}})
	r.run(t, 0)
	if r.seq.Fault() {
		t.Fatal("channel 0 fault")
	}
	r.run(t, 1)
	if r.seq.Fault() {
		t.Fatal("channel 1 fault")
	}

	if got := r.bus.Oscillator(0).Applied(); got != 0x00C2D1E00000 {
		t.Fatalf("channel 0 applied %#x", got)
	}
	if got := r.bus.Oscillator(1).Applied(); got != 0x00C2D1E127AE {
		t.Fatalf("channel 1 applied %#x", got)
	}
	if r.bus.Selected() != 1 {
		t.Fatalf("switch left on %d", r.bus.Selected())
	}
	if got := r.bus.Transactions(); got != 18 {
		t.Fatalf("%d transactions for two channels", got)
	}
}

func TestStartWhileBusyRefused(t *testing.T) {
	r := newRig(sim.Config{})
	if !r.seq.Start(0) {
		t.Fatal("start refused")
	}
	if r.seq.Start(1) {
		t.Fatal("start accepted while busy")
	}
}

func TestResetMidRun(t *testing.T) {
	r := newRig(sim.Config{})
	r.seq.Start(0)
	for i := 0; i < 30; i++ {
		r.tick()
	}
	r.seq.Reset()
	r.sol.Reset()
	r.div.Reset()
	r.bus.Reset()

	if !r.seq.Idle() || r.seq.Fault() {
		t.Fatal("reset did not clear the run")
	}
	r.run(t, 0)
	if r.seq.Fault() || r.bus.Oscillator(0).Applied() != 0x00C2D1E00000 {
		t.Fatalf("post-reset run failed: fault=%v applied=%#x",
			r.seq.Fault(), r.bus.Oscillator(0).Applied())
	}
}
