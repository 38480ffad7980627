package clockgen

import (
	"github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/si570"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/errcode"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen/internal/sequencer"
)

// State of the dual-channel cycle.
type State uint8

const (
	StateIdle State = iota
	StateProgramCh0
	StateProgramCh1
	StateSettle
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProgramCh0:
		return "programming_ch0"
	case StateProgramCh1:
		return "programming_ch1"
	case StateSettle:
		return "settling"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// ChannelResult is what one channel's programming attempt left behind.
// It persists until the next cycle touches that channel. Cause is empty
// unless Fault.
type ChannelResult struct {
	Orig      si570.Config
	New       si570.Config
	CrystalHz uint64
	Fault     bool
	Cause     errcode.Code
}

// Orchestrator runs the whole cycle: channel 0, then channel 1, then a
// settle delay, then done. Channels are strictly sequential because
// they share the switch and the bus behind it. A cycle starts on the
// first tick out of reset and again on each accepted Reprogram.
type Orchestrator struct {
	seq         *sequencer.Sequencer
	settleTicks int

	state     State
	settle    int
	started   bool
	reprogram bool
	results   [2]ChannelResult
	faults    uint8
}

func newOrchestrator(seq *sequencer.Sequencer, settleTicks int) *Orchestrator {
	return &Orchestrator{seq: seq, settleTicks: settleTicks}
}

// State returns the current cycle state.
func (o *Orchestrator) State() State { return o.state }

// Done is the level output of the cycle.
func (o *Orchestrator) Done() bool { return o.state == StateDone }

// Faults returns the channel fault summary: bit 0 for channel 0, bit 1
// for channel 1. Valid while Done.
func (o *Orchestrator) Faults() uint8 { return o.faults }

// Result returns the recorded outcome for a channel.
func (o *Orchestrator) Result(ch int) ChannelResult { return o.results[ch&1] }

// Reprogram requests a fresh cycle. It is honored only while Done; any
// request mid-cycle is ignored and reported as such.
func (o *Orchestrator) Reprogram() bool {
	if o.state != StateDone {
		return false
	}
	o.reprogram = true
	return true
}

// Reset aborts the cycle and rearms it: the next tick starts from
// channel 0 again.
func (o *Orchestrator) Reset() {
	o.state = StateIdle
	o.settle = 0
	o.started = false
	o.reprogram = false
	o.results = [2]ChannelResult{}
	o.faults = 0
}

func (o *Orchestrator) Tick() {
	switch o.state {
	case StateIdle:
		o.results = [2]ChannelResult{}
		o.faults = 0
		o.started = false
		o.state = StateProgramCh0

	case StateProgramCh0:
		o.program(0, StateProgramCh1)

	case StateProgramCh1:
		o.program(1, StateSettle)

	case StateSettle:
		if o.settle > 0 {
			o.settle--
			return
		}
		o.state = StateDone

	case StateDone:
		if o.reprogram {
			o.reprogram = false
			o.state = StateIdle
		}
	}
}

func (o *Orchestrator) program(ch int, next State) {
	if !o.started {
		if o.seq.Idle() && o.seq.Start(ch) {
			o.started = true
		}
		return
	}
	if !o.seq.Idle() {
		return
	}
	r := ChannelResult{
		Orig:      o.seq.OrigConfig(),
		New:       o.seq.NewConfig(),
		CrystalHz: o.seq.CrystalHz(),
		Fault:     o.seq.Fault(),
		Cause:     o.seq.Cause(),
	}
	o.results[ch&1] = r
	if r.Fault {
		o.faults |= 1 << (ch & 1)
	}
	o.started = false
	if next == StateSettle {
		o.settle = o.settleTicks
	}
	o.state = next
}
