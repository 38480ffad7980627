package clockgen

import (
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen/internal/divider"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen/internal/sequencer"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen/internal/solver"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/transport"
)

// DefaultTargetHz is the output frequency both channels are retuned to
// when no target is configured.
const DefaultTargetHz = solver.DefaultTargetHz

// DefaultSettleTicks is the post-cycle settle when the engine is built
// directly rather than through the service, which derives it from a
// duration.
const DefaultSettleTicks = 50

// Target names the retune: the frequency the parts left the factory
// producing and the frequency plus divider pair to program. Zero
// fields fall back to the stock carrier and the default target.
type Target struct {
	OldFreqHz uint64
	NewFreqHz uint64
	HSDiv     uint32
	N1        uint32
}

// BusParams set the I2C addressing and the bridge's per-transaction
// timeout. Zero fields fall back to the stock board wiring.
type BusParams struct {
	SwitchAddr uint16
	OscAddr    uint16
	TimeoutUS  uint32
}

// EngineConfig fixes the retargeting policy and bus parameters for both
// channels. The zero value programs the stock carrier for the default
// target frequency.
type EngineConfig struct {
	Target            Target
	Bus               BusParams
	RecallSettleTicks int
	SettleTicks       int
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.SettleTicks == 0 {
		c.SettleTicks = DefaultSettleTicks
	}
	return c
}

func (c EngineConfig) solverConfig() solver.Config {
	return solver.Config{
		OldFreqHz: c.Target.OldFreqHz,
		NewFreqHz: c.Target.NewFreqHz,
		NewHSDiv:  c.Target.HSDiv,
		NewN1:     c.Target.N1,
	}
}

func (c EngineConfig) sequencerConfig() sequencer.Config {
	return sequencer.Config{
		SwitchAddr:        c.Bus.SwitchAddr,
		OscAddr:           c.Bus.OscAddr,
		TimeoutUS:         c.Bus.TimeoutUS,
		RecallSettleTicks: c.RecallSettleTicks,
	}
}

// Engine owns the four machines of the reprogramming pipeline over a
// single transport. It is not safe for concurrent use: exactly one
// goroutine may call Tick and the accessors, which is how the service
// runs it.
type Engine struct {
	tr  transport.Transport
	div *divider.Engine
	sol *solver.Solver
	seq *sequencer.Sequencer
	orc *Orchestrator

	ticks uint64
}

func NewEngine(cfg EngineConfig, tr transport.Transport) *Engine {
	cfg = cfg.withDefaults()
	div := divider.New(solver.DivWidth)
	sol := solver.New(cfg.solverConfig(), div)
	seq := sequencer.New(cfg.sequencerConfig(), tr, sol)
	return &Engine{
		tr:  tr,
		div: div,
		sol: sol,
		seq: seq,
		orc: newOrchestrator(seq, cfg.SettleTicks),
	}
}

// Tick advances every machine one step, in a fixed order: transport,
// divider, solver, sequencer, orchestrator. A machine may observe the
// same-round outputs of machines ticked before it, never the reverse,
// so a completion is always seen one round after it happens.
func (e *Engine) Tick() {
	e.tr.Tick()
	e.div.Tick()
	e.sol.Tick()
	e.seq.Tick()
	e.orc.Tick()
	e.ticks++
}

// Reset returns every machine to its initial state, discarding any
// in-flight work. The next Tick starts a fresh cycle from channel 0.
func (e *Engine) Reset() {
	e.tr.Reset()
	e.div.Reset()
	e.sol.Reset()
	e.seq.Reset()
	e.orc.Reset()
}

// RunToDone ticks until the cycle completes or the budget runs out and
// reports whether it completed.
func (e *Engine) RunToDone(maxTicks int) bool {
	for i := 0; i < maxTicks && !e.Done(); i++ {
		e.Tick()
	}
	return e.Done()
}

func (e *Engine) State() State                { return e.orc.State() }
func (e *Engine) Done() bool                  { return e.orc.Done() }
func (e *Engine) Faults() uint8               { return e.orc.Faults() }
func (e *Engine) Result(ch int) ChannelResult { return e.orc.Result(ch) }
func (e *Engine) Reprogram() bool             { return e.orc.Reprogram() }
func (e *Engine) Ticks() uint64               { return e.ticks }
