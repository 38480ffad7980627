package clockgen

import (
	"github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/si570"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/errcode"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen/internal/divider"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen/internal/solver"
)

// SolveResult is the outcome of a standalone retune computation.
type SolveResult struct {
	Config    si570.Config // packed replacement register image
	CrystalHz uint64       // recovered reference, integer Hz
}

// Solve computes the replacement config for one factory image outside
// any programming cycle, running the same divider and solver machines
// the sequencer uses, synchronously to completion.
func Solve(factory si570.Config, target Target) (SolveResult, error) {
	div := divider.New(solver.DivWidth)
	sol := solver.New(EngineConfig{Target: target}.solverConfig(), div)
	sol.Start(factory)

	// Two 96-bit divisions plus a handful of control states.
	for i := 0; i < 4*solver.DivWidth && !sol.Done(); i++ {
		div.Tick()
		sol.Tick()
		if sol.Fault() != solver.FaultNone {
			break
		}
	}

	if f := sol.Fault(); f != solver.FaultNone {
		return SolveResult{}, f.Code()
	}
	if !sol.Done() {
		return SolveResult{}, errcode.Busy
	}

	return SolveResult{
		Config:    sol.NewConfig(),
		CrystalHz: sol.CrystalHz(),
	}, nil
}
