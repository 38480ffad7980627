package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/transport"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/transport/sim"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/fmtx"
)

var (
	simOpts = struct {
		target   uint64
		hsdiv    uint32
		n1       uint32
		factory0 string
		factory1 string
		failAt   int
		failWith uint32
		maxTicks int
		quiet    bool
	}{}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run a full programming cycle against the simulated bridge",
		Long: `Simulate builds the engine over the simulated bridge core, runs one
dual-channel programming cycle and prints the I2C transaction trace
with the per-channel outcome.`,
		RunE: runSimulate,
	}
)

func init() {
	f := simulateCmd.Flags()
	f.Uint64Var(&simOpts.target, "target", clockgen.DefaultTargetHz, "output frequency to program (Hz)")
	f.Uint32Var(&simOpts.hsdiv, "hsdiv", 0, "HS_DIV of the new config (0 = default)")
	f.Uint32Var(&simOpts.n1, "n1", 0, "N1 of the new config (0 = default)")
	f.StringVar(&simOpts.factory0, "factory0", "", "channel 0 factory image (48-bit, 0x hex)")
	f.StringVar(&simOpts.factory1, "factory1", "", "channel 1 factory image (48-bit, 0x hex)")
	f.IntVar(&simOpts.failAt, "fail-at", 0, "fail the n-th transaction (1-based, 0 = none)")
	f.Uint32Var(&simOpts.failWith, "fail-with", transport.StatusTimeout, "status code for the injected failure")
	f.IntVar(&simOpts.maxTicks, "max-ticks", 20000, "tick budget for the cycle")
	f.BoolVar(&simOpts.quiet, "quiet", false, "suppress the transaction trace")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	var simCfg sim.Config
	if simOpts.factory0 != "" {
		c, err := parseConfig(simOpts.factory0)
		if err != nil {
			return err
		}
		simCfg.Factory[0] = c
	}
	if simOpts.factory1 != "" {
		c, err := parseConfig(simOpts.factory1)
		if err != nil {
			return err
		}
		simCfg.Factory[1] = c
	}

	tb := sim.New(simCfg)
	if simOpts.failAt > 0 {
		tb.FailAt(simOpts.failAt, simOpts.failWith)
	}

	eng := clockgen.NewEngine(clockgen.EngineConfig{
		Target: clockgen.Target{
			NewFreqHz: simOpts.target,
			HSDiv:     simOpts.hsdiv,
			N1:        simOpts.n1,
		},
	}, tb)

	done := eng.RunToDone(simOpts.maxTicks)

	if !simOpts.quiet {
		for i, txn := range tb.Trace() {
			if txn.Status == transport.StatusSuccess {
				color.Green("%3d  %s", i+1, txn.String())
			} else {
				color.Red("%3d  %s", i+1, txn.String())
			}
		}
	}
	if !done {
		return fmtx.Errorf("cycle stuck in %s after %d ticks", eng.State(), eng.Ticks())
	}

	for ch := 0; ch < 2; ch++ {
		printChannel(ch, eng.Result(ch))
	}
	fmtx.Printf("%d transactions, %d ticks, faults %#02x\n", len(tb.Trace()), eng.Ticks(), eng.Faults())
	if eng.Faults() != 0 {
		return fmtx.Errorf("fault summary %#02x", eng.Faults())
	}
	return nil
}

func printChannel(ch int, r clockgen.ChannelResult) {
	if r.Fault {
		color.Red("ch%d  FAULT  orig %#012x", ch, uint64(r.Orig))
		return
	}
	color.Cyan("ch%d  %#012x -> %#012x  crystal %d Hz",
		ch, uint64(r.Orig), uint64(r.New), r.CrystalHz)
}
