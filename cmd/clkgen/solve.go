package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/fmtx"
)

var (
	solveOpts = struct {
		oldHz  uint64
		target uint64
		hsdiv  uint32
		n1     uint32
	}{}

	solveCmd = &cobra.Command{
		Use:   "solve <factory-config>",
		Short: "Compute the replacement image for a factory register image",
		Long: `Solve recovers the crystal frequency from a factory register image and
computes the image that retunes the part, with the same fixed-point
pipeline the engine runs.`,
		Args: cobra.ExactArgs(1),
		RunE: runSolve,
	}
)

func init() {
	f := solveCmd.Flags()
	f.Uint64Var(&solveOpts.oldHz, "old", 0, "factory output frequency in Hz (0 = stock 156.25 MHz)")
	f.Uint64Var(&solveOpts.target, "target", 0, "new output frequency in Hz (0 = default)")
	f.Uint32Var(&solveOpts.hsdiv, "hsdiv", 0, "HS_DIV of the new config (0 = default)")
	f.Uint32Var(&solveOpts.n1, "n1", 0, "N1 of the new config (0 = default)")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	factory, err := parseConfig(args[0])
	if err != nil {
		return err
	}
	res, err := clockgen.Solve(factory, clockgen.Target{
		OldFreqHz: solveOpts.oldHz,
		NewFreqHz: solveOpts.target,
		HSDiv:     solveOpts.hsdiv,
		N1:        solveOpts.n1,
	})
	if err != nil {
		return err
	}
	color.Cyan("new config %#012x", uint64(res.Config))
	fmtx.Printf("crystal    %d Hz\n", res.CrystalHz)
	fmtx.Printf("HS_DIV %d, N1 %d, RFREQ %#x\n",
		res.Config.HSDiv(), res.Config.N1(), res.Config.RFREQ())
	return nil
}
