package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/si570"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/fmtx"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/strconvx"
)

var rootCmd = &cobra.Command{
	Use:   "clkgen",
	Short: "Bench tool for the dual Si570 programming engine",
	Long: `clkgen exercises the clock generator programming engine against a
simulated I2C bridge: run full cycles with a transaction trace, retune
or decode single register images, or drive the live service from an
interactive console.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// parseConfig reads a packed 48-bit register image, accepting 0x hex,
// octal and decimal forms.
func parseConfig(s string) (si570.Config, error) {
	v, err := strconvx.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmtx.Errorf("bad config %q: %v", s, err)
	}
	if v>>si570.ConfigBits != 0 {
		return 0, fmtx.Errorf("config %#x wider than %d bits", v, si570.ConfigBits)
	}
	return si570.Config(v), nil
}
