package main

import (
	"github.com/spf13/cobra"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/si570"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/fmtx"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/mathx"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <config>",
	Short: "Decode a packed 48-bit register image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := parseConfig(args[0])
		if err != nil {
			return err
		}
		frac := uint64(1) << si570.RFREQFracBits
		whole := c.RFREQ() >> si570.RFREQFracBits
		micro := mathx.RoundDiv((c.RFREQ()&(frac-1))*1_000_000, frac)
		if micro == 1_000_000 {
			whole++
			micro = 0
		}
		fmtx.Printf("config  %#012x\n", uint64(c))
		fmtx.Printf("HS_DIV  %d (field %d)\n", c.HSDiv(), c.HSDivField())
		fmtx.Printf("N1      %d (field %d)\n", c.N1(), c.N1Field())
		fmtx.Printf("RFREQ   %#x = %d.%06d\n", c.RFREQ(), whole, micro)
		return c.Validate()
	},
}

func init() { rootCmd.AddCommand(decodeCmd) }
