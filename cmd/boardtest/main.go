//go:build rp2040 || rp2350

// cmd/boardtest/main.go
//
// Bring-up check for the clock-generator carrier: scans the I2C bus,
// exercises the PCA9543 channel select, and reads back both Si570
// register blocks. Run this before pico-prog when a board comes out of
// assembly.
package main

import (
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/pca9543"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/si570"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/fmtx"
)

// ---------- Configuration ----------

const (
	pinSDA = 12
	pinSCL = 13
	i2cHz  = 400_000

	pinConsoleTX = 0
	pinConsoleRX = 1
	consoleBaud  = 115_200

	// 7-bit scan window, reserved addresses excluded.
	scanFirst = 0x08
	scanLast  = 0x77

	dwellBetweenCycles = 2 * time.Second

	// Cycles: 0 = loop forever
	cyclesToRun = 0
)

// ---------- Helpers ----------

// probe reports whether a device acks a zero-length write at addr.
func probe(addr uint16) bool {
	return machine.I2C0.Tx(addr, []byte{}, nil) == nil
}

// scanBus probes the 7-bit address window and returns every address
// that acked. With the switch isolated only the switch itself should
// answer; the oscillators appear once a channel is selected.
func scanBus() []uint16 {
	var found []uint16
	for addr := uint16(scanFirst); addr <= scanLast; addr++ {
		if probe(addr) {
			found = append(found, addr)
		}
	}
	return found
}

// selectChannel writes the one-hot mask for ch to the switch control
// register and verifies the readback.
func selectChannel(ch int) bool {
	mask := pca9543.ChannelMask(ch)
	if err := machine.I2C0.Tx(pca9543.AddressDefault, []byte{mask}, nil); err != nil {
		fmtx.Printf("[switch] select ch%d write failed: %s\n", ch, err.Error())
		return false
	}
	var got [1]byte
	if err := machine.I2C0.Tx(pca9543.AddressDefault, nil, got[:]); err != nil {
		fmtx.Printf("[switch] readback failed: %s\n", err.Error())
		return false
	}
	if got[0]&0x03 != mask {
		fmtx.Printf("[switch] readback mismatch: wrote %02x got %02x\n", mask, got[0])
		return false
	}
	return true
}

// deselect isolates both downstream channels again.
func deselect() {
	_ = machine.I2C0.Tx(pca9543.AddressDefault, []byte{pca9543.SelectNone}, nil)
}

// readConfig reads the six frequency-config registers of the currently
// selected oscillator.
func readConfig() (si570.Config, bool) {
	var raw [6]byte
	err := machine.I2C0.Tx(si570.AddressDefault, []byte{si570.RegFreqConfig}, raw[:])
	if err != nil {
		fmtx.Printf("[si570] config read failed: %s\n", err.Error())
		return 0, false
	}
	return si570.FromBytes(raw), true
}

// checkChannel selects ch, reads and decodes the oscillator behind it,
// and leaves the switch isolated again.
func checkChannel(ch int) bool {
	defer deselect()
	if !selectChannel(ch) {
		return false
	}
	if !probe(si570.AddressDefault) {
		fmtx.Printf("[ch%d] no ack from oscillator at %02x\n", ch, si570.AddressDefault)
		return false
	}
	cfg, ok := readConfig()
	if !ok {
		return false
	}
	if err := cfg.Validate(); err != nil {
		fmtx.Printf("[ch%d] config %012x invalid: %s\n", ch, uint64(cfg), err.Error())
		return false
	}
	fmtx.Printf("[ch%d] config %012x hsdiv=%d n1=%d rfreq=%d.%07x\n",
		ch, uint64(cfg), cfg.HSDiv(), cfg.N1(),
		cfg.RFREQ()>>si570.RFREQFracBits, uint32(cfg.RFREQ()&((1<<si570.RFREQFracBits)-1)))
	if cfg.HSDiv() != si570.Factory156M25.HSDiv || cfg.N1() != si570.Factory156M25.N1 {
		fmtx.Printf("[ch%d] note: dividers differ from factory (%d/%d), part was reprogrammed\n",
			ch, si570.Factory156M25.HSDiv, si570.Factory156M25.N1)
	}
	return true
}

func ledFlashPassFail(pass bool) {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	if pass {
		// Double short
		for i := 0; i < 2; i++ {
			led.High()
			time.Sleep(120 * time.Millisecond)
			led.Low()
			time.Sleep(200 * time.Millisecond)
		}
	} else {
		// Single long
		led.High()
		time.Sleep(400 * time.Millisecond)
		led.Low()
		time.Sleep(200 * time.Millisecond)
	}
}

// ---------- Main ----------

func main() {
	println("[boardtest] boot …")
	time.Sleep(3 * time.Second)

	console := uartx.UART0
	console.Configure(uartx.UARTConfig{
		BaudRate: consoleBaud,
		TX:       machine.Pin(pinConsoleTX),
		RX:       machine.Pin(pinConsoleRX),
	})
	fmtx.DefaultOutput = console

	sda := machine.Pin(pinSDA)
	scl := machine.Pin(pinSCL)
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	machine.I2C0.Configure(machine.I2CConfig{
		SCL:       scl,
		SDA:       sda,
		Frequency: i2cHz,
	})

	cycle := 0
	for {
		cycle++
		fmtx.Printf("=== boardtest: cycle %d ===\n", cycle)

		deselect()
		found := scanBus()
		fmtx.Printf("[scan] %d device(s):", len(found))
		for _, a := range found {
			fmtx.Printf(" %02x", a)
		}
		fmtx.Printf("\n")

		pass := true
		if !probe(pca9543.AddressDefault) {
			fmtx.Printf("[scan] no ack from switch at %02x\n", pca9543.AddressDefault)
			pass = false
		}
		if probe(si570.AddressDefault) {
			// Only reachable through the switch; an ack while isolated
			// means a stuck channel or an address conflict.
			fmtx.Printf("[scan] oscillator visible with switch isolated\n")
			pass = false
		}

		if pass {
			for ch := 0; ch < 2; ch++ {
				if !checkChannel(ch) {
					pass = false
				}
			}
		}

		if pass {
			fmtx.Printf("[PASS] switch + both oscillators answered with valid configs\n")
		} else {
			fmtx.Printf("[FAIL] see messages above\n")
		}
		ledFlashPassFail(pass)

		if cyclesToRun > 0 && cycle >= cyclesToRun {
			fmtx.Printf("completed %d cycles; halting\n", cycle)
			return
		}
		time.Sleep(dwellBetweenCycles)
	}
}
