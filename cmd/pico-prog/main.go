//go:build rp2040 || rp2350

// Command pico-prog retunes both Si570 channels on the carrier at boot
// and reports progress over a UART console. A second UART carries the
// bridge link, so a host can watch the same topics and request another
// programming cycle without touching the console.
//
// Build/flash (TinyGo):
//
//	tinygo flash -target pico ./cmd/pico-prog
package main

import (
	"context"
	"io"
	"machine"
	"runtime"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/bus"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/bridge"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/config"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/heartbeat"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/transport"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/types"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/fmtx"
)

// Carrier wiring. The PCA9543 and both oscillators hang off i2c0, the
// console rides uart0 and the bridge link rides uart1 (pins from
// config/bridge).
const (
	pinSDA = 12
	pinSCL = 13
	i2cHz  = 400_000

	pinConsoleTX = 0
	pinConsoleRX = 1
	consoleBaud  = 115_200
)

func main() {
	println("[main] boot …")
	time.Sleep(3 * time.Second)

	console := uartx.UART0
	console.Configure(uartx.UARTConfig{
		BaudRate: consoleBaud,
		TX:       machine.Pin(pinConsoleTX),
		RX:       machine.Pin(pinConsoleRX),
	})
	fmtx.DefaultOutput = console
	fmtx.Printf("[main] console up at %d baud\n", consoleBaud)

	sda := machine.Pin(pinSDA)
	scl := machine.Pin(pinSCL)
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	machine.I2C0.Configure(machine.I2CConfig{
		SCL:       scl,
		SDA:       sda,
		Frequency: i2cHz,
	})
	fmtx.Printf("[main] i2c0 up at %d Hz (sda=%d scl=%d)\n", i2cHz, pinSDA, pinSCL)

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, "pico")
	b := bus.NewBus(8)

	bridge.UARTDial = dialUART1

	config.NewService().Start(ctx, b.NewConnection("config"))
	_ = (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat"))
	go bridge.Start(ctx, b.NewConnection("bridge"))

	monConn := b.NewConnection("monitor")
	stateSub := monConn.Subscribe(bus.Topic{"clockgen", "state"})
	reportSub := monConn.Subscribe(bus.Topic{"clockgen", "channel", "+"})
	linkSub := monConn.Subscribe(bus.Topic{"bridge", "state"})
	go monitor(stateSub, reportSub, linkSub)

	fmtx.Printf("[main] starting clockgen …\n")
	svcConn := b.NewConnection("clockgen")
	svc := clockgen.NewService(clockgenConfig(svcConn), transport.NewI2C(machine.I2C0))
	if err := svc.Start(ctx, svcConn); err != nil {
		fmtx.Printf("[main] start error: %s\n", err.Error())
		return
	}

	for {
		time.Sleep(10 * time.Second)
		printMem()
	}
}

// clockgenConfig waits briefly for the retained config/clockgen
// section; absent or bad config falls back to the defaults.
func clockgenConfig(conn *bus.Connection) clockgen.Config {
	sub := conn.Subscribe(bus.Topic{"config", "clockgen"})
	defer conn.Unsubscribe(sub)
	select {
	case m := <-sub.Channel():
		cfg, err := clockgen.ParseConfigPayload(m.Payload)
		if err == nil {
			return cfg
		}
		println("[main] bad config/clockgen, using defaults:", err.Error())
	case <-time.After(500 * time.Millisecond):
		println("[main] no config/clockgen, using defaults")
	}
	return clockgen.Config{}
}

// dialUART1 opens the bridge link on uart1 with the configured pins.
func dialUART1(ctx context.Context, u bridge.UARTConfig) (io.ReadWriteCloser, error) {
	hw := uartx.UART1
	hw.Configure(uartx.UARTConfig{
		BaudRate: uint32(u.Baud),
		TX:       machine.Pin(u.TxPin),
		RX:       machine.Pin(u.RxPin),
	})
	return &uartLink{u: hw}, nil
}

// uartLink adapts a uartx port to the bridge's io.ReadWriteCloser.
type uartLink struct{ u *uartx.UART }

func (l *uartLink) Read(p []byte) (int, error) {
	return l.u.RecvSomeContext(context.Background(), p)
}
func (l *uartLink) Write(p []byte) (int, error) { return l.u.Write(p) }
func (l *uartLink) Close() error                { return nil }

// monitor prints every state transition, channel report and bridge
// state change. It never touches the engine directly; the service
// goroutine owns that.
func monitor(state, report, link *bus.Subscription) {
	for {
		select {
		case m := <-state.Channel():
			st, ok := m.Payload.(types.State)
			if !ok {
				continue
			}
			fmtx.Printf("[state] %s faults=%02x\n", st.Level, st.Faults)
		case m := <-report.Channel():
			r, ok := m.Payload.(types.ChannelReport)
			if !ok {
				continue
			}
			if r.Fault {
				fmtx.Printf("[ch%d] FAULT orig=%012x\n", r.Channel, r.OrigConfig)
				continue
			}
			fmtx.Printf("[ch%d] %012x -> %012x crystal=%d Hz\n",
				r.Channel, r.OrigConfig, r.NewConfig, r.CrystalHz)
		case m := <-link.Channel():
			s, ok := m.Payload.(map[string]any)
			if !ok {
				continue
			}
			level, _ := s["level"].(string)
			status, _ := s["status"].(string)
			fmtx.Printf("[bridge] %s (%s)\n", level, status)
		}
	}
}

// printMem prints a compact snapshot of TinyGo runtime memory stats.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	fmtx.Printf("[mem] alloc=%d heapInuse=%d heapSys=%d mallocs=%d frees=%d\n",
		uint32(ms.Alloc), uint32(ms.HeapInuse), uint32(ms.HeapSys),
		uint32(ms.Mallocs), uint32(ms.Frees))
}
