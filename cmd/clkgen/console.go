package main

import (
	"bufio"
	"context"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/bus"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/transport/sim"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/types"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/fmtx"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/strconvx"
)

var (
	consoleOpts = struct {
		target uint64
	}{}

	consoleCmd = &cobra.Command{
		Use:   "console",
		Short: "Drive the live service on a simulated bridge from a prompt",
		Long: `Console starts the clockgen service over the simulated bridge and
talks to it the way a peer service would, over the bus. The engine
keeps running between commands.`,
		RunE: runConsole,
	}
)

func init() {
	consoleCmd.Flags().Uint64Var(&consoleOpts.target, "target", 0, "output frequency to program (0 = default)")
	rootCmd.AddCommand(consoleCmd)
}

var (
	topicState   = bus.Topic{"clockgen", "state"}
	topicControl = bus.Topic{"clockgen", "control", "reprogram"}
)

func runConsole(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := clockgen.NewService(clockgen.Config{
		Target: clockgen.Target{NewFreqHz: consoleOpts.target},
	}, sim.New(sim.Config{}))

	b := bus.NewBus(16)
	if err := svc.Start(ctx, b.NewConnection("clockgen")); err != nil {
		return err
	}
	conn := b.NewConnection("console")
	defer conn.Disconnect()

	color.White("clkgen console, 'help' lists commands")
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmtx.Printf("> ")
		if !sc.Scan() {
			return sc.Err()
		}
		words, err := shlex.Split(sc.Text())
		if err != nil {
			color.Red("parse: %v", err)
			continue
		}
		if len(words) == 0 {
			continue
		}
		switch words[0] {
		case "state":
			printState(conn)
		case "reports":
			printReports(conn)
		case "reprogram":
			requestReprogram(ctx, conn)
		case "watch":
			secs := 3
			if len(words) > 1 {
				if v, err := strconvx.Atoi(words[1]); err == nil && v > 0 {
					secs = v
				}
			}
			watchState(conn, time.Duration(secs)*time.Second)
		case "help":
			fmtx.Printf("state | reports | reprogram | watch [seconds] | quit\n")
		case "quit", "exit":
			return nil
		default:
			color.Red("unknown command %q", words[0])
		}
	}
}

func printState(conn *bus.Connection) {
	sub := conn.Subscribe(topicState)
	defer conn.Unsubscribe(sub)
	select {
	case m := <-sub.Channel():
		if st, ok := m.Payload.(types.State); ok {
			color.Cyan("%s  faults %#02x", st.Level, st.Faults)
		}
	case <-time.After(time.Second):
		color.Red("no state published yet")
	}
}

func printReports(conn *bus.Connection) {
	for ch := 0; ch < 2; ch++ {
		sub := conn.Subscribe(bus.Topic{"clockgen", "channel", strconvx.Itoa(ch)})
		select {
		case m := <-sub.Channel():
			if rep, ok := m.Payload.(types.ChannelReport); ok {
				if rep.Fault {
					color.Red("ch%d  FAULT  orig %#012x", rep.Channel, rep.OrigConfig)
				} else {
					color.Cyan("ch%d  %#012x -> %#012x  crystal %d Hz",
						rep.Channel, rep.OrigConfig, rep.NewConfig, rep.CrystalHz)
				}
			}
		case <-time.After(time.Second):
			color.Yellow("ch%d  no report yet", ch)
		}
		conn.Unsubscribe(sub)
	}
}

func requestReprogram(ctx context.Context, conn *bus.Connection) {
	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	reply, err := conn.RequestWait(rctx, conn.NewMessage(topicControl, types.Reprogram{}, false))
	if err != nil {
		color.Red("no reply: %v", err)
		return
	}
	ack, ok := reply.Payload.(types.Ack)
	switch {
	case ok && ack.OK:
		color.Green("accepted")
	case ok:
		color.Yellow("refused: %s", ack.Code)
	default:
		color.Red("unexpected reply: %#v", reply.Payload)
	}
}

func watchState(conn *bus.Connection, d time.Duration) {
	sub := conn.Subscribe(topicState)
	defer conn.Unsubscribe(sub)
	deadline := time.After(d)
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.State); ok {
				color.Cyan("%s  faults %#02x", st.Level, st.Faults)
			}
		case <-deadline:
			return
		}
	}
}
