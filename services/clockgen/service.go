package clockgen

import (
	"context"
	"strconv"

	"time"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/bus"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/errcode"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/transport"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/types"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/timex"
)

var (
	topicControl = bus.Topic{"clockgen", "control", "reprogram"}
	topicState   = bus.Topic{"clockgen", "state"}
)

func topicChannel(ch int) bus.Topic {
	return bus.Topic{"clockgen", "channel", strconv.Itoa(ch)}
}

// Service drives the programming engine from a ticker and mirrors its
// progress onto the bus. clockgen/state carries the retained level and
// fault summary; clockgen/channel/<n> carries the retained per-channel
// report once a cycle finishes; clockgen/control/reprogram accepts
// requests for another cycle.
type Service struct {
	cfg Config
	eng *Engine
}

// NewService builds the service and its engine over the given
// transport.
func NewService(cfg Config, tr transport.Transport) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		cfg: cfg,
		eng: NewEngine(cfg.engineConfig(), tr),
	}
}

// Engine exposes the underlying engine for setup and inspection. Once
// Start has been called the service goroutine owns it.
func (s *Service) Engine() *Engine { return s.eng }

// Start launches the service loop.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	ctlSub := conn.Subscribe(topicControl)
	defer conn.Unsubscribe(ctlSub)

	tick := time.NewTicker(s.cfg.TickPeriod)
	defer tick.Stop()

	last := s.eng.State()
	s.publishState(conn)

	for {
		select {
		case <-ctx.Done():
			println("[clockgen] service stopping")
			return
		case <-tick.C:
			s.eng.Tick()
			cur := s.eng.State()
			if cur == last {
				continue
			}
			// Reports first, so a subscriber woken by "done"
			// already finds them retained.
			if cur == StateDone {
				s.publishReports(conn)
				println("[clockgen] cycle done, faults =", s.eng.Faults())
			}
			last = cur
			s.publishState(conn)
		case msg := <-ctlSub.Channel():
			s.handleReprogram(conn, msg)
		}
	}
}

func (s *Service) publishState(conn *bus.Connection) {
	conn.Publish(conn.NewMessage(topicState, types.State{
		Level:  s.eng.State().String(),
		Faults: s.eng.Faults(),
		TS:     timex.NowMs(),
	}, true))
}

func (s *Service) publishReports(conn *bus.Connection) {
	now := timex.NowMs()
	for ch := 0; ch < 2; ch++ {
		r := s.eng.Result(ch)
		conn.Publish(conn.NewMessage(topicChannel(ch), types.ChannelReport{
			Channel:    ch,
			OrigConfig: uint64(r.Orig),
			NewConfig:  uint64(r.New),
			CrystalHz:  r.CrystalHz,
			Fault:      r.Fault,
			FaultCode:  string(r.Cause),
			TS:         now,
		}, true))
	}
}

func (s *Service) handleReprogram(conn *bus.Connection, msg *bus.Message) {
	if s.eng.Reprogram() {
		println("[clockgen] reprogram accepted")
		conn.Reply(msg, types.Ack{OK: true, Code: string(errcode.OK)}, false)
		return
	}
	println("[clockgen] reprogram refused, cycle in progress")
	conn.Reply(msg, types.Ack{OK: false, Code: string(errcode.NotDone)}, false)
}
