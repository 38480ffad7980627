// Package bridge mirrors bus traffic over a byte link so a host can
// watch the device and drive it. Messages on the configured mirror
// patterns go out as JSON-bodied frames; inbound frames publish into
// the local bus or run a request/reply round trip. Mirror patterns
// should not cover topics the peer itself publishes, or two bridged
// buses will echo each other.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/bus"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/errcode"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/fmtx"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/mathx"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/timex"
)

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

// Start runs the bridge until ctx ends. Configuration arrives on
// config/bridge; each accepted config tears down the running link and
// dials afresh.
func Start(ctx context.Context, conn *bus.Connection) {
	s := &Service{
		conn:       conn,
		stateTopic: bus.Topic{"bridge", "state"},
	}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// DefaultMirror is exported over the link when the config names no
// patterns: the reprogramming engine's topics and the liveness beat.
var DefaultMirror = []string{"clockgen/#", "heartbeat"}

// Config is the configuration expected on config/bridge.
type Config struct {
	Transport TransportConfig `json:"transport"`

	// Mirror lists topic patterns exported over the link. Empty means
	// DefaultMirror.
	Mirror []string `json:"mirror,omitempty"`
}

type TransportConfig struct {
	// Type selects the dialler: "uart" is built in, others arrive via
	// RegisterTransport.
	Type string      `json:"type"`
	UART *UARTConfig `json:"uart,omitempty"`
}

// UARTConfig carries enough information for an injected dialler to
// open the UART. Pin numbers are platform GPIO numbers.
type UARTConfig struct {
	Baud  int `json:"baud"`
	TxPin int `json:"tx_pin"`
	RxPin int `json:"rx_pin"`
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

const (
	pingPeriod   = 5 * time.Second
	replyTimeout = 2 * time.Second
)

type Service struct {
	conn       *bus.Connection
	stateTopic bus.Topic

	// curRun cancels the active link. Only run's goroutine touches it.
	curRun context.CancelFunc
}

// run waits for config and supervises a single link instance.
func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "bridge"})
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.stopCurrent()
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	go s.runLink(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Link supervision and I/O
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg Config) {
	tr, err := newTransport(cfg.Transport)
	if err != nil {
		s.publishState("error", "transport_init_failed", err)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for ctx.Err() == nil {
		rwc, err := tr.Open(ctx)
		if err != nil {
			if !s.retryAfter(ctx, backoff(), "dial_failed_retrying", err) {
				return
			}
			continue
		}

		s.publishState("up", "link_established", nil)
		err = s.handleLink(ctx, cfg, rwc)
		_ = rwc.Close()
		if err != nil {
			if !s.retryAfter(ctx, backoff(), "link_lost_retrying", err) {
				return
			}
			continue
		}
		// The peer closed cleanly. Stay down until a new config arrives.
		return
	}
}

// retryAfter reports the degraded state and waits out the delay, false
// when the context ended instead.
func (s *Service) retryAfter(ctx context.Context, delay time.Duration, status string, err error) bool {
	s.publishState("degraded", status,
		fmtx.Errorf("%s (retry in %s)", err.Error(), delay.String()))
	return sleep(ctx, delay)
}

// handleLink owns the active link lifetime: it exports mirror traffic,
// answers pings and routes inbound publishes and requests.
func (s *Service) handleLink(ctx context.Context, cfg Config, rwc io.ReadWriteCloser) error {
	lctx, lcancel := context.WithCancel(ctx)
	defer lcancel()

	link := newFramer(rwc)

	// Mirror subscriptions live as long as the link, so every fresh
	// link starts with the retained snapshot of the mirrored topics.
	subs := s.subscribeMirror(cfg)
	defer func() {
		for _, sub := range subs {
			s.conn.Unsubscribe(sub)
		}
	}()

	out := make(chan *bus.Message, 8)
	for _, sub := range subs {
		go forward(lctx, sub, out)
	}

	// Reader: frames either complete locally (pong, publish) or queue a
	// control frame for the single writer below.
	ctrl := make(chan Frame, 4)
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			f, err := link.ReadFrame()
			if err != nil {
				errCh <- err
				return
			}
			switch f.Type {
			case framePing:
				select {
				case ctrl <- Frame{Type: framePong}:
				case <-lctx.Done():
					return
				}
			case framePong:
				// Keepalive answered; nothing to do.
			case framePub:
				s.publishInbound(f.Payload)
			case frameReq:
				go s.handleRequest(lctx, f.Payload, ctrl)
			case frameClose:
				errCh <- nil
				return
			default:
				// Unknown frame type; ignore.
			}
		}
	}()

	tick := time.NewTicker(pingPeriod)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			// Tell the peer, though the write may already fail.
			_ = link.WriteFrame(Frame{Type: frameClose})
			return nil
		case err := <-errCh:
			return err
		case f := <-ctrl:
			if err := link.WriteFrame(f); err != nil {
				return err
			}
		case m := <-out:
			f, err := pubFrame(m)
			if err != nil {
				continue
			}
			if err := link.WriteFrame(f); err != nil {
				return err
			}
		case <-tick.C:
			if err := link.WriteFrame(Frame{Type: framePing}); err != nil {
				return err
			}
		}
	}
}

func (s *Service) subscribeMirror(cfg Config) []*bus.Subscription {
	patterns := cfg.Mirror
	if len(patterns) == 0 {
		patterns = DefaultMirror
	}
	subs := make([]*bus.Subscription, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		subs = append(subs, s.conn.Subscribe(bus.Topic(strings.Split(p, "/"))))
	}
	return subs
}

// forward drains one subscription into the shared out channel until
// the link dies.
func forward(ctx context.Context, sub *bus.Subscription, out chan<- *bus.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.Channel():
			if !ok {
				return
			}
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}
}

// publishInbound turns a framePub body into a local bus publish.
func (s *Service) publishInbound(body []byte) {
	var wm wireMsg
	if err := json.Unmarshal(body, &wm); err != nil || wm.Topic == "" {
		return
	}
	var payload any
	if len(wm.Payload) > 0 {
		if err := json.Unmarshal(wm.Payload, &payload); err != nil {
			return
		}
	}
	topic := bus.Topic(strings.Split(wm.Topic, "/"))
	s.conn.Publish(s.conn.NewMessage(topic, payload, wm.Retained))
}

// handleRequest runs a frameReq round trip against the local bus and
// queues the ack frame.
func (s *Service) handleRequest(ctx context.Context, body []byte, ctrl chan<- Frame) {
	var wm wireMsg
	if err := json.Unmarshal(body, &wm); err != nil || wm.Topic == "" {
		return
	}
	var payload any
	if len(wm.Payload) > 0 {
		_ = json.Unmarshal(wm.Payload, &payload)
	}

	ack := wireMsg{ID: wm.ID, TS: timex.NowMs()}
	rctx, rcancel := context.WithTimeout(ctx, replyTimeout)
	topic := bus.Topic(strings.Split(wm.Topic, "/"))
	reply, err := s.conn.RequestWait(rctx, s.conn.NewMessage(topic, payload, false))
	rcancel()
	if err != nil {
		ack.Err = err.Error()
	} else if b, merr := json.Marshal(reply.Payload); merr == nil {
		ack.Payload = b
	} else {
		ack.Err = merr.Error()
	}

	b, err := json.Marshal(ack)
	if err != nil {
		return
	}
	select {
	case ctrl <- Frame{Type: frameAck, Payload: b}:
	case <-ctx.Done():
	}
}

// -----------------------------------------------------------------------------
// Transport registry
// -----------------------------------------------------------------------------

// Transport is a pluggable link dialler/owner.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

type transportFactory func(TransportConfig) (Transport, error)

var (
	regMu     sync.RWMutex
	registry  = map[string]transportFactory{"uart": newUARTTransport}
	errNoDial = errors.New("UARTDial not implemented")
)

// RegisterTransport adds a named transport, eg. a TCP link for host
// builds. Safe to call any time before Start.
func RegisterTransport(name string, f transportFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func newTransport(cfg TransportConfig) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Type]
	regMu.RUnlock()
	if !ok {
		return nil, errors.New("unknown transport type: " + cfg.Type)
	}
	return f(cfg)
}

// UARTDial is injected by platform code (eg. the pico main). It must
// open and return an io.ReadWriteCloser over the configured UART.
var UARTDial func(ctx context.Context, u UARTConfig) (io.ReadWriteCloser, error)

type uartTransport struct {
	cfg TransportConfig
}

func newUARTTransport(cfg TransportConfig) (Transport, error) {
	if cfg.UART == nil {
		return nil, errors.New("uart transport requires uart config")
	}
	return &uartTransport{cfg: cfg}, nil
}

func (u *uartTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if UARTDial == nil {
		return nil, errNoDial
	}
	return UARTDial(ctx, *u.cfg.UART)
}

func (u *uartTransport) String() string { return "uart" }

// -----------------------------------------------------------------------------
// Framing
// -----------------------------------------------------------------------------

const (
	framePing  byte = 0x01
	framePong  byte = 0x02
	framePub   byte = 0x10
	frameReq   byte = 0x11
	frameAck   byte = 0x13
	frameClose byte = 0x7f
)

// Frame is a length-prefixed frame: type byte, 16-bit big-endian
// payload length, payload.
type Frame struct {
	Type    byte
	Payload []byte
}

// wireMsg is the JSON body of framePub, frameReq and frameAck frames.
type wireMsg struct {
	ID       uint32          `json:"id,omitempty"`
	Topic    string          `json:"topic,omitempty"`
	Retained bool            `json:"retained,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Err      string          `json:"err,omitempty"`
	TS       int64           `json:"ts_ms,omitempty"`
}

func pubFrame(m *bus.Message) (Frame, error) {
	wm := wireMsg{
		Topic:    m.Topic.String(),
		Retained: m.Retained,
		TS:       timex.NowMs(),
	}
	if m.Payload != nil {
		b, err := json.Marshal(m.Payload)
		if err != nil {
			return Frame{}, err
		}
		wm.Payload = b
	}
	b, err := json.Marshal(wm)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: framePub, Payload: b}, nil
}

// framer reads and writes frames on one link. One goroutine may read
// while another writes; the two directions share no state.
type framer struct{ rwc io.ReadWriter }

func newFramer(rwc io.ReadWriter) *framer { return &framer{rwc: rwc} }

func (l *framer) ReadFrame() (Frame, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(l.rwc, hdr[:]); err != nil {
		return Frame{}, err
	}
	f := Frame{Type: hdr[0]}
	if n := int(hdr[1])<<8 | int(hdr[2]); n > 0 {
		f.Payload = make([]byte, n)
		if _, err := io.ReadFull(l.rwc, f.Payload); err != nil {
			return Frame{}, err
		}
	}
	return f, nil
}

func (l *framer) WriteFrame(f Frame) error {
	if len(f.Payload) > 0xFFFF {
		return errors.New("frame too large")
	}
	hdr := [3]byte{f.Type, byte(len(f.Payload) >> 8), byte(len(f.Payload))}
	if _, err := l.rwc.Write(hdr[:]); err != nil {
		return err
	}
	if len(f.Payload) == 0 {
		return nil
	}
	_, err := l.rwc.Write(f.Payload)
	return err
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func decodeConfig(p any) (Config, error) {
	var raw []byte
	switch v := p.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case map[string]any:
		// The config service republishes decoded objects; round-trip
		// through JSON once.
		b, err := json.Marshal(v)
		if err != nil {
			return Config{}, err
		}
		raw = b
	default:
		return Config{}, errcode.InvalidPayload
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (s *Service) publishState(level, status string, err error) {
	p := map[string]any{
		"level":  level, // "idle", "up", "degraded" or "error"
		"status": status,
		"ts_ms":  timex.NowMs(),
	}
	if err != nil {
		p["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(s.stateTopic, p, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur = mathx.Min(cur*2, max)
		return d
	}
}

// sleep waits d out, false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
