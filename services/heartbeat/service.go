// Package heartbeat publishes a periodic liveness beat on the bus.
// The beat is retained, so a late subscriber immediately learns when
// the firmware was last alive.
package heartbeat

import (
	"context"
	"time"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/bus"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/types"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/mathx"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/timex"
)

var (
	topicBeat   = bus.Topic{"heartbeat"}
	topicConfig = bus.Topic{"config", "heartbeat"}
)

// Interval bounds. Configured intervals outside the range are clamped.
const (
	DefaultInterval = 2 * time.Second
	minInterval     = 50 * time.Millisecond
	maxInterval     = time.Minute
)

type Service struct{}

// Start launches the beat loop and returns immediately.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfig)
	defer conn.Unsubscribe(cfgSub)

	start := time.Now()
	var seq uint32

	tick := time.NewTicker(DefaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case <-tick.C:
			seq++
			conn.Publish(conn.NewMessage(topicBeat, types.Heartbeat{
				Seq:      seq,
				UptimeMS: time.Since(start).Milliseconds(),
				TS:       timex.NowMs(),
			}, true))
		case msg := <-cfgSub.Channel():
			if d, ok := intervalFrom(msg.Payload); ok {
				tick.Reset(mathx.Clamp(d, minInterval, maxInterval))
			}
		}
	}
}

// intervalFrom reads {"interval_ms": N} from a config payload. The
// number arrives as float64 when the config service decoded it from
// JSON and as a Go integer when published directly.
func intervalFrom(p any) (time.Duration, bool) {
	m, ok := p.(map[string]any)
	if !ok {
		return 0, false
	}
	v, ok := m["interval_ms"]
	if !ok {
		return 0, false
	}
	ms, ok := asInt64(v)
	if !ok || ms <= 0 {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}
