package clockgen

import (
	"encoding/json"
	"time"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/errcode"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/timex"
)

// Service cadence and settle defaults. The engine itself is unitless;
// real time enters only through the service ticker.
const (
	DefaultTickPeriod   = 100 * time.Microsecond
	DefaultSettle       = 25 * time.Millisecond
	DefaultRecallSettle = 10 * time.Millisecond
)

// Config shapes the bus-facing service. Durations are converted to
// whole engine ticks at the configured cadence.
type Config struct {
	TickPeriod   time.Duration
	Settle       time.Duration // post-cycle settle before "done"
	RecallSettle time.Duration // NVM reload wait after RECALL
	Target       Target
	Bus          BusParams
}

func (c Config) withDefaults() Config {
	if c.TickPeriod <= 0 {
		c.TickPeriod = DefaultTickPeriod
	}
	if c.Settle <= 0 {
		c.Settle = DefaultSettle
	}
	if c.RecallSettle <= 0 {
		c.RecallSettle = DefaultRecallSettle
	}
	return c
}

// engineConfig converts the service timing into tick counts.
func (c Config) engineConfig() EngineConfig {
	return EngineConfig{
		Target:            c.Target,
		Bus:               c.Bus,
		RecallSettleTicks: timex.Ticks(c.RecallSettle, c.TickPeriod),
		SettleTicks:       timex.Ticks(c.Settle, c.TickPeriod),
	}
}

// jsonConfig mirrors the config/clockgen bus payload.
type jsonConfig struct {
	TickUS         int64 `json:"tick_us"`
	SettleMS       int64 `json:"settle_ms"`
	RecallSettleMS int64 `json:"recall_settle_ms"`
	Target         struct {
		OldFreqHz uint64 `json:"old_freq_hz"`
		NewFreqHz uint64 `json:"new_freq_hz"`
		HSDiv     uint32 `json:"hs_div"`
		N1        uint32 `json:"n1"`
	} `json:"target"`
	Bus struct {
		SwitchAddr uint16 `json:"switch_addr"`
		OscAddr    uint16 `json:"osc_addr"`
		TimeoutUS  uint32 `json:"timeout_us"`
	} `json:"bus"`
}

// ParseConfigPayload builds a Config from a config/clockgen payload:
// raw JSON bytes, a JSON string, or an already-decoded object. Absent
// fields stay zero and fall back to the usual defaults.
func ParseConfigPayload(p any) (Config, error) {
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
	var jc jsonConfig
	if err := json.Unmarshal(raw, &jc); err != nil {
		return Config{}, err
	}
	return Config{
		TickPeriod:   time.Duration(jc.TickUS) * time.Microsecond,
		Settle:       time.Duration(jc.SettleMS) * time.Millisecond,
		RecallSettle: time.Duration(jc.RecallSettleMS) * time.Millisecond,
		Target: Target{
			OldFreqHz: jc.Target.OldFreqHz,
			NewFreqHz: jc.Target.NewFreqHz,
			HSDiv:     jc.Target.HSDiv,
			N1:        jc.Target.N1,
		},
		Bus: BusParams{
			SwitchAddr: jc.Bus.SwitchAddr,
			OscAddr:    jc.Bus.OscAddr,
			TimeoutUS:  jc.Bus.TimeoutUS,
		},
	}, nil
}
