// Package types holds the bus-facing payload schemas. Everything here
// is JSON-friendly and small enough to publish from a TinyGo target.
package types

// ---- Service state (retained) ----

// State is published on clockgen/state whenever the engine's level
// changes.
type State struct {
	Level  string `json:"level"` // "idle", "programming_ch0", ..., "done"
	Faults uint8  `json:"faults"`
	TS     int64  `json:"ts_ms"`
}

// ---- Per-channel programming report (retained) ----

// ChannelReport is published on clockgen/channel/<n> once a programming
// cycle finishes. Configs are the packed 48-bit register images.
// FaultCode names the abort cause from the errcode taxonomy and is
// absent on a clean run.
type ChannelReport struct {
	Channel    int    `json:"channel"`
	OrigConfig uint64 `json:"orig_config"`
	NewConfig  uint64 `json:"new_config"`
	CrystalHz  uint64 `json:"crystal_hz"`
	Fault      bool   `json:"fault"`
	FaultCode  string `json:"fault_code,omitempty"`
	TS         int64  `json:"ts_ms"`
}

// ---- Liveness (retained) ----

// Heartbeat is published periodically on heartbeat while the firmware
// is up.
type Heartbeat struct {
	Seq      uint32 `json:"seq"`
	UptimeMS int64  `json:"uptime_ms"`
	TS       int64  `json:"ts_ms"`
}

// ---- Control payloads ----

// Reprogram asks the service to run another programming cycle. The
// zero value is a valid request.
type Reprogram struct{}

// Ack is the generic control reply. Code carries an errcode string
// when OK is false.
type Ack struct {
	OK   bool   `json:"ok"`
	Code string `json:"code,omitempty"`
}
