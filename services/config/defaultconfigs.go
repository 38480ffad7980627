package config

// Embedded per-device configuration, keyed by the device ID that run
// finds in ctx under CtxDeviceKey. Hand-maintained for now; a build
// step could generate an entry per board.

const cfgPico = `{
  "clockgen": {
    "tick_us": 100,
    "settle_ms": 25,
    "recall_settle_ms": 10
  },
  "bridge": {
    "transport": {
      "type": "uart",
      "uart": {"baud": 115200, "tx_pin": 4, "rx_pin": 5}
    },
    "mirror": ["clockgen/#", "heartbeat"]
  },
  "heartbeat": {
    "interval_ms": 2000
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
}
