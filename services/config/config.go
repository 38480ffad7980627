// Package config publishes the device's embedded configuration as
// retained bus messages, one message per top-level section. Services
// pick their section up on config/<section> whenever they subscribe,
// with no startup ordering between them and the publisher.
package config

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/bus"
)

const (
	serviceName  = "config"
	configPrefix = "config"

	// CtxDeviceKey is the context key naming the device whose embedded
	// config should be published.
	CtxDeviceKey = "device"
)

// EmbeddedConfigLookup resolves the raw JSON for a device ID. Tests
// and alternative builds may replace it.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

type Service struct {
	Name string
}

func NewService() *Service {
	return &Service{Name: serviceName}
}

// publishConfig decodes the embedded JSON object for the device named
// in ctx and publishes every top-level section retained on
// config/<section>.
func (s *Service) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("device ID missing from context")
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("no embedded config for " + device)
	}

	var sections map[string]any
	if err := json.Unmarshal(raw, &sections); err != nil {
		return err
	}

	for k, v := range sections {
		conn.Publish(conn.NewMessage(bus.Topic{configPrefix, k}, v, true))
	}
	return nil
}

// Start launches the publisher in a goroutine.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			println("[config]", err.Error())
		}
	}()
}
