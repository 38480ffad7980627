package config

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/bus"
)

func TestPublishEmbeddedRetainedPerSection(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "pico" {
			return nil, false
		}
		return []byte(`{
			"clockgen": {"tick_us": 100},
			"heartbeat": {"interval_ms": 250},
			"bridge": {"transport": {"type": "uart"}}
		}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	svc := NewService()

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "pico")
	svc.Start(ctx, conn)

	// Retained messages arrive on subscribe once the publisher has run;
	// live delivery covers the race the other way.
	sub := conn.Subscribe(bus.Topic{configPrefix, "#"})
	defer conn.Unsubscribe(sub)

	got := map[string]any{}
	deadline := time.Now().Add(time.Second)
	for len(got) < 3 && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if len(m.Topic) != 2 || m.Topic[0] != configPrefix {
				t.Fatalf("unexpected topic %v", m.Topic)
			}
			got[m.Topic[1]] = m.Payload
			if !m.Retained {
				t.Fatalf("config/%s not retained", m.Topic[1])
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 sections, got %d (%v)", len(got), got)
	}

	cg, ok := got["clockgen"].(map[string]any)
	if !ok {
		t.Fatalf("clockgen payload type %T, want map[string]any", got["clockgen"])
	}
	if v, _ := cg["tick_us"].(float64); v != 100 {
		t.Fatalf("clockgen.tick_us = %#v, want 100", cg["tick_us"])
	}
	hb, ok := got["heartbeat"].(map[string]any)
	if !ok {
		t.Fatalf("heartbeat payload type %T", got["heartbeat"])
	}
	if v, _ := hb["interval_ms"].(float64); v != 250 {
		t.Fatalf("heartbeat.interval_ms = %#v, want 250", hb["interval_ms"])
	}
	br, ok := got["bridge"].(map[string]any)
	if !ok {
		t.Fatalf("bridge payload type %T", got["bridge"])
	}
	tr, _ := br["transport"].(map[string]any)
	if typ, _ := tr["type"].(string); typ != "uart" {
		t.Fatalf("bridge.transport.type = %#v, want \"uart\"", tr["type"])
	}
}

func TestPublishConfigMissingDevice(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test-missing-device")
	svc := NewService()

	if err := svc.publishConfig(context.Background(), conn); err == nil {
		t.Fatal("expected error for missing device ID, got nil")
	}
}

func TestPublishConfigUnknownDevice(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) { return nil, false }
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(4)
	conn := b.NewConnection("test-no-config")
	svc := NewService()

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "unknown-device")
	if err := svc.publishConfig(ctx, conn); err == nil {
		t.Fatal("expected error for missing embedded config, got nil")
	}
}

// Guards the shipped pico defaults against silent typos.
func TestShippedPicoDefaultsParse(t *testing.T) {
	raw, ok := EmbeddedConfigLookup("pico")
	if !ok {
		t.Fatal("no embedded config for pico")
	}
	var sections map[string]any
	if err := json.Unmarshal(raw, &sections); err != nil {
		t.Fatalf("embedded pico config does not parse: %v", err)
	}
	for _, want := range []string{"clockgen", "bridge", "heartbeat"} {
		if _, ok := sections[want]; !ok {
			t.Fatalf("embedded pico config missing %q section", want)
		}
	}
	br := sections["bridge"].(map[string]any)
	tr, _ := br["transport"].(map[string]any)
	if typ, _ := tr["type"].(string); typ != "uart" {
		t.Fatalf("bridge transport type = %#v, want uart", tr["type"])
	}
	if _, ok := br["mirror"].([]any); !ok {
		t.Fatalf("bridge mirror missing or not a list: %#v", br["mirror"])
	}
}
