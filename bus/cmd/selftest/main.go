//go:build rp2040 || rp2350

// On-device checks for the message bus. The scenarios shadow the host
// test suite so a behaviour difference between the host runtime and
// the MCU scheduler shows up here. Flash to a Pico and watch the
// serial console: solid LED means every scenario passed, slow blink
// means at least one failed.
package main

import (
	"context"
	"sort"
	"time"

	"machine"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/bus"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/fmtx"
)

func logln(s string) { println(s) }
func logf(format string, a ...any) {
	println(fmtx.Sprintf(format, a...))
}

// tryRecv pulls one queued message without blocking. Valid whenever
// the publisher ran on this goroutine, since delivery completes inside
// Publish.
func tryRecv(sub *bus.Subscription) (*bus.Message, bool) {
	select {
	case m := <-sub.Channel():
		return m, true
	default:
		return nil, false
	}
}

// drainQueued empties the subscription's queue and returns the string
// payloads sorted, since retained fan-out order follows map iteration.
func drainQueued(sub *bus.Subscription) []string {
	var out []string
	for {
		m, ok := tryRecv(sub)
		if !ok {
			sort.Strings(out)
			return out
		}
		if s, ok := m.Payload.(string); ok {
			out = append(out, s)
		}
	}
}

// sameStrings compares a drained (sorted) slice against a sorted want.
func sameStrings(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// --- scenarios, named after their host-suite twins ----------------------------

func TestPublishSubscribe() bool {
	b := bus.NewBus(4)
	c := b.NewConnection("selftest")
	sub := c.Subscribe(bus.Topic{"clockgen", "state"})

	c.Publish(c.NewMessage(bus.Topic{"clockgen", "state"}, "hello", false))

	m, ok := tryRecv(sub)
	if !ok || m.Payload != "hello" {
		logln("pubsub: message not delivered")
		return false
	}
	return true
}

func TestRetainedMessage() bool {
	b := bus.NewBus(4)
	c := b.NewConnection("selftest")

	c.Publish(b.NewMessage(bus.Topic{"config", "clockgen"}, "persist", true))

	m, ok := tryRecv(c.Subscribe(bus.Topic{"config", "clockgen"}))
	if !ok || m.Payload != "persist" {
		logln("retained: snapshot not replayed")
		return false
	}
	return true
}

func TestRetainedClear() bool {
	b := bus.NewBus(4)
	c := b.NewConnection("selftest")

	c.Publish(b.NewMessage(bus.Topic{"config", "clockgen"}, "stale", true))
	c.Publish(b.NewMessage(bus.Topic{"config", "clockgen"}, nil, true))

	if _, ok := tryRecv(c.Subscribe(bus.Topic{"config", "clockgen"})); ok {
		logln("retained clear: stale value replayed")
		return false
	}
	return true
}

func TestDropOldestWhenFull() bool {
	b := bus.NewBus(2)
	c := b.NewConnection("selftest")
	sub := c.Subscribe(bus.Topic{"clockgen", "channel", "0"})

	// Three publishes into a depth-2 queue with no reader: the first
	// message is the one that gets dropped.
	for _, p := range []string{"m1", "m2", "m3"} {
		c.Publish(c.NewMessage(bus.Topic{"clockgen", "channel", "0"}, p, false))
	}

	if got := drainQueued(sub); !sameStrings(got, []string{"m2", "m3"}) {
		logf("drop-oldest: kept %d messages", len(got))
		return false
	}
	return true
}

func TestWildcardMatching() bool {
	b := bus.NewBus(64)
	c := b.NewConnection("selftest")

	patterns := []bus.Topic{
		{"clockgen", "channel", "+"},
		{"clockgen", "+", "0"},
		{"clockgen", "#"},
		{"+", "state"},
		{"#"},
	}
	subs := make([]*bus.Subscription, len(patterns))
	for i, p := range patterns {
		subs[i] = c.Subscribe(p)
	}

	cases := []struct {
		topic bus.Topic
		hits  string // one column per pattern: 'x' delivered, '.' not
	}{
		{bus.Topic{"clockgen", "channel", "0"}, "xxx.x"},
		{bus.Topic{"clockgen", "channel", "1"}, "x.x.x"},
		{bus.Topic{"clockgen", "state"}, "..xxx"},
		// A trailing "#" also matches its bare parent.
		{bus.Topic{"clockgen"}, "..x.x"},
		// "+" pins exactly one level, never more,
		{bus.Topic{"clockgen", "channel", "0", "raw"}, "..x.x"},
		// and never zero.
		{bus.Topic{"state"}, "....x"},
	}
	for _, tc := range cases {
		c.Publish(b.NewMessage(tc.topic, tc.topic.String(), false))
		for i, sub := range subs {
			_, ok := tryRecv(sub)
			if want := tc.hits[i] == 'x'; ok != want {
				logf("wildcard: %s vs %s delivered=%t",
					tc.topic.String(), patterns[i].String(), ok)
				return false
			}
		}
	}
	return true
}

func TestRetainedFanOutOnSubscribe() bool {
	b := bus.NewBus(32)
	c := b.NewConnection("selftest")

	c.Publish(b.NewMessage(bus.Topic{"clockgen", "state"}, "done", true))
	c.Publish(b.NewMessage(bus.Topic{"clockgen", "channel", "0"}, "ch0", true))
	c.Publish(b.NewMessage(bus.Topic{"clockgen", "channel", "1"}, "ch1", true))
	c.Publish(b.NewMessage(bus.Topic{"heartbeat"}, "hb", true))

	cases := []struct {
		pattern bus.Topic
		want    []string
	}{
		{bus.Topic{"clockgen", "#"}, []string{"ch0", "ch1", "done"}},
		{bus.Topic{"clockgen", "channel", "+"}, []string{"ch0", "ch1"}},
		{bus.Topic{"#"}, []string{"ch0", "ch1", "done", "hb"}},
	}
	for _, tc := range cases {
		got := drainQueued(c.Subscribe(tc.pattern))
		if !sameStrings(got, tc.want) {
			logf("retained fan-out: %s replayed %d of %d",
				tc.pattern.String(), len(got), len(tc.want))
			return false
		}
	}
	return true
}

func TestRetainedClearStopsFanOut() bool {
	b := bus.NewBus(8)
	c := b.NewConnection("selftest")

	c.Publish(b.NewMessage(bus.Topic{"clockgen", "channel", "0"}, "stale", true))
	c.Publish(b.NewMessage(bus.Topic{"clockgen", "state"}, "live", true))
	c.Publish(b.NewMessage(bus.Topic{"clockgen", "channel", "0"}, nil, true))

	got := drainQueued(c.Subscribe(bus.Topic{"clockgen", "#"}))
	if len(got) != 1 || got[0] != "live" {
		logf("retained clear: %d values replayed", len(got))
		return false
	}
	return true
}

func TestRequestWaitRoundTrip() bool {
	b := bus.NewBus(8)
	cli := b.NewConnection("requester")
	svc := b.NewConnection("responder")

	reqSub := svc.Subscribe(bus.Topic{"clockgen", "control", "reprogram"})
	go func() {
		if m, ok := <-reqSub.Channel(); ok {
			svc.Reply(m, "accepted", false)
		}
	}()

	req := b.NewMessage(bus.Topic{"clockgen", "control", "reprogram"}, nil, false)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	reply, err := cli.RequestWait(ctx, req)
	svc.Unsubscribe(reqSub)

	if err != nil {
		logf("request: %s", err.Error())
		return false
	}
	if s, _ := reply.Payload.(string); s != "accepted" {
		logln("request: wrong reply payload")
		return false
	}
	if reply.Topic.String() != req.ReplyTo.String() {
		logln("request: reply not on the minted ReplyTo")
		return false
	}
	return true
}

func TestRequestWaitContextExpires() bool {
	b := bus.NewBus(4)
	cli := b.NewConnection("requester")

	// Nobody subscribes to the topic, so the request must time out.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := cli.RequestWait(ctx, b.NewMessage(bus.Topic{"service", "noop"}, nil, false)); err == nil {
		logln("request timeout: RequestWait returned without error")
		return false
	}
	return true
}

func TestRequestManualReplySubscription() bool {
	b := bus.NewBus(8)
	cli := b.NewConnection("requester")
	svc := b.NewConnection("responder")

	ctlSub := svc.Subscribe(bus.Topic{"clockgen", "status", "get"})
	replySub := cli.Request(b.NewMessage(bus.Topic{"clockgen", "status", "get"}, nil, false))

	// Request publishes before returning, so the request is already
	// queued at the responder.
	m, ok := tryRecv(ctlSub)
	if !ok {
		logln("manual reply: request not delivered")
		return false
	}
	svc.Reply(m, map[string]any{"value": 42}, false)

	reply, ok := tryRecv(replySub)
	if !ok {
		logln("manual reply: no reply queued")
		return false
	}
	body, ok := reply.Payload.(map[string]any)
	if !ok {
		logln("manual reply: wrong payload type")
		return false
	}
	if v, _ := body["value"].(int); v != 42 {
		logln("manual reply: wrong payload content")
		return false
	}
	return true
}

func TestRequestsGetDistinctReplyTopics() bool {
	b := bus.NewBus(4)
	cli := b.NewConnection("requester")

	s1 := cli.Request(b.NewMessage(bus.Topic{"clockgen", "status", "get"}, nil, false))
	s2 := cli.Request(b.NewMessage(bus.Topic{"clockgen", "status", "get"}, nil, false))
	defer cli.Unsubscribe(s1)
	defer cli.Unsubscribe(s2)

	if s1.Topic().String() == s2.Topic().String() {
		logln("reply topics collide")
		return false
	}
	return true
}

// --- runner -------------------------------------------------------------------

func main() {
	// Give the USB serial a moment to enumerate before logging.
	time.Sleep(250 * time.Millisecond)

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led.High()

	scenarios := []struct {
		name string
		run  func() bool
	}{
		{"publish_subscribe", TestPublishSubscribe},
		{"retained_message", TestRetainedMessage},
		{"retained_clear", TestRetainedClear},
		{"drop_oldest_when_full", TestDropOldestWhenFull},
		{"wildcard_matching", TestWildcardMatching},
		{"retained_fan_out", TestRetainedFanOutOnSubscribe},
		{"retained_clear_fan_out", TestRetainedClearStopsFanOut},
		{"request_wait", TestRequestWaitRoundTrip},
		{"request_timeout", TestRequestWaitContextExpires},
		{"request_manual_reply", TestRequestManualReplySubscription},
		{"request_distinct_reply_topics", TestRequestsGetDistinctReplyTopics},
	}

	failed := 0
	logln("bus self-test")
	for _, sc := range scenarios {
		if sc.run() {
			logf("pass  %s", sc.name)
		} else {
			logf("FAIL  %s", sc.name)
			failed++
		}
	}
	logf("%d scenarios, %d failed", len(scenarios), failed)

	// Solid LED for a clean run, slow blink when anything failed.
	for {
		led.High()
		if failed == 0 {
			time.Sleep(time.Second)
			continue
		}
		time.Sleep(250 * time.Millisecond)
		led.Low()
		time.Sleep(250 * time.Millisecond)
	}
}
