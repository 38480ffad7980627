// Package bus is the in-process message fabric the services talk over:
// a topic trie with buffered subscriptions, retained messages, MQTT
// style wildcards and a small request/reply convention built on
// per-request reply topics.
package bus

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a path of string tokens, e.g. Topic{"clockgen", "state"}.
// In subscription patterns the token "+" matches exactly one level and
// a trailing "#" matches any remaining levels, including none.
type Topic []string

func (t Topic) String() string { return strings.Join(t, "/") }

// Clone returns a copy that does not alias the receiver.
func (t Topic) Clone() Topic {
	out := make(Topic, len(t))
	copy(out, t)
	return out
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// push delivers without blocking, dropping the oldest queued message
// when the subscriber has fallen behind.
func (s *Subscription) push(msg *Message) {
	select {
	case s.ch <- msg:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- msg:
		default:
		}
	}
}

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[string]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok string) *node {
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	c, ok := n.children[tok]
	if !ok {
		c = &node{}
		n.children[tok] = c
	}
	return c
}

// match collects every subscription whose pattern matches topic.
func (n *node) match(topic Topic, out *[]*Subscription) {
	if len(topic) == 0 {
		*out = append(*out, n.subs...)
		// A trailing "#" also matches the level above it.
		if h, ok := n.children["#"]; ok {
			*out = append(*out, h.subs...)
		}
		return
	}
	if c, ok := n.children[topic[0]]; ok {
		c.match(topic[1:], out)
	}
	if c, ok := n.children["+"]; ok {
		c.match(topic[1:], out)
	}
	if c, ok := n.children["#"]; ok {
		*out = append(*out, c.subs...)
	}
}

// retainedFor collects the retained messages a pattern would match.
func (n *node) retainedFor(pattern Topic, out *[]*Message) {
	if len(pattern) == 0 {
		if n.retained != nil {
			*out = append(*out, n.retained)
		}
		return
	}
	switch pattern[0] {
	case "#":
		n.retainedAll(out)
	case "+":
		for _, c := range n.children {
			c.retainedFor(pattern[1:], out)
		}
	default:
		if c, ok := n.children[pattern[0]]; ok {
			c.retainedFor(pattern[1:], out)
		}
	}
}

func (n *node) retainedAll(out *[]*Message) {
	if n.retained != nil {
		*out = append(*out, n.retained)
	}
	for _, c := range n.children {
		c.retainedAll(out)
	}
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu   sync.RWMutex
	root *node
	qLen int
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{
		root: &node{},
		qLen: queueLen,
	}
}

// NewMessage builds a message ready for Publish.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// Publish delivers a message to every matching subscription. A
// retained message is also stored at its topic; a retained message
// with a nil payload clears the stored one.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var subs []*Subscription
	b.root.match(msg.Topic, &subs)
	for _, sub := range subs {
		sub.push(msg)
	}

	if !msg.Retained {
		return
	}
	n := b.root
	for _, tok := range msg.Topic {
		n = n.child(tok)
	}
	if msg.Payload == nil {
		n.retained = nil
	} else {
		n.retained = msg
	}
}

// addSubscription inserts a subscription into the trie and delivers
// any retained messages its pattern matches.
func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range sub.topic {
		n = n.child(tok)
	}
	n.subs = append(n.subs, sub)

	var retained []*Message
	b.root.retainedFor(sub.topic, &retained)
	for _, msg := range retained {
		sub.push(msg)
	}
}

// unsubscribe removes a subscription from the trie.
func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	var stack []*node
	for _, tok := range sub.topic {
		if n.children == nil {
			return
		}
		child, ok := n.children[tok]
		if !ok {
			return
		}
		stack = append(stack, n)
		n = child
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	// Walk back up dropping nodes that hold nothing anymore.
	for i := len(sub.topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := sub.topic[i]
		child := parent.children[key]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
	seq  uint64
}

// NewConnection creates a new connection bound to this bus. The id
// scopes the reply topics minted by Request.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{
		bus: b,
		id:  id,
	}
}

// NewMessage builds a message ready for Publish.
func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection. The
// topic may contain "+" and trailing "#" wildcards.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic.Clone(),
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.bus.addSubscription(sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}

// Reply publishes a response to a request's ReplyTo topic. Requests
// without one are ignored.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if len(req.ReplyTo) == 0 {
		return
	}
	c.bus.Publish(&Message{Topic: req.ReplyTo, Payload: payload, Retained: retained})
}

// Request stamps the message with a fresh reply topic, subscribes to
// it and publishes the request. The caller owns the returned
// subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	c.mu.Lock()
	c.seq++
	n := c.seq
	c.mu.Unlock()

	msg.ReplyTo = Topic{"_reply", c.id, strconv.FormatUint(n, 10)}
	sub := c.Subscribe(msg.ReplyTo)
	c.bus.Publish(msg)
	return sub
}

// RequestWait performs Request and blocks until the first reply
// arrives or the context ends.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)

	select {
	case reply := <-sub.ch:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
