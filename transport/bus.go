// Package transport moves image messages between the producers feeding the perception node and
// the consumers of its output. Topics are plain strings, ROS style. Every subscription has a
// single-slot mailbox: a slow subscriber only ever sees the newest message, and each message it
// missed is counted as a drop.
package transport

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/ros"
)

// ErrClosed is returned when using a closed bus or subscription.
var ErrClosed = errors.New("transport closed")

// Mailbox holds at most one message. Put never blocks; a message that was not taken before the
// next Put is replaced and counted as dropped.
type Mailbox struct {
	mu    sync.Mutex
	slot  chan *ros.Image
	done  chan struct{}
	once  sync.Once
	drops atomic.Uint64
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{slot: make(chan *ros.Image, 1), done: make(chan struct{})}
}

// Put stores msg, replacing any message not yet taken.
func (m *Mailbox) Put(msg *ros.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.done:
		return
	default:
	}
	select {
	case <-m.slot:
		m.drops.Inc()
	default:
	}
	m.slot <- msg
}

// Next waits for a message. It fails with ErrClosed once the mailbox is closed and empty, or
// with the context's error.
func (m *Mailbox) Next(ctx context.Context) (*ros.Image, error) {
	select {
	case msg := <-m.slot:
		return msg, nil
	default:
	}
	select {
	case msg := <-m.slot:
		return msg, nil
	case <-m.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Drops returns how many messages were replaced before being taken.
func (m *Mailbox) Drops() uint64 {
	return m.drops.Load()
}

// Close wakes every waiting Next. Later Puts are ignored.
func (m *Mailbox) Close() {
	m.once.Do(func() { close(m.done) })
}

// Subscription receives the messages published on one topic.
type Subscription struct {
	*Mailbox
	topic string
	bus   *Bus
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Close unsubscribes and wakes any waiting Next.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
	s.Mailbox.Close()
}

// Bus is an in-process publish/subscribe hub.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
	logger logging.Logger

	countMu   sync.Mutex
	published map[string]uint64
}

// NewBus returns an empty bus.
func NewBus(logger logging.Logger) *Bus {
	return &Bus{
		subs:      map[string]map[*Subscription]struct{}{},
		published: map[string]uint64{},
		logger:    logger,
	}
}

// Subscribe starts receiving the messages published on topic from now on.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{Mailbox: NewMailbox(), topic: topic, bus: b}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.Mailbox.Close()
		return sub
	}
	if b.subs[topic] == nil {
		b.subs[topic] = map[*Subscription]struct{}{}
	}
	b.subs[topic][sub] = struct{}{}
	b.logger.Debugw("subscribed", "topic", topic)
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[sub.topic], sub)
}

// Publish hands msg to every current subscriber of topic. It never blocks on subscribers.
// Subscribers share msg and must not modify it.
func (b *Bus) Publish(ctx context.Context, topic string, msg *ros.Image) error {
	if msg == nil {
		return errors.New("cannot publish a nil message")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for sub := range b.subs[topic] {
		sub.Put(msg)
	}
	b.countMu.Lock()
	b.published[topic]++
	b.countMu.Unlock()
	return nil
}

// Published returns how many messages were published on topic.
func (b *Bus) Published(topic string) uint64 {
	b.countMu.Lock()
	defer b.countMu.Unlock()
	return b.published[topic]
}

// Close closes every subscription. Publishing afterwards fails with ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for sub := range subs {
			sub.Mailbox.Close()
		}
	}
	b.subs = map[string]map[*Subscription]struct{}{}
}
