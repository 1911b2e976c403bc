// Package realtime pushes freshly computed short-window statistics to
// topic subscribers after each ingested click.
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TopicGlobal is the platform-wide realtime topic.
const TopicGlobal = "realtime"

// TopicForURL returns the per-URL topic for a short code.
func TopicForURL(shortCode string) string {
	return "url:" + shortCode
}

// Message types published on the topics.
const (
	MessageTypeURLPulse    = "url_pulse"
	MessageTypeGlobalPulse = "global_pulse"
)

// Message is one broadcast payload.
type Message struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	Data  any    `json:"data"`
}

// Subscriber is one connected consumer of broadcast messages. Delivery is
// through a buffered channel; a subscriber that stops draining loses
// messages instead of blocking the fan-out.
type Subscriber struct {
	id   string
	send chan Message

	mu     sync.Mutex
	closed bool
}

// NewSubscriber creates a subscriber handle with the given delivery
// buffer.
func NewSubscriber(buffer int) *Subscriber {
	return &Subscriber{
		id:   uuid.NewString(),
		send: make(chan Message, buffer),
	}
}

// ID returns the subscriber's unique id.
func (s *Subscriber) ID() string {
	return s.id
}

// Updates is the subscriber's delivery channel. It is closed when the
// subscriber disconnects.
func (s *Subscriber) Updates() <-chan Message {
	return s.send
}

// offer delivers without blocking and reports whether the message was
// accepted.
func (s *Subscriber) offer(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// Broadcaster is a topic-scoped publish/subscribe hub. Subscriptions are
// process-local and lost on restart; subscribers re-subscribe on
// reconnect.
type Broadcaster struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscriber]struct{}
	subs   map[*Subscriber]map[string]struct{}
	logger *zap.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		topics: make(map[string]map[*Subscriber]struct{}),
		subs:   make(map[*Subscriber]map[string]struct{}),
		logger: logger,
	}
}

// Subscribe joins the subscriber to a topic. A subscriber may belong to
// any number of topics.
func (b *Broadcaster) Subscribe(sub *Subscriber, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*Subscriber]struct{})
	}

	b.topics[topic][sub] = struct{}{}

	if b.subs[sub] == nil {
		b.subs[sub] = make(map[string]struct{})
	}

	b.subs[sub][topic] = struct{}{}
}

// Unsubscribe removes the subscriber from one topic.
func (b *Broadcaster) Unsubscribe(sub *Subscriber, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.removeLocked(sub, topic)
}

func (b *Broadcaster) removeLocked(sub *Subscriber, topic string) {
	if members, ok := b.topics[topic]; ok {
		delete(members, sub)

		if len(members) == 0 {
			delete(b.topics, topic)
		}
	}

	if topics, ok := b.subs[sub]; ok {
		delete(topics, topic)

		if len(topics) == 0 {
			delete(b.subs, sub)
		}
	}
}

// Disconnect removes the subscriber from all topics it had joined and
// closes its delivery channel.
func (b *Broadcaster) Disconnect(sub *Subscriber) {
	b.mu.Lock()

	for topic := range b.subs[sub] {
		b.removeLocked(sub, topic)
	}

	delete(b.subs, sub)

	b.mu.Unlock()

	sub.close()
}

// Publish fans a message out to every subscriber of a topic. Fan-out is
// fire-and-forget per subscriber: a slow subscriber is skipped, never
// waited on.
func (b *Broadcaster) Publish(topic string, msgType string, data any) {
	msg := Message{Topic: topic, Type: msgType, Data: data}

	b.mu.RLock()
	members := make([]*Subscriber, 0, len(b.topics[topic]))

	for sub := range b.topics[topic] {
		members = append(members, sub)
	}
	b.mu.RUnlock()

	for _, sub := range members {
		if !sub.offer(msg) {
			b.logger.Debug("dropped broadcast for slow subscriber",
				zap.String("topic", topic),
				zap.String("subscriberId", sub.ID()),
			)
		}
	}
}

// SubscriberCount returns the number of subscribers on a topic.
func (b *Broadcaster) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.topics[topic])
}

// Shutdown disconnects every subscriber.
func (b *Broadcaster) Shutdown() error {
	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subs))

	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		b.Disconnect(sub)
	}

	return nil
}
