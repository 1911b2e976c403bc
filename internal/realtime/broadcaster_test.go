package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func drain(t *testing.T, sub *Subscriber) []Message {
	t.Helper()

	var msgs []Message

	for {
		select {
		case msg, ok := <-sub.Updates():
			if !ok {
				return msgs
			}

			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestBroadcaster(t *testing.T) {
	t.Run("delivers only to the published topic", func(t *testing.T) {
		b := NewBroadcaster(zap.NewNop())
		urlSub := NewSubscriber(4)
		globalSub := NewSubscriber(4)

		b.Subscribe(urlSub, TopicForURL("abc123"))
		b.Subscribe(globalSub, TopicGlobal)

		b.Publish(TopicForURL("abc123"), MessageTypeURLPulse, "payload")

		urlMsgs := drain(t, urlSub)
		require.Len(t, urlMsgs, 1)
		assert.Equal(t, "url:abc123", urlMsgs[0].Topic)
		assert.Equal(t, MessageTypeURLPulse, urlMsgs[0].Type)

		assert.Empty(t, drain(t, globalSub))
	})

	t.Run("a subscriber can join multiple topics", func(t *testing.T) {
		b := NewBroadcaster(zap.NewNop())
		sub := NewSubscriber(4)

		b.Subscribe(sub, TopicGlobal)
		b.Subscribe(sub, TopicForURL("abc123"))

		b.Publish(TopicGlobal, MessageTypeGlobalPulse, nil)
		b.Publish(TopicForURL("abc123"), MessageTypeURLPulse, nil)

		assert.Len(t, drain(t, sub), 2)
	})

	t.Run("unsubscribe stops delivery for that topic only", func(t *testing.T) {
		b := NewBroadcaster(zap.NewNop())
		sub := NewSubscriber(4)

		b.Subscribe(sub, TopicGlobal)
		b.Subscribe(sub, TopicForURL("abc123"))
		b.Unsubscribe(sub, TopicForURL("abc123"))

		b.Publish(TopicForURL("abc123"), MessageTypeURLPulse, nil)
		b.Publish(TopicGlobal, MessageTypeGlobalPulse, nil)

		msgs := drain(t, sub)
		require.Len(t, msgs, 1)
		assert.Equal(t, TopicGlobal, msgs[0].Topic)
	})

	t.Run("a full subscriber is skipped without blocking", func(t *testing.T) {
		b := NewBroadcaster(zap.NewNop())
		slow := NewSubscriber(1)
		fast := NewSubscriber(4)

		b.Subscribe(slow, TopicGlobal)
		b.Subscribe(fast, TopicGlobal)

		b.Publish(TopicGlobal, MessageTypeGlobalPulse, 1)
		b.Publish(TopicGlobal, MessageTypeGlobalPulse, 2)
		b.Publish(TopicGlobal, MessageTypeGlobalPulse, 3)

		assert.Len(t, drain(t, slow), 1)
		assert.Len(t, drain(t, fast), 3)
	})

	t.Run("disconnect removes all subscriptions and closes the channel", func(t *testing.T) {
		b := NewBroadcaster(zap.NewNop())
		sub := NewSubscriber(4)

		b.Subscribe(sub, TopicGlobal)
		b.Subscribe(sub, TopicForURL("abc123"))
		b.Disconnect(sub)

		assert.Zero(t, b.SubscriberCount(TopicGlobal))
		assert.Zero(t, b.SubscriberCount(TopicForURL("abc123")))

		_, ok := <-sub.Updates()
		assert.False(t, ok)

		// Publishing after disconnect must not panic.
		b.Publish(TopicGlobal, MessageTypeGlobalPulse, nil)
	})

	t.Run("shutdown disconnects everyone", func(t *testing.T) {
		b := NewBroadcaster(zap.NewNop())
		first := NewSubscriber(4)
		second := NewSubscriber(4)

		b.Subscribe(first, TopicGlobal)
		b.Subscribe(second, TopicForURL("abc123"))

		require.NoError(t, b.Shutdown())

		_, firstOpen := <-first.Updates()
		_, secondOpen := <-second.Updates()
		assert.False(t, firstOpen)
		assert.False(t, secondOpen)
		assert.Zero(t, b.SubscriberCount(TopicGlobal))
	})
}
