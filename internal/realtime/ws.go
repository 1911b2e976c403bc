package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/serroba/clickstream-go/internal/clickstream"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024

	subscriberBuffer = 64
)

// Client control actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionSnapshot    = "snapshot"
)

// MessageTypeSnapshot carries the on-demand snapshot reply.
const MessageTypeSnapshot = "snapshot"

// MessageTypeError reports a rejected client action.
const MessageTypeError = "error"

// ClientCommand is a control message sent by a connected client.
type ClientCommand struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// WSHandler upgrades HTTP requests to websocket connections and bridges
// them onto the broadcaster. Every connection starts subscribed to the
// global topic and can join per-URL topics with subscribe commands.
type WSHandler struct {
	broadcaster *Broadcaster
	updater     *Updater
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewWSHandler creates a websocket handler.
func NewWSHandler(broadcaster *Broadcaster, updater *Updater, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		broadcaster: broadcaster,
		updater:     updater,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the connection and runs the read and write pumps
// until the client disconnects.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))

		return
	}

	sub := NewSubscriber(subscriberBuffer)
	h.broadcaster.Subscribe(sub, TopicGlobal)

	go h.writePump(conn, sub)
	h.readPump(r.Context(), conn, sub)
}

func (h *WSHandler) readPump(ctx context.Context, conn *websocket.Conn, sub *Subscriber) {
	defer func() {
		h.broadcaster.Disconnect(sub)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd ClientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed",
					zap.String("subscriberId", sub.ID()),
					zap.Error(err),
				)
			}

			return
		}

		h.handleCommand(ctx, sub, cmd)
	}
}

func (h *WSHandler) handleCommand(ctx context.Context, sub *Subscriber, cmd ClientCommand) {
	switch cmd.Action {
	case ActionSubscribe:
		if cmd.Topic != "" {
			h.broadcaster.Subscribe(sub, cmd.Topic)
			h.sendSnapshot(ctx, sub, cmd.Topic)
		}
	case ActionUnsubscribe:
		if cmd.Topic != "" {
			h.broadcaster.Unsubscribe(sub, cmd.Topic)
		}
	case ActionSnapshot:
		topic := cmd.Topic
		if topic == "" {
			topic = TopicGlobal
		}

		h.sendSnapshot(ctx, sub, topic)
	default:
		sub.offer(Message{Type: MessageTypeError, Data: "unknown action: " + cmd.Action})
	}
}

func (h *WSHandler) sendSnapshot(ctx context.Context, sub *Subscriber, topic string) {
	payload, err := h.updater.Snapshot(ctx, topic)
	if err != nil {
		if errors.Is(err, clickstream.ErrNotFound) || errors.Is(err, clickstream.ErrValidation) {
			sub.offer(Message{Topic: topic, Type: MessageTypeError, Data: "no such topic"})

			return
		}

		h.logger.Warn("failed to build snapshot", zap.String("topic", topic), zap.Error(err))

		return
	}

	sub.offer(Message{Topic: topic, Type: MessageTypeSnapshot, Data: json.RawMessage(payload)})
}

func (h *WSHandler) writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.Updates():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
