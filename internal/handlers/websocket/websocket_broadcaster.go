package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"swapStreamApp/internal/domain/model"
	"swapStreamApp/internal/domain/useCases"
	"swapStreamApp/internal/lib/logger/sl"
)

// DefaultQueueSize bounds the frames waiting for one subscriber.
const DefaultQueueSize = 256

// ErrBroadcasterClosed is returned once shutdown has begun.
var ErrBroadcasterClosed = errors.New("broadcaster closed")

// DeliveryError reports that one subscriber could not take a frame. Only that
// subscriber is dropped.
type DeliveryError struct {
	SubscriberID string
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to subscriber %s: %v", e.SubscriberID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Counters is a point-in-time copy of the broadcaster's totals.
type Counters struct {
	Broadcasts       uint64
	Deliveries       uint64
	DeliveryFailures uint64
}

// WebSocketBroadcaster fans decoded trade events out to every registered
// subscriber. Delivery is best-effort: a subscriber whose queue is full or
// whose connection is gone is removed without affecting the others.
type WebSocketBroadcaster struct {
	registry  *Registry
	upgrader  websocket.Upgrader
	queueSize int
	control   []byte
	log       *slog.Logger

	broadcasts atomic.Uint64
	deliveries atomic.Uint64
	failures   atomic.Uint64
}

// NewWebSocketBroadcaster creates a broadcaster whose handshake confirmation
// reads "WebSocket connected to <label> stream".
func NewWebSocketBroadcaster(label string, queueSize int, log *slog.Logger) *WebSocketBroadcaster {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	control, _ := json.Marshal(model.ControlMessage{
		Type:    model.ControlTypeConnected,
		Message: fmt.Sprintf("WebSocket connected to %s stream", label),
	})

	return &WebSocketBroadcaster{
		registry:  NewRegistry(),
		queueSize: queueSize,
		control:   control,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    1024,
			WriteBufferSize:   1024,
			EnableCompression: false,
			CheckOrigin:       func(r *http.Request) bool { return true },
		},
	}
}

// Broadcast serializes ev once and queues it for every subscriber in a
// snapshot of the registry taken now.
func (b *WebSocketBroadcaster) Broadcast(ctx context.Context, ev *model.TradeEvent) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if b.registry.Closed() {
		return ErrBroadcasterClosed
	}

	msg, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal trade event %s: %w", ev.TransactionID, err)
	}

	b.broadcasts.Add(1)
	for _, sub := range b.registry.Snapshot() {
		if err := sub.Send(msg); err != nil {
			b.drop(sub, &DeliveryError{SubscriberID: sub.ID(), Err: err})
			continue
		}
		b.deliveries.Add(1)
	}
	return nil
}

// Attach completes a handshake: the control frame is queued for sub alone,
// then sub joins the registry, so it precedes any data frame.
func (b *WebSocketBroadcaster) Attach(sub Subscriber) error {
	if b.registry.Closed() {
		_ = sub.Close()
		return ErrBroadcasterClosed
	}
	if err := sub.Send(b.control); err != nil {
		_ = sub.Close()
		return &DeliveryError{SubscriberID: sub.ID(), Err: err}
	}
	if !b.registry.Add(sub) {
		_ = sub.Close()
		if b.registry.Closed() {
			return ErrBroadcasterClosed
		}
		return fmt.Errorf("subscriber %s already registered", sub.ID())
	}

	b.log.Info("client connected", slog.String("subscriber", sub.ID()), slog.Int("subscribers", b.registry.Len()))
	return nil
}

// Detach removes sub after its transport closed. Safe to call more than once.
func (b *WebSocketBroadcaster) Detach(sub Subscriber) {
	if b.registry.Remove(sub) {
		b.log.Info("client disconnected", slog.String("subscriber", sub.ID()), slog.Int("subscribers", b.registry.Len()))
	}
	_ = sub.Close()
}

func (b *WebSocketBroadcaster) drop(sub Subscriber, err *DeliveryError) {
	b.failures.Add(1)
	if b.registry.Remove(sub) {
		b.log.Warn("dropping subscriber", sl.Err(err))
	}
	_ = sub.Close()
}

// SubscriberCount returns the number of live subscribers.
func (b *WebSocketBroadcaster) SubscriberCount() int {
	return b.registry.Len()
}

// Registry exposes the subscriber set.
func (b *WebSocketBroadcaster) Registry() *Registry {
	return b.registry
}

// Counters returns the running totals.
func (b *WebSocketBroadcaster) Counters() Counters {
	return Counters{
		Broadcasts:       b.broadcasts.Load(),
		Deliveries:       b.deliveries.Load(),
		DeliveryFailures: b.failures.Load(),
	}
}

// Close closes every live connection and rejects further broadcasts.
func (b *WebSocketBroadcaster) Close() {
	subs := b.registry.CloseAll()
	for _, sub := range subs {
		_ = sub.Close()
	}
	b.log.Info("broadcaster closed", slog.Int("closed_connections", len(subs)))
}

// Handler returns an http.HandlerFunc to accept websocket connections.
func (b *WebSocketBroadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.log.Warn("websocket upgrade error", sl.Err(err))
			return
		}

		c := newConnection(conn, b.queueSize, b.log)
		gone := func() { b.Detach(c) }

		go c.writePump(gone)
		if err := b.Attach(c); err != nil {
			b.log.Warn("websocket handshake rejected", sl.Err(err))
			return
		}
		go c.readPump(gone)
	}
}

// Ensure interface compliance
var _ useCases.Broadcaster = (*WebSocketBroadcaster)(nil)
