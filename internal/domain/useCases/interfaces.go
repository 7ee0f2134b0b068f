package useCases

import (
	"context"

	"swapStreamApp/internal/domain/model"
)

// Broadcaster fans one decoded event out to every live subscriber.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev *model.TradeEvent) error
	SubscriberCount() int
	Close()
}

// MessageHandler receives the raw value of every record fetched from the log.
type MessageHandler func(ctx context.Context, value []byte)

// EventSource is a long-lived subscription to one topic of the log.
type EventSource interface {
	Run(ctx context.Context, handle MessageHandler) error
	State() string
	Close() error
}

// EventSink accumulates events on the viewer side.
type EventSink interface {
	Add(ev model.TradeEvent) bool
	Clear()
	Snapshot() ([]model.TradeEvent, model.RunningStats)
}
