package app

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"swapStreamApp/internal/domain/useCases"
	"swapStreamApp/internal/infrastructure/wire"
	"swapStreamApp/internal/lib/logger/sl"
)

// EventProcessor turns raw log records into broadcasts. A record that does
// not decode is logged and skipped; it never stops the consumer.
type EventProcessor struct {
	Broadcaster useCases.Broadcaster
	log         *slog.Logger

	consumed       atomic.Uint64
	decodeFailures atomic.Uint64
}

func NewEventProcessor(broadcaster useCases.Broadcaster, log *slog.Logger) *EventProcessor {
	return &EventProcessor{
		Broadcaster: broadcaster,
		log:         log,
	}
}

// Handle is the consumer's MessageHandler.
func (p *EventProcessor) Handle(ctx context.Context, value []byte) {
	p.consumed.Add(1)

	ev, err := wire.Decode(value)
	if err != nil {
		p.decodeFailures.Add(1)
		p.log.Warn("dropping undecodable record", sl.Err(err), slog.Int("bytes", len(value)))
		return
	}

	if err := p.Broadcaster.Broadcast(ctx, ev); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		p.log.Warn("broadcast failed", sl.Err(err), slog.String("tx", ev.TransactionID))
		return
	}
	p.log.Debug("trade broadcast",
		slog.String("tx", ev.TransactionID),
		slog.String("type", ev.TradeType.String()),
	)
}

// Consumed returns the number of records handled, decodable or not.
func (p *EventProcessor) Consumed() uint64 {
	return p.consumed.Load()
}

// DecodeFailures returns the number of records dropped as undecodable.
func (p *EventProcessor) DecodeFailures() uint64 {
	return p.decodeFailures.Load()
}
