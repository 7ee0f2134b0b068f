package service

import (
	"context"
	"log/slog"
	"time"

	"swapStreamApp/internal/domain/model"
	"swapStreamApp/internal/lib/logger/sl"
)

// TradePublisher writes trade events to a feed topic.
type TradePublisher interface {
	PublishTradeBatch(ctx context.Context, events []*model.TradeEvent) error
}

// TradeSource invents trade events.
type TradeSource interface {
	GenerateTrades(count int) []*model.TradeEvent
}

// TradeProducerUseCase publishes generated trades on a fixed cadence. It backs
// the demo mode of the server and is never used against a real feed.
type TradeProducerUseCase struct {
	Publisher TradePublisher
	Source    TradeSource
	BatchSize int
	Interval  time.Duration
	log       *slog.Logger
}

// NewTradeProducerUseCase creates a new use case for publishing demo trades
func NewTradeProducerUseCase(publisher TradePublisher, source TradeSource, log *slog.Logger) *TradeProducerUseCase {
	return &TradeProducerUseCase{
		Publisher: publisher,
		Source:    source,
		BatchSize: 5,
		Interval:  500 * time.Millisecond,
		log:       log,
	}
}

// Execute publishes one batch.
func (uc *TradeProducerUseCase) Execute(ctx context.Context) error {
	return uc.Publisher.PublishTradeBatch(ctx, uc.Source.GenerateTrades(uc.BatchSize))
}

// Run publishes a batch every Interval until ctx is done. Publish failures are
// logged and the next tick tries again.
func (uc *TradeProducerUseCase) Run(ctx context.Context) {
	ticker := time.NewTicker(uc.Interval)
	defer ticker.Stop()

	uc.log.Info("starting demo trade generator")
	for {
		select {
		case <-ctx.Done():
			uc.log.Info("demo trade generator stopped")
			return
		case <-ticker.C:
			if err := uc.Execute(ctx); err != nil && ctx.Err() == nil {
				uc.log.Warn("failed to publish demo trades", sl.Err(err))
			}
		}
	}
}
