package app

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"swapStreamApp/internal/domain/model"
	"swapStreamApp/internal/domain/repository"
	"swapStreamApp/internal/domain/useCases"
	ws "swapStreamApp/internal/handlers/websocket"
	"swapStreamApp/internal/lib/logger/sl"
)

// Bridge streams one feed: records from its topic are decoded and pushed to
// every websocket subscriber of its port. Bridges of different feeds share
// nothing.
type Bridge struct {
	Feed        string
	Source      useCases.EventSource
	Broadcaster *ws.WebSocketBroadcaster
	Processor   *EventProcessor

	statsCache    repository.BridgeStatsCache
	statsInterval time.Duration
	log           *slog.Logger

	shutdownOnce sync.Once
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithStatsCache makes the bridge save its counters every interval.
func WithStatsCache(cache repository.BridgeStatsCache, interval time.Duration) BridgeOption {
	return func(b *Bridge) {
		b.statsCache = cache
		b.statsInterval = interval
	}
}

func NewBridge(feed string, source useCases.EventSource, broadcaster *ws.WebSocketBroadcaster, log *slog.Logger, opts ...BridgeOption) *Bridge {
	log = log.With(slog.String("feed", feed))
	b := &Bridge{
		Feed:        feed,
		Source:      source,
		Broadcaster: broadcaster,
		Processor:   NewEventProcessor(broadcaster, log),
		log:         log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run consumes until ctx is done, then shuts the bridge down. Connectivity
// failures are retried by the source and never end Run.
func (b *Bridge) Run(ctx context.Context) error {
	reportCtx, stopReport := context.WithCancel(ctx)
	defer stopReport()

	var wg sync.WaitGroup
	if b.statsCache != nil && b.statsInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.reportStats(reportCtx)
		}()
	}

	b.log.Info("bridge started")
	err := b.Source.Run(ctx, b.Processor.Handle)
	b.Shutdown()
	stopReport()
	wg.Wait()

	b.log.Info("bridge stopped", slog.Uint64("consumed", b.Processor.Consumed()))
	return err
}

// Shutdown closes every live connection, then the log subscription. Nothing
// is delivered once it has started. Safe to call more than once.
func (b *Bridge) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.Broadcaster.Close()
		if err := b.Source.Close(); err != nil {
			b.log.Warn("failed to close consumer", sl.Err(err))
		}
	})
}

// Handler accepts websocket subscribers for this feed.
func (b *Bridge) Handler() http.HandlerFunc {
	return b.Broadcaster.Handler()
}

// Stats returns the bridge counters at this instant.
func (b *Bridge) Stats() *model.BridgeStats {
	counters := b.Broadcaster.Counters()
	return &model.BridgeStats{
		Feed:             b.Feed,
		ConsumerState:    b.Source.State(),
		Subscribers:      b.Broadcaster.SubscriberCount(),
		Consumed:         b.Processor.Consumed(),
		DecodeFailures:   b.Processor.DecodeFailures(),
		Broadcasts:       counters.Broadcasts,
		Deliveries:       counters.Deliveries,
		DeliveryFailures: counters.DeliveryFailures,
		LastUpdate:       time.Now().UTC(),
	}
}
