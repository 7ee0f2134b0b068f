package app

import (
	"context"
	"time"

	"swapStreamApp/internal/lib/logger/sl"
)

const statsSaveTimeout = 2 * time.Second

// reportStats saves the bridge counters every statsInterval, plus once more on
// the way out so the cache reflects the final totals.
func (b *Bridge) reportStats(ctx context.Context) {
	ticker := time.NewTicker(b.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.saveStats(context.Background())
			return
		case <-ticker.C:
			b.saveStats(ctx)
		}
	}
}

func (b *Bridge) saveStats(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, statsSaveTimeout)
	defer cancel()

	if err := b.statsCache.SaveBridgeStats(ctx, b.Stats()); err != nil {
		b.log.Warn("failed to save bridge stats", sl.Err(err))
	}
}
