// Package repository defines the storage ports used by the bridge.
// Infrastructure packages provide the implementations.
package repository

import (
	"context"

	"swapStreamApp/internal/domain/model"
)

// BridgeStatsCache keeps the latest counters of every feed for operators.
// Implementations should prioritize speed over durability.
type BridgeStatsCache interface {
	// SaveBridgeStats overwrites the counters of one feed.
	SaveBridgeStats(ctx context.Context, stats *model.BridgeStats) error

	// GetBridgeStats returns the counters of one feed, or nil when unknown.
	GetBridgeStats(ctx context.Context, feed string) (*model.BridgeStats, error)

	// GetAllBridgeStats returns the counters of every feed seen so far.
	GetAllBridgeStats(ctx context.Context) ([]*model.BridgeStats, error)
}
