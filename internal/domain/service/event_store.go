// Package service provides the subscriber-side aggregation of trade events:
// a bounded, deduplicated recency buffer plus running statistics.
package service

import (
	"sync"

	"github.com/shopspring/decimal"

	"swapStreamApp/internal/domain/model"
	"swapStreamApp/internal/domain/useCases"
)

// DefaultCapacity is the number of events a viewer keeps.
const DefaultCapacity = 1000

// EventStore holds the newest-first event buffer and the running statistics
// behind one lock, so a reader never sees one cleared without the other.
type EventStore struct {
	mu       sync.RWMutex
	capacity int
	events   []*model.TradeEvent // newest first
	seen     map[string]struct{} // transaction IDs currently in events
	stats    model.RunningStats
	volume   decimal.Decimal
}

// NewEventStore creates a store bounded to capacity events; non-positive
// values fall back to DefaultCapacity.
func NewEventStore(capacity int) *EventStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &EventStore{
		capacity: capacity,
		events:   make([]*model.TradeEvent, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// Add inserts ev at the head and updates statistics. It returns false, and
// changes nothing, when an event with the same transaction ID is buffered.
func (s *EventStore) Add(ev model.TradeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[ev.TransactionID]; dup {
		return false
	}

	if len(s.events) == s.capacity {
		tail := s.events[len(s.events)-1]
		delete(s.seen, tail.TransactionID)
		s.events[len(s.events)-1] = nil
		s.events = s.events[:len(s.events)-1]
	}

	s.events = append(s.events, nil)
	copy(s.events[1:], s.events)
	s.events[0] = &ev
	s.seen[ev.TransactionID] = struct{}{}

	s.updateStats(&ev)
	return true
}

// updateStats assumes the lock is held.
func (s *EventStore) updateStats(ev *model.TradeEvent) {
	s.stats.TotalEvents++
	switch ev.TradeType {
	case model.TradeTypeBuy:
		s.stats.BuyEvents++
	case model.TradeTypeSell:
		s.stats.SellEvents++
	}

	price, err := decimal.NewFromString(ev.PriceUsd)
	if err != nil {
		price = decimal.Zero
	}
	s.volume = s.volume.Add(price.Mul(decimal.NewFromFloat(ev.TokenAmount)))

	// Recency-weighted, not an arithmetic mean.
	s.stats.AvgProcessingTime = (s.stats.AvgProcessingTime + float64(ev.ProcessingTimeUs)) / 2
}

// Clear empties the buffer and zeroes the statistics in one step.
func (s *EventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = make([]*model.TradeEvent, 0, s.capacity)
	s.seen = make(map[string]struct{}, s.capacity)
	s.stats = model.RunningStats{}
	s.volume = decimal.Zero
}

// Len returns the number of buffered events.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Events returns a copy of the buffer, newest first.
func (s *EventStore) Events() []model.TradeEvent {
	events, _ := s.Snapshot()
	return events
}

// Stats returns a copy of the running statistics.
func (s *EventStore) Stats() model.RunningStats {
	_, stats := s.Snapshot()
	return stats
}

// Snapshot returns the buffer and statistics as observed at one instant.
func (s *EventStore) Snapshot() ([]model.TradeEvent, model.RunningStats) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]model.TradeEvent, len(s.events))
	for i, ev := range s.events {
		events[i] = *ev
	}
	stats := s.stats
	stats.TotalVolume = s.volume.InexactFloat64()
	return events, stats
}

// TotalVolume returns the exact cumulative notional volume.
func (s *EventStore) TotalVolume() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// Ensure interface compliance
var _ useCases.EventSink = (*EventStore)(nil)
