package websocket

import "sync"

// Subscriber is one downstream viewer connection.
type Subscriber interface {
	// ID is the opaque handle of the connection.
	ID() string
	// Send queues msg for delivery without blocking.
	Send(msg []byte) error
	Close() error
}

// Registry is the set of live subscribers. Mutations and snapshots share one
// lock, so a snapshot is never torn by a concurrent add or remove.
type Registry struct {
	mu     sync.Mutex
	subs   map[string]Subscriber
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]Subscriber)}
}

// Add registers s. It returns false if a subscriber with the same ID is
// already present or the registry has been closed.
func (r *Registry) Add(s Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if _, exists := r.subs[s.ID()]; exists {
		return false
	}
	r.subs[s.ID()] = s
	return true
}

// Remove unregisters s and reports whether it was present.
func (r *Registry) Remove(s Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.subs[s.ID()]; !ok || current != s {
		return false
	}
	delete(r.subs, s.ID())
	return true
}

// Contains reports whether a subscriber with id is registered.
func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[id]
	return ok
}

// Snapshot returns the subscribers registered at this instant.
func (r *Registry) Snapshot() []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Closed reports whether CloseAll has run.
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// CloseAll empties the registry, refuses further adds and returns the
// subscribers that were registered.
func (r *Registry) CloseAll() []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subscriber, 0, len(r.subs))
	for id, s := range r.subs {
		out = append(out, s)
		delete(r.subs, id)
	}
	r.closed = true
	return out
}
