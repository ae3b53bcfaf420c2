package server

import (
	"fmt"
	"sync"
)

// streamRegistry maps run IDs to their Broadcasters. Entries are kept after
// the run finishes so the events endpoint can replay history.
type streamRegistry struct {
	mu      sync.RWMutex
	streams map[string]*Broadcaster
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{streams: make(map[string]*Broadcaster)}
}

// open registers a fresh Broadcaster for runID. A duplicate run ID is an
// error; run IDs are unique per server lifetime.
func (r *streamRegistry) open(runID string) (*Broadcaster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.streams[runID]; exists {
		return nil, fmt.Errorf("run %s already exists", runID)
	}
	b := NewBroadcaster()
	r.streams[runID] = b
	return b, nil
}

func (r *streamRegistry) get(runID string) (*Broadcaster, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.streams[runID]
	return b, ok
}

func (r *streamRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}
