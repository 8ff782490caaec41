package main

import (
	"sync"

	"github.com/adibenedetto117/jellychub/reader"
)

// registry tracks open sessions for the inspect listener.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*reader.Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*reader.Session)}
}

func (r *registry) add(s *reader.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Snapshots implements inspect.SessionSource.
func (r *registry) Snapshots() []reader.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reader.Snapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Snapshot())
	}
	return out
}
