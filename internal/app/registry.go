package app

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

type peerEntry struct {
	ConnID string
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

// Registry maps each online identity to its one relay connection.
type Registry struct {
	mu    sync.RWMutex
	peers map[domain.Identity]*peerEntry
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[domain.Identity]*peerEntry)}
}

// Bind registers conn for id and returns its connection id. A connection
// already bound to id is superseded: its context is canceled and it is closed.
func (r *Registry) Bind(id domain.Identity, conn core.SignalConnection, cancel context.CancelFunc) string {
	entry := &peerEntry{ConnID: uuid.NewString(), Conn: conn, Cancel: cancel}

	r.mu.Lock()
	old := r.peers[id]
	r.peers[id] = entry
	r.mu.Unlock()

	if old != nil {
		log.Info().Str("module", "app.registry").Str("id", id.String()).Str("conn", old.ConnID).Msg("superseded connection")
		old.release()
	}
	log.Info().Str("module", "app.registry").Str("id", id.String()).Str("conn", entry.ConnID).Msg("bound connection")
	return entry.ConnID
}

// Unbind removes id only while connID is still the bound connection, so a
// superseded connection cannot evict its successor.
func (r *Registry) Unbind(id domain.Identity, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.peers[id]
	if !ok || entry.ConnID != connID {
		return false
	}
	delete(r.peers, id)
	log.Info().Str("module", "app.registry").Str("id", id.String()).Str("conn", connID).Msg("unbind connection")
	return true
}

func (r *Registry) Get(id domain.Identity) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.peers[id]; ok {
		return e.Conn, true
	}
	return nil, false
}

// Online lists bound identities in lexical order.
func (r *Registry) Online() []domain.Identity {
	r.mu.RLock()
	out := make([]domain.Identity, 0, len(r.peers))
	for id := range r.peers {
		out = append(out, id)
	}
	r.mu.RUnlock()
	slices.Sort(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Kick drops id's connection and forgets it.
func (r *Registry) Kick(id domain.Identity) bool {
	r.mu.Lock()
	e, ok := r.peers[id]
	if ok {
		delete(r.peers, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.release()
	log.Info().Str("module", "app.registry").Str("id", id.String()).Msg("kicked connection")
	return true
}

func (e *peerEntry) release() {
	if e.Cancel != nil {
		e.Cancel()
	}
	e.Conn.Close()
}
