// Package realtime tracks open client connections per gent identity and
// fans change events out to them. Delivery is best effort: a dead or slow
// connection is dropped, never waited on.
package realtime

import (
	"errors"
	"sync"
)

// EventGigsChanged identifies a change to the set of gigs visible to a gent.
const EventGigsChanged = "gigs_changed"

// Event is the wire payload pushed to clients. Type is the stable contract;
// additional fields are extensions clients may ignore.
type Event struct {
	Type  string `json:"type"`
	GigID string `json:"gig_id,omitempty"`
}

// ErrConnectionLost signals that a connection can no longer accept events.
// It is handled internally by the registry and never surfaced to callers.
var ErrConnectionLost = errors.New("connection lost")

// Conn is one open realtime channel to a client.
type Conn interface {
	// Send enqueues an event for delivery. It must not block on a slow
	// client; it returns ErrConnectionLost when the connection is dead or
	// its send buffer is full.
	Send(Event) error
	Close() error
}

// Registry maps gent identities to their open connections. Safe for
// concurrent use from independent connection lifecycles.
type Registry struct {
	mu    sync.Mutex
	conns map[string]map[Conn]struct{}
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[Conn]struct{})}
}

// Register adds a connection under the given identity.
func (r *Registry) Register(identity string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[identity]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[identity] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a connection. The identity entry is deleted once its
// last connection goes away so the map does not accumulate empty sets.
func (r *Registry) Unregister(identity string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[identity]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, identity)
	}
}

// Broadcast delivers ev to every connection registered for identity.
// Each send is independent: a failed connection is unregistered and closed,
// and the remaining recipients still get the event. No ordering across
// recipients and no acknowledgment.
func (r *Registry) Broadcast(identity string, ev Event) {
	r.mu.Lock()
	targets := make([]Conn, 0, len(r.conns[identity]))
	for c := range r.conns[identity] {
		targets = append(targets, c)
	}
	r.mu.Unlock()

	for _, c := range targets {
		if err := c.Send(ev); err != nil {
			r.Unregister(identity, c)
			_ = c.Close()
		}
	}
}

// ActiveIdentities returns the identities that currently have at least one
// open connection. Diagnostics only.
func (r *Registry) ActiveIdentities() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}
