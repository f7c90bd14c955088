// Package session owns the per-shopper cart and its reconciler.
package session

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-storefront-cart/internal/cart"
	"github.com/imrishuroy/go-storefront-cart/internal/reconcile"
)

// Session pairs a cart with the reconciler that follows it.
type Session struct {
	ID         string
	Cart       *cart.Store
	Reconciler *reconcile.Reconciler
}

// Registry is an in-memory map of sessions. Sessions live for the lifetime
// of the process, so callers only create one for a shopper who has added
// something to the cart.
type Registry struct {
	lookup reconcile.Lookup
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(lookup reconcile.Lookup, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		lookup:   lookup,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// NewID returns a fresh session id.
func NewID() string { return uuid.NewString() }

// Get returns the session for id if it exists.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for id, creating an empty one on first use.
// Every effective cart mutation triggers a background reconciliation.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s
	}

	store := cart.NewStore()
	rec := reconcile.New(r.lookup, r.logger.With("session_id", id))
	store.OnChange(rec.Trigger)

	s := &Session{ID: id, Cart: store, Reconciler: rec}
	r.sessions[id] = s
	r.logger.Debug("session created", "session_id", id)
	return s
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
