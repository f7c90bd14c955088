// Package cart holds the per-session shopping cart: the ordered set of line
// items the shopper intends to buy.
package cart

import (
	"errors"
	"math"
	"strings"
	"sync"
)

var (
	ErrInvalidItemID   = errors.New("cart: item id is required")
	ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")
)

// LineItem is one catalog item reference and the quantity wanted.
type LineItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// Snapshot is an immutable view of the cart. Version identifies the cart
// state: it changes on every mutation that alters the items.
type Snapshot struct {
	Version uint64     `json:"version"`
	Items   []LineItem `json:"items"`
}

func (s Snapshot) Empty() bool { return len(s.Items) == 0 }

// Store owns one cart. Mutations are serialized; each one either applies
// fully or not at all.
type Store struct {
	mu        sync.Mutex
	items     []LineItem
	version   uint64
	listeners []func(Snapshot)
}

// NewStore returns an empty cart.
func NewStore() *Store {
	return &Store{items: []LineItem{}}
}

// OnChange registers fn to be called with the new snapshot after every
// mutation that changes the cart. Listeners run outside the store lock.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// AddItem appends a line item, or increases the quantity of the existing one.
// A merge that would overflow the quantity is rejected and leaves the cart as is.
func (s *Store) AddItem(id string, quantity int) (Snapshot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.Snapshot(), ErrInvalidItemID
	}
	if quantity < 1 {
		return s.Snapshot(), ErrInvalidQuantity
	}
	var err error
	snap := s.mutate(func(items []LineItem) ([]LineItem, bool) {
		if i := indexOf(items, id); i >= 0 {
			if items[i].Quantity > math.MaxInt-quantity {
				err = ErrInvalidQuantity
				return items, false
			}
			items[i].Quantity += quantity
			return items, true
		}
		return append(items, LineItem{ID: id, Quantity: quantity}), true
	})
	return snap, err
}

// IncrementItemQuantity adds one to the quantity of id. No-op if absent or
// already at the largest representable quantity.
func (s *Store) IncrementItemQuantity(id string) Snapshot {
	return s.mutate(func(items []LineItem) ([]LineItem, bool) {
		i := indexOf(items, id)
		if i < 0 || items[i].Quantity == math.MaxInt {
			return items, false
		}
		items[i].Quantity++
		return items, true
	})
}

// DecrementItemQuantity subtracts one from the quantity of id, never going
// below 1. Use RemoveItem to drop a line. No-op if absent.
func (s *Store) DecrementItemQuantity(id string) Snapshot {
	return s.mutate(func(items []LineItem) ([]LineItem, bool) {
		i := indexOf(items, id)
		if i < 0 || items[i].Quantity <= 1 {
			return items, false
		}
		items[i].Quantity--
		return items, true
	})
}

// RemoveItem deletes the line item for id. No-op if absent.
func (s *Store) RemoveItem(id string) Snapshot {
	return s.mutate(func(items []LineItem) ([]LineItem, bool) {
		i := indexOf(items, id)
		if i < 0 {
			return items, false
		}
		return append(items[:i], items[i+1:]...), true
	})
}

// Checkout consumes the cart: it returns the line items held at that moment
// and leaves the cart empty, in one step.
func (s *Store) Checkout() []LineItem {
	var consumed []LineItem
	s.mutate(func(items []LineItem) ([]LineItem, bool) {
		consumed = cloneItems(items)
		return []LineItem{}, len(items) > 0
	})
	return consumed
}

// Snapshot returns the current cart state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of line items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// mutate applies fn to a private copy of the items and publishes the result
// when fn reports a change.
func (s *Store) mutate(fn func([]LineItem) ([]LineItem, bool)) Snapshot {
	s.mu.Lock()
	next, changed := fn(cloneItems(s.items))
	if !changed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	s.items = next
	s.version++
	snap := s.snapshotLocked()
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.mu.Unlock()

	for _, notify := range listeners {
		notify(snap)
	}
	return snap
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Version: s.version, Items: cloneItems(s.items)}
}

func indexOf(items []LineItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
