// Package feed fans snapshots out to per-key subscribers.
//
// Each subscriber owns a one-slot mailbox. Publishing never blocks; a
// snapshot that has not been read yet is replaced by the newer one.
package feed

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Subscribe after the hub is closed.
var ErrClosed = errors.New("feed closed")

// Hub distributes values published under a key to that key's subscribers.
type Hub[K comparable, V any] struct {
	mu     sync.Mutex
	subs   map[K]map[*Subscriber[K, V]]struct{}
	closed bool
}

// New creates an empty hub.
func New[K comparable, V any]() *Hub[K, V] {
	return &Hub[K, V]{subs: make(map[K]map[*Subscriber[K, V]]struct{})}
}

// Subscriber receives values for a single key.
type Subscriber[K comparable, V any] struct {
	hub  *Hub[K, V]
	key  K
	ch   chan V
	once sync.Once
}

// Subscribe registers a subscriber for key. If initial is non-nil its result
// is the first value delivered.
func (h *Hub[K, V]) Subscribe(key K, initial func() (V, error)) (*Subscriber[K, V], error) {
	sub := &Subscriber[K, V]{hub: h, key: key, ch: make(chan V, 1)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	set, ok := h.subs[key]
	if !ok {
		set = make(map[*Subscriber[K, V]]struct{})
		h.subs[key] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	if initial != nil {
		v, err := initial()
		if err != nil {
			sub.Close()
			return nil, err
		}
		// A publish may already have landed; it is at least as new.
		h.mu.Lock()
		if _, live := h.subs[key][sub]; live && len(sub.ch) == 0 {
			sub.ch <- v
		}
		h.mu.Unlock()
	}
	return sub, nil
}

// Publish delivers v to every subscriber of key, replacing undelivered values.
func (h *Hub[K, V]) Publish(key K, v V) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[key] {
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- v
	}
}

// Subscribers reports how many subscribers key has.
func (h *Hub[K, V]) Subscribers(key K) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}

// Close detaches every subscriber and closes their channels.
func (h *Hub[K, V]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for key, set := range h.subs {
		for sub := range set {
			sub.once.Do(func() { close(sub.ch) })
		}
		delete(h.subs, key)
	}
}

// C returns the delivery channel. It is closed when the subscriber or hub closes.
func (s *Subscriber[K, V]) C() <-chan V {
	return s.ch
}

// Close detaches the subscriber. Safe to call more than once.
func (s *Subscriber[K, V]) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.key]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.key)
		}
	}
	s.once.Do(func() { close(s.ch) })
}
