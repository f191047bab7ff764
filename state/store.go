// Package state holds the client-side state containers: a generic
// subscribable store, the session store and the quiz collection store.
package state

import (
	"slices"
	"sync"
)

// Store is a thread-safe value container with change subscription.
// Subscribers run after each write, outside the value lock, in
// subscription order. Writes and their notifications are serialized, so
// subscribers see values in write order; a subscriber may read the store
// but must not write it.
type Store[T any] struct {
	notifyMu sync.Mutex
	mu       sync.RWMutex
	value    T
	subs     map[int]func(T)
	nextID   int
}

// NewStore returns a store holding initial.
func NewStore[T any](initial T) *Store[T] {
	return &Store[T]{value: initial, subs: make(map[int]func(T))}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set atomically replaces the value and notifies subscribers.
func (s *Store[T]) Set(v T) {
	s.Update(func(T) T { return v })
}

// Update applies fn to the current value under the write lock and notifies
// subscribers with the result.
func (s *Store[T]) Update(fn func(T) T) T {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.value = fn(s.value)
	v := s.value
	subs := s.subscribersLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
	return v
}

// Subscribe registers fn to be called after every write. The returned
// function removes the subscription.
func (s *Store[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store[T]) subscribersLocked() []func(T) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(T), len(ids))
	for i, id := range ids {
		out[i] = s.subs[id]
	}
	return out
}
