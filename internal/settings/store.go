package settings

import (
	"sync"
)

// Store holds the current [Snapshot] and its subscribers.
//
// Subscribers are called synchronously, in subscription order, from the
// goroutine that performed the update. Notifications are serialised so a
// subscriber never sees two snapshots concurrently.
type Store struct {
	mu      sync.RWMutex
	current Snapshot

	notifyMu sync.Mutex
	subMu    sync.Mutex
	nextID   int
	subs     map[int]func(Snapshot)
	order    []int
}

// NewStore creates a Store holding the normalised initial snapshot.
func NewStore(initial Snapshot) *Store {
	return &Store{
		current: initial.Normalize(),
		subs:    make(map[int]func(Snapshot)),
	}
}

// Get returns the current snapshot.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies fn to a copy of the current snapshot, normalises and
// validates the result, stores it and notifies subscribers.
//
// If validation fails the stored snapshot is unchanged and no subscriber is
// called. Subscribers are not called when the result equals the current
// snapshot.
func (s *Store) Update(fn func(*Snapshot)) (Snapshot, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	next := s.current
	fn(&next)
	next = next.Normalize()
	if err := next.Validate(); err != nil {
		current := s.current
		s.mu.Unlock()
		return current, err
	}
	changed := next != s.current
	s.current = next
	s.mu.Unlock()

	if changed {
		for _, fn := range s.subscribers() {
			fn(next)
		}
	}
	return next, nil
}

// Subscribe registers fn to receive every stored snapshot and returns a
// function that removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.order = append(s.order, id)
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subs, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Store) subscribers() []func(Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	fns := make([]func(Snapshot), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.subs[id])
	}
	return fns
}
