package store

import (
	"sync"
)

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore keeps the sample window and log history in [Ring] buffers
// (capacities [SampleCapacity] and [LogCapacity]) together with session
// statistics and the current reading, all behind one RWMutex.
//
// Subscribers receive events via buffered channels (buffer size 100). Events
// are sent non-blocking; if a subscriber's buffer is full, the event is
// dropped for that subscriber to prevent blocking the poll controller.
type MemoryStore struct {
	mu        sync.RWMutex
	samples   *Ring[Sample]
	logs      *Ring[LogEntry]
	stats     Stats
	current   *float64
	previous  *float64
	lastError string

	subscribers map[chan Event]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		samples:     NewRing[Sample](SampleCapacity),
		logs:        NewRing[LogEntry](LogCapacity),
		subscribers: make(map[chan Event]struct{}),
	}
}

// Record applies the outcome of one poll cycle and notifies subscribers.
func (m *MemoryStore) Record(r Record) {
	stats, reading := m.apply(r)

	if r.Sample != nil {
		sample := *r.Sample
		m.notifySubscribers(Event{Kind: EventSample, Sample: &sample})
	}
	entry := r.Entry
	m.notifySubscribers(Event{Kind: EventLog, Log: &entry})
	m.notifySubscribers(Event{Kind: EventStats, Stats: &stats})
	m.notifySubscribers(Event{Kind: EventReading, Reading: &reading})
}

func (m *MemoryStore) apply(r Record) (Stats, Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TotalReads++
	if m.stats.StartTime == nil {
		at := r.At
		m.stats.StartTime = &at
	}
	if r.Success {
		m.previous = m.current
		m.current = copyFloat(r.Value)
		m.lastError = ""
	} else {
		m.lastError = r.Entry.Message
	}
	if r.Sample != nil {
		m.samples.Push(*r.Sample)
	}
	m.logs.Push(r.Entry)
	return m.statsLocked(), m.readingLocked()
}

// AppendLog adds a log entry and notifies subscribers.
func (m *MemoryStore) AppendLog(entry LogEntry) {
	m.mu.Lock()
	m.logs.Push(entry)
	m.mu.Unlock()

	m.notifySubscribers(Event{Kind: EventLog, Log: &entry})
}

// Samples returns a snapshot of the sample window, oldest first.
func (m *MemoryStore) Samples() []Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.samples.Snapshot()
}

// Logs returns a snapshot of the log history, oldest first.
func (m *MemoryStore) Logs() []LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logs.Snapshot()
}

// Stats returns a copy of the session statistics.
func (m *MemoryStore) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsLocked()
}

// Reading returns the current reading and its delta.
func (m *MemoryStore) Reading() Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readingLocked()
}

// ClearLogs empties the log history.
func (m *MemoryStore) ClearLogs() {
	m.mu.Lock()
	m.logs.Reset()
	m.mu.Unlock()

	m.notifySubscribers(Event{Kind: EventLogsCleared})
}

// ResetSession clears samples, statistics and readings.
func (m *MemoryStore) ResetSession() {
	m.mu.Lock()
	m.samples.Reset()
	m.stats = Stats{}
	m.current = nil
	m.previous = nil
	m.lastError = ""
	m.mu.Unlock()

	m.notifySubscribers(Event{Kind: EventSessionReset})
}

func (m *MemoryStore) statsLocked() Stats {
	s := Stats{TotalReads: m.stats.TotalReads}
	if m.stats.StartTime != nil {
		start := *m.stats.StartTime
		s.StartTime = &start
	}
	return s
}

func (m *MemoryStore) readingLocked() Reading {
	return Reading{
		Current:   copyFloat(m.current),
		Previous:  copyFloat(m.previous),
		Delta:     Delta(m.current, m.previous),
		LastError: m.lastError,
	}
}

// Subscribe creates a new subscription and returns a channel for receiving events.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new events are dropped for this subscriber.
func (m *MemoryStore) Subscribe() <-chan Event {
	ch := make(chan Event, 100)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the event to all active subscribers without blocking.
func (m *MemoryStore) notifySubscribers(ev Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
			// subscriber is slow, drop the event
		}
	}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
