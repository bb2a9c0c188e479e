// Package errorlog keeps the most recent application errors in memory.
//
// A Log is a bounded ring buffer owned by whoever creates it; pass it by
// reference to the components that need to read or clear it. Handler feeds a
// Log from slog records at error level, so ordinary logging is enough to
// populate it.
package errorlog

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of entries kept when no capacity is given.
const DefaultCapacity = 100

// Entry is one recorded error.
type Entry struct {
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Context   map[string]any `json:"context,omitempty"`
}

// Log is a fixed-capacity ring of entries. The oldest entry is dropped when
// the ring is full. It is safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	next     int
	size     int
	capacity int
	now      func() time.Time
}

// New creates a Log holding at most capacity entries.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries:  make([]Entry, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Record appends an entry. A zero Timestamp is filled in.
func (l *Log) Record(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	l.entries[l.next] = e
	l.next = (l.next + 1) % l.capacity
	if l.size < l.capacity {
		l.size++
	}
}

// RecordError is a shorthand for recording err with optional context.
func (l *Log) RecordError(err error, context map[string]any) {
	if err == nil {
		return
	}
	l.Record(Entry{Message: err.Error(), Context: context})
}

// List returns a copy of the entries, newest first.
func (l *Log) List() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, l.size)
	for i := 1; i <= l.size; i++ {
		idx := (l.next - i + l.capacity) % l.capacity
		out = append(out, l.entries[idx])
	}
	return out
}

// Len returns the number of entries currently held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Capacity returns the maximum number of entries.
func (l *Log) Capacity() int {
	return l.capacity
}

// Clear drops all entries.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.entries)
	l.next = 0
	l.size = 0
}
