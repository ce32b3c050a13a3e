// Package history keeps the in-session blink log and derives the blink rate.
// Nothing is persisted; the log lives for the lifetime of the process.
package history

import (
	"sync"
	"time"
)

// DefaultRateWindow is the window Rate uses for blinks per minute.
const DefaultRateWindow = time.Minute

// Event is emitted once per counted blink.
type Event struct {
	Count      uint64
	At         time.Time
	RatePerMin float64
}

// Entry is one recorded blink.
type Entry struct {
	At    time.Time
	Count uint64
}

// Store interface for blink history operations.
type Store interface {
	Add(count uint64, at time.Time)
	Recent(n int) []Entry
	Rate(window time.Duration, now time.Time) float64
	Events() <-chan Event
	Emit(event Event)
}

// MemoryStore is a bounded in-memory blink log.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []Entry
	maxSize  int
	eventsCh chan Event
}

// NewStore creates a store keeping at most maxEntries blinks.
func NewStore(maxEntries, eventBuffer int) *MemoryStore {
	return &MemoryStore{
		entries:  make([]Entry, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Event, eventBuffer),
	}
}

// Add records a blink. Entries older than the newest maxEntries are dropped.
func (s *MemoryStore) Add(count uint64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, Entry{At: at, Count: count})
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
}

// Recent returns up to n newest entries, oldest first. n <= 0 returns all.
func (s *MemoryStore) Recent(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if n > 0 && n < len(s.entries) {
		start = len(s.entries) - n
	}
	result := make([]Entry, len(s.entries)-start)
	copy(result, s.entries[start:])
	return result
}

// Rate returns blinks per minute over the window ending at now.
func (s *MemoryStore) Rate(window time.Duration, now time.Time) float64 {
	if window <= 0 {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := now.Add(-window)
	n := 0
	for i := len(s.entries) - 1; i >= 0; i-- {
		at := s.entries[i].At
		if !at.After(cutoff) {
			break
		}
		if !at.After(now) {
			n++
		}
	}
	return float64(n) / window.Minutes()
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Events returns the channel for blink events.
func (s *MemoryStore) Events() <-chan Event {
	return s.eventsCh
}

// Emit sends a blink event (non-blocking).
func (s *MemoryStore) Emit(event Event) {
	select {
	case s.eventsCh <- event:
	default:
	}
}
