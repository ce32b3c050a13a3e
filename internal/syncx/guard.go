// Package syncx holds the lock-guarded values the blink pipeline shares
// between the frame loop and its control paths.
package syncx

import "sync"

// RWGuard holds a value the frame loop reads on every frame while REST,
// WebSocket and config reloads replace it. T must be a value type or never
// mutated after it is stored.
type RWGuard[T any] struct {
	mu sync.RWMutex
	v  T
}

// NewGuard returns a guard holding v.
func NewGuard[T any](v T) *RWGuard[T] {
	return &RWGuard[T]{v: v}
}

// Get returns the current value.
func (g *RWGuard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v
}

// Set stores v.
func (g *RWGuard[T]) Set(v T) {
	g.Swap(v)
}

// Swap stores v and returns the value it replaced, so callers can log
// transitions such as serving -> unavailable.
func (g *RWGuard[T]) Swap(v T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.v
	g.v = v
	return old
}

// SetIf stores v only if validate accepts it. Validation runs under the write
// lock, so a rejected value is never observed and concurrent updates cannot
// interleave between the check and the store.
func (g *RWGuard[T]) SetIf(v T, validate func(T) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := validate(v); err != nil {
		return err
	}
	g.v = v
	return nil
}
