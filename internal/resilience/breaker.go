// Package resilience keeps the vision sidecar stream alive: a circuit
// breaker that judges whole stream sessions, and a reconnect loop with
// exponential backoff.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	Closed   State = iota // sessions admitted
	Open                  // failing fast until ResetTimeout passes
	HalfOpen              // one trial session admitted
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Begin while the breaker fails fast.
var ErrOpen = errors.New("circuit breaker open")

// Breaker counts failed stream sessions. Unlike a per-call breaker, a
// session is judged when it delivers its first frame (success) and again
// when it ends (failure unless we cancelled it).
type Breaker struct {
	cfg    Config
	now    func() time.Time
	onMove func(from, to State)

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trialing bool
}

// New creates a closed breaker.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), now: time.Now}
}

// WithHook registers fn to run on every state change, outside the lock.
func (b *Breaker) WithHook(fn func(from, to State)) *Breaker {
	b.onMove = fn
	return b
}

// Begin admits a session. While open it returns ErrOpen until ResetTimeout
// has passed, then admits exactly one trial session.
func (b *Breaker) Begin() (*Session, error) {
	b.mu.Lock()
	var moved func()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			b.mu.Unlock()
			return nil, ErrOpen
		}
		moved = b.moveLocked(HalfOpen)
		b.trialing = true
	case HalfOpen:
		if b.trialing {
			b.mu.Unlock()
			return nil, ErrOpen
		}
		b.trialing = true
	}
	b.mu.Unlock()
	if moved != nil {
		moved()
	}
	return &Session{b: b}, nil
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failed sessions.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) delivered() {
	b.mu.Lock()
	b.failures = 0
	b.trialing = false
	moved := b.moveLocked(Closed)
	b.mu.Unlock()
	moved()
}

func (b *Breaker) failed() {
	b.mu.Lock()
	b.failures++
	b.trialing = false
	var moved func()
	if b.state == HalfOpen || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		moved = b.moveLocked(Open)
	} else {
		moved = func() {}
	}
	b.mu.Unlock()
	moved()
}

func (b *Breaker) released() {
	b.mu.Lock()
	b.trialing = false
	b.mu.Unlock()
}

// moveLocked changes state and returns the notification to run after unlock.
func (b *Breaker) moveLocked(to State) func() {
	from := b.state
	if from == to {
		return func() {}
	}
	b.state = to
	failures := b.failures
	return func() {
		log := slog.With("breaker", b.cfg.Name, "from", from.String(), "to", to.String())
		if to == Open {
			log.Warn("circuit breaker opened", "failed_sessions", failures, "reset_after", b.cfg.ResetTimeout)
		} else {
			log.Info("circuit breaker state changed")
		}
		if b.onMove != nil {
			b.onMove(from, to)
		}
	}
}

// Session is one admitted stream attempt.
type Session struct {
	b         *Breaker
	mu        sync.Mutex
	delivered bool
	ended     bool
}

// Delivered records a received frame. The first call closes the breaker
// and clears the failure count; later calls are no-ops.
func (s *Session) Delivered() {
	s.mu.Lock()
	first := !s.delivered && !s.ended
	s.delivered = true
	s.mu.Unlock()
	if first {
		s.b.delivered()
	}
}

// HasDelivered reports whether any frame arrived during the session.
func (s *Session) HasDelivered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

// End closes the session. A nil or context.Canceled err means we stopped
// the stream ourselves and nothing is counted; any other err is a failed
// session, even after frames were delivered, since the stream broke.
// Only the first End counts.
func (s *Session) End(err error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.mu.Unlock()

	if err == nil || errors.Is(err, context.Canceled) {
		s.b.released()
		return
	}
	s.b.failed()
}
