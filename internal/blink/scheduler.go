package blink

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Timer is a pending single-shot callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}

// Scheduler is the timer facility the Machine arms its debounce on.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (Timer, error)
}

// RealScheduler schedules on the Go runtime timers.
type RealScheduler struct{}

// AfterFunc wraps time.AfterFunc.
func (RealScheduler) AfterFunc(d time.Duration, fn func()) (Timer, error) {
	return time.AfterFunc(d, fn), nil
}

// ErrSchedulerClosed is returned by a ManualScheduler after Close.
var ErrSchedulerClosed = errors.New("scheduler closed")

// ManualScheduler runs callbacks on virtual time. Callbacks fire from Advance
// on the caller's goroutine, in deadline order. Used by tests and by trace
// replay.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
	closed bool

	// FailNext makes the next AfterFunc call return this error.
	FailNext error
}

type manualTimer struct {
	s       *ManualScheduler
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

// NewManualScheduler creates a scheduler at virtual time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc registers fn to run once virtual time reaches now+d.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) (Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSchedulerClosed
	}
	if err := s.FailNext; err != nil {
		s.FailNext = nil
		return nil, err
	}

	s.seq++
	t := &manualTimer{s: s, at: s.now + d, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t, nil
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves virtual time forward by d, firing every due callback.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	s.AdvanceTo(target)
}

// AdvanceTo moves virtual time to at (never backwards), firing every due
// callback. Callbacks run without the scheduler lock held so they may arm new
// timers; a timer armed for a deadline <= at fires in the same call.
func (s *ManualScheduler) AdvanceTo(at time.Duration) {
	for {
		s.mu.Lock()
		next := s.nextDueLocked(at)
		if next == nil {
			if at > s.now {
				s.now = at
			}
			s.compactLocked()
			s.mu.Unlock()
			return
		}
		if next.at > s.now {
			s.now = next.at
		}
		next.fired = true
		fn := next.fn
		s.mu.Unlock()

		fn()
	}
}

func (s *ManualScheduler) nextDueLocked(at time.Duration) *manualTimer {
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired && t.at <= at {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].seq < due[j].seq
		}
		return due[i].at < due[j].at
	})
	return due[0]
}

func (s *ManualScheduler) compactLocked() {
	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.timers = live
}

// Now returns the current virtual time.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Close makes further AfterFunc calls fail with ErrSchedulerClosed.
func (s *ManualScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
