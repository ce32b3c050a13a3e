package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var errStreamBroke = errors.New("stream reset by sidecar")

// testBreaker returns a breaker on a hand-driven clock.
func testBreaker(threshold int) (*Breaker, *time.Time) {
	now := time.Unix(1000, 0)
	b := New(Config{Name: "test", Threshold: threshold, ResetTimeout: 10 * time.Second})
	b.now = func() time.Time { return now }
	return b, &now
}

// failSession begins a session and ends it without frames.
func failSession(t *testing.T, b *Breaker) {
	t.Helper()
	s, err := b.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	s.End(errStreamBroke)
}

func TestBreakerOpensAfterFailedSessions(t *testing.T) {
	b, _ := testBreaker(3)

	for i := 0; i < 2; i++ {
		failSession(t, b)
	}
	if b.State() != Closed || b.Failures() != 2 {
		t.Fatalf("state=%v failures=%d, want closed/2", b.State(), b.Failures())
	}

	failSession(t, b)
	if b.State() != Open {
		t.Fatalf("state = %v, want open", b.State())
	}
	if _, err := b.Begin(); !errors.Is(err, ErrOpen) {
		t.Errorf("Begin while open = %v, want ErrOpen", err)
	}
}

func TestBreakerFrameResetsFailures(t *testing.T) {
	b, _ := testBreaker(3)
	failSession(t, b)
	failSession(t, b)

	s, _ := b.Begin()
	s.Delivered()
	if b.Failures() != 0 {
		t.Errorf("failures = %d after a frame, want 0", b.Failures())
	}

	// the stream breaking later still counts once
	s.End(errStreamBroke)
	if b.Failures() != 1 || b.State() != Closed {
		t.Errorf("state=%v failures=%d, want closed/1", b.State(), b.Failures())
	}
}

func TestBreakerCancelledSessionNotCounted(t *testing.T) {
	b, _ := testBreaker(1)

	for _, err := range []error{nil, context.Canceled, fmt.Errorf("recv: %w", context.Canceled)} {
		s, _ := b.Begin()
		s.End(err)
	}
	if b.State() != Closed || b.Failures() != 0 {
		t.Errorf("state=%v failures=%d, want closed/0", b.State(), b.Failures())
	}
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	tests := []struct {
		name      string
		frame     bool
		wantState State
	}{
		{"trial delivers a frame", true, Closed},
		{"trial fails", false, Open},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, now := testBreaker(1)
			failSession(t, b)

			*now = now.Add(5 * time.Second)
			if _, err := b.Begin(); !errors.Is(err, ErrOpen) {
				t.Fatalf("Begin before reset timeout = %v", err)
			}

			*now = now.Add(6 * time.Second)
			trial, err := b.Begin()
			if err != nil {
				t.Fatalf("trial Begin = %v", err)
			}
			if b.State() != HalfOpen {
				t.Fatalf("state = %v, want half-open", b.State())
			}
			if _, err := b.Begin(); !errors.Is(err, ErrOpen) {
				t.Errorf("second session during trial = %v, want ErrOpen", err)
			}

			if tt.frame {
				trial.Delivered()
			} else {
				trial.End(errStreamBroke)
			}
			if b.State() != tt.wantState {
				t.Errorf("state = %v, want %v", b.State(), tt.wantState)
			}
		})
	}
}

func TestBreakerCancelledTrialAdmitsAnother(t *testing.T) {
	b, now := testBreaker(1)
	failSession(t, b)
	*now = now.Add(11 * time.Second)

	trial, _ := b.Begin()
	trial.End(context.Canceled)
	if b.State() != HalfOpen {
		t.Fatalf("state = %v, want half-open", b.State())
	}
	if _, err := b.Begin(); err != nil {
		t.Errorf("Begin after cancelled trial = %v", err)
	}
}

func TestSessionEndCountsOnce(t *testing.T) {
	b, _ := testBreaker(5)
	s, _ := b.Begin()
	s.End(errStreamBroke)
	s.End(errStreamBroke)
	s.Delivered()

	if b.Failures() != 1 {
		t.Errorf("failures = %d, want 1", b.Failures())
	}
	if s.HasDelivered() != true {
		t.Error("HasDelivered should report the late frame")
	}
}

func TestBreakerHook(t *testing.T) {
	b, now := testBreaker(1)
	var moves []string
	b.WithHook(func(from, to State) { moves = append(moves, from.String()+">"+to.String()) })

	failSession(t, b)
	*now = now.Add(time.Minute)
	s, _ := b.Begin()
	s.Delivered()

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(moves) != len(want) {
		t.Fatalf("moves = %v, want %v", moves, want)
	}
	for i := range want {
		if moves[i] != want[i] {
			t.Errorf("move %d = %s, want %s", i, moves[i], want[i])
		}
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{Closed: "closed", Open: "open", HalfOpen: "half-open", State(7): "unknown"} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Name != "stream" || cfg.Threshold != DefaultThreshold || cfg.ResetTimeout != DefaultResetTimeout {
		t.Errorf("defaults = %+v", cfg)
	}
	if v := VisionConfig(); v.Name != "vision" {
		t.Errorf("VisionConfig name = %q", v.Name)
	}
}
