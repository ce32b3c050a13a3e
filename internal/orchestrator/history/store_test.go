package history

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestStoreAdd(t *testing.T) {
	s := NewStore(10, 10)
	s.Add(1, t0)

	entries := s.Recent(0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Count != 1 || !entries[0].At.Equal(t0) {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestStoreMaxSize(t *testing.T) {
	s := NewStore(5, 10)
	for i := 1; i <= 12; i++ {
		s.Add(uint64(i), t0.Add(time.Duration(i)*time.Second))
	}

	if s.Len() != 5 {
		t.Fatalf("expected 5 entries, got %d", s.Len())
	}
	if first := s.Recent(0)[0]; first.Count != 8 {
		t.Errorf("oldest kept count = %d, want 8", first.Count)
	}
}

func TestRecent(t *testing.T) {
	s := NewStore(10, 10)
	for i := 1; i <= 4; i++ {
		s.Add(uint64(i), t0.Add(time.Duration(i)*time.Second))
	}

	tests := []struct {
		n         int
		wantLen   int
		wantFirst uint64
	}{
		{2, 2, 3},
		{0, 4, 1},
		{-1, 4, 1},
		{100, 4, 1},
	}
	for _, tt := range tests {
		got := s.Recent(tt.n)
		if len(got) != tt.wantLen || got[0].Count != tt.wantFirst {
			t.Errorf("Recent(%d) = %+v", tt.n, got)
		}
	}
}

func TestRecentReturnsCopy(t *testing.T) {
	s := NewStore(10, 10)
	s.Add(1, t0)

	got := s.Recent(0)
	got[0].Count = 99
	if s.Recent(0)[0].Count != 1 {
		t.Error("Recent exposed internal storage")
	}
}

func TestRate(t *testing.T) {
	s := NewStore(100, 10)
	// 12 blinks, one every 10s, over two minutes
	for i := 0; i < 12; i++ {
		s.Add(uint64(i+1), t0.Add(time.Duration(i)*10*time.Second))
	}
	now := t0.Add(115 * time.Second)

	tests := []struct {
		name   string
		window time.Duration
		want   float64
	}{
		// (55s, 115s] holds blinks at 60..110s
		{"last minute", time.Minute, 6},
		{"last 30s", 30 * time.Second, 6},
		{"whole session", 10 * time.Minute, 1.2},
		{"zero window", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Rate(tt.window, now); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Rate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRateIgnoresFuture(t *testing.T) {
	s := NewStore(10, 10)
	s.Add(1, t0)
	s.Add(2, t0.Add(time.Hour))

	if got := s.Rate(time.Minute, t0.Add(time.Second)); got != 1 {
		t.Errorf("Rate = %v, want 1", got)
	}
}

func TestEmit(t *testing.T) {
	s := NewStore(10, 10)
	go s.Emit(Event{Count: 3, RatePerMin: 12})

	select {
	case e := <-s.Events():
		if e.Count != 3 || e.RatePerMin != 12 {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestEmitNonBlocking(t *testing.T) {
	s := NewStore(10, 1)
	s.Emit(Event{Count: 1})
	s.Emit(Event{Count: 2}) // dropped

	if e := <-s.Events(); e.Count != 1 {
		t.Errorf("first event count = %d", e.Count)
	}
	select {
	case e := <-s.Events():
		t.Errorf("unexpected second event: %+v", e)
	default:
	}
}
