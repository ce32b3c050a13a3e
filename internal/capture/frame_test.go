package capture

import (
	"testing"
	"time"
)

func TestFromScores(t *testing.T) {
	f := FromScores(0.4, 0.6, true, 1_700_000_000_123, SourceRenderer)

	if f.Sample.Left != 0.4 || f.Sample.Right != 0.6 {
		t.Errorf("Sample = %+v", f.Sample)
	}
	if f.Missing() {
		t.Error("frame with a face reported missing")
	}
	if got := f.At.UnixMilli(); got != 1_700_000_000_123 {
		t.Errorf("At = %d ms", got)
	}
	if f.Source != SourceRenderer {
		t.Errorf("Source = %q", f.Source)
	}
}

func TestFromScoresDefaultsToNow(t *testing.T) {
	before := time.Now()
	f := FromScores(0, 0, false, 0, SourceRenderer)

	if f.At.Before(before) {
		t.Errorf("At = %v, want >= %v", f.At, before)
	}
	if !f.Missing() {
		t.Error("frame without a face should be missing")
	}
}

func TestFromNanos(t *testing.T) {
	thumb := []byte{1, 2, 3}
	f := FromNanos(0.1, 0.2, true, 42_000_000_000, thumb, SourceVision)

	if !f.At.Equal(time.Unix(42, 0)) {
		t.Errorf("At = %v", f.At)
	}
	if len(f.Thumbnail) != 3 {
		t.Errorf("Thumbnail = %v", f.Thumbnail)
	}
}

func TestSinkFunc(t *testing.T) {
	var got []Frame
	var s Sink = SinkFunc(func(f Frame) bool {
		got = append(got, f)
		return true
	})

	if !s.Submit(Frame{Source: SourceReplay}) || len(got) != 1 {
		t.Errorf("Submit did not reach func: %v", got)
	}
}
