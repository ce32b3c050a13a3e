// Package capture defines the frame value every frame source delivers to the
// orchestrator.
package capture

import (
	"time"

	"github.com/GriffinCanCode/blinkguard/internal/blink"
)

// Frame sources.
const (
	SourceRenderer = "renderer" // scores pushed by the Electron renderer over /ws
	SourceVision   = "vision"   // landmark sidecar stream
	SourceReplay   = "replay"
)

// Frame is one analyzed video frame.
type Frame struct {
	Sample       blink.Sample
	FaceDetected bool
	At           time.Time
	Thumbnail    []byte // optional JPEG/PNG, used for frozen-feed detection
	Source       string
}

// Missing reports whether the frame carries no usable scores.
func (f Frame) Missing() bool {
	return !f.FaceDetected
}

// FromScores builds a frame from renderer-side scores. A zero tsMillis means
// "now".
func FromScores(left, right float64, face bool, tsMillis int64, source string) Frame {
	at := time.Now()
	if tsMillis > 0 {
		at = time.UnixMilli(tsMillis)
	}
	return Frame{
		Sample:       blink.Sample{Left: left, Right: right},
		FaceDetected: face,
		At:           at,
		Source:       source,
	}
}

// FromNanos is FromScores for sources that timestamp in nanoseconds.
func FromNanos(left, right float64, face bool, tsNanos int64, thumbnail []byte, source string) Frame {
	at := time.Now()
	if tsNanos > 0 {
		at = time.Unix(0, tsNanos)
	}
	return Frame{
		Sample:       blink.Sample{Left: left, Right: right},
		FaceDetected: face,
		At:           at,
		Thumbnail:    thumbnail,
		Source:       source,
	}
}

// Sink accepts frames without blocking. It reports false when the frame was
// dropped.
type Sink interface {
	Submit(f Frame) bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame) bool

func (fn SinkFunc) Submit(f Frame) bool { return fn(f) }
