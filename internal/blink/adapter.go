// Package blink implements blink detection: a hysteresis signal adapter that
// turns per-frame eye-blink scores into edges, and a state machine that counts
// blinks and debounces the overlay reminder.
package blink

import (
	"fmt"

	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
	"github.com/GriffinCanCode/blinkguard/internal/syncx"
)

// Sample holds the per-eye blink likelihood for one frame, nominally in [0,1].
type Sample struct {
	Left  float64
	Right float64
}

// Edge is the adapter output relative to its previous classification.
type Edge int

const (
	NoSignal Edge = iota
	ClosingEdge
	OpeningEdge
)

func (e Edge) String() string {
	switch e {
	case ClosingEdge:
		return "closing"
	case OpeningEdge:
		return "opening"
	default:
		return "none"
	}
}

// Thresholds are the hysteresis bounds. An eye is closing above Close and
// open below Open.
type Thresholds struct {
	Close float64
	Open  float64
}

// Validate rejects bounds outside [0,1] and inverted bounds.
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{"close": t.Close, "open": t.Open} {
		if !(v >= 0 && v <= 1) {
			return apperrors.Newf(apperrors.CodeInvalidConfig, "%s threshold %v outside [0,1]", name, v).
				WithMetadata("field", name+"_threshold")
		}
	}
	if t.Open > t.Close {
		return apperrors.Newf(apperrors.CodeInvalidConfig,
			"open threshold %v above close threshold %v", t.Open, t.Close).
			WithMetadata("field", "open_threshold")
	}
	return nil
}

func (t Thresholds) String() string {
	return fmt.Sprintf("close>%.2f open<%.2f", t.Close, t.Open)
}

// Adapter classifies samples into edges. Both eyes must agree, so a wink or a
// one-eye tracking glitch never produces an edge.
//
// Classify is meant to be called from a single goroutine; thresholds may be
// replaced concurrently and take effect on the next frame.
type Adapter struct {
	thresholds *syncx.RWGuard[Thresholds]
	closed     bool
}

// NewAdapter creates an adapter in the open state. Thresholds are not
// validated here; see Thresholds.Validate.
func NewAdapter(t Thresholds) *Adapter {
	return &Adapter{thresholds: syncx.NewGuard(t)}
}

// Classify returns ClosingEdge or OpeningEdge when the sample crosses into the
// other state, NoSignal otherwise. Values are compared as-is, without clamping.
func (a *Adapter) Classify(s Sample) Edge {
	t := a.thresholds.Get()

	closing := s.Left > t.Close && s.Right > t.Close
	opening := s.Left < t.Open && s.Right < t.Open

	switch {
	case closing && opening:
		// only reachable with inverted thresholds: hold current state
		return NoSignal
	case closing && !a.closed:
		a.closed = true
		return ClosingEdge
	case opening && a.closed:
		a.closed = false
		return OpeningEdge
	default:
		return NoSignal
	}
}

// Thresholds returns the bounds in effect.
func (a *Adapter) Thresholds() Thresholds {
	return a.thresholds.Get()
}

// SetThresholds validates t and replaces the bounds for subsequent frames.
// Rejected bounds leave the current ones in effect.
func (a *Adapter) SetThresholds(t Thresholds) error {
	return a.thresholds.SetIf(t, Thresholds.Validate)
}
