// Package orchestrator runs the blink pipeline: one frame loop feeding the
// blink monitor, the feed watchdog and the optional vision sidecar stream.
package orchestrator

import "time"

// Orchestrator configuration constants
const (
	// Outbound event buffers. Overlay events are dropped when full.
	OverlayEventBuffer = 16
	BlinkEventBuffer   = 64
	FeedEventBuffer    = 16
	BreakEventBuffer   = 4
	ErrorEventBuffer   = 16

	// Vision sidecar health polling
	VisionHealthInterval = 5 * time.Second
	VisionHealthTimeout  = 2 * time.Second

	// Default number of entries returned by History
	DefaultHistoryLimit = 50
)

// Vision sidecar states reported in Status.
const (
	VisionDisabled    = "disabled"
	VisionUnknown     = "unknown"
	VisionServing     = "serving"
	VisionUnavailable = "unavailable"
)
