// Package feed watches the frame feed for the degraded modes a camera
// pipeline falls into: no frames at all, no face, or a frozen picture.
package feed

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"log/slog"
	"sync"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/blinkguard/internal/capture"
)

// Status of the frame feed.
type Status string

const (
	StatusWaiting Status = "waiting" // no frame seen yet
	StatusLive    Status = "live"
	StatusNoFace  Status = "no_face"
	StatusStalled Status = "stalled"
	StatusFrozen  Status = "frozen"
)

// Config for a Watchdog.
type Config struct {
	StallTimeout time.Duration
	FrozenFrames int // consecutive identical thumbnails before frozen; 0 disables

	// Clock stamps frame arrival; frame timestamps come from other clocks.
	Clock Clock
}

// Watchdog tracks feed health from the frames it observes.
type Watchdog struct {
	cfg      Config
	onChange func(Status)

	mu        sync.Mutex
	status    Status
	lastFrame time.Time
	lastHash  *goimagehash.ImageHash
	same      int
}

// NewWatchdog creates a watchdog in the waiting state. onChange, if set, is
// called outside the lock on every status transition.
func NewWatchdog(cfg Config, onChange func(Status)) *Watchdog {
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	return &Watchdog{cfg: cfg, onChange: onChange, status: StatusWaiting}
}

// Observe updates the watchdog with one frame and returns the resulting status.
func (w *Watchdog) Observe(f capture.Frame) Status {
	hash := w.hash(f.Thumbnail)

	w.mu.Lock()
	w.lastFrame = w.cfg.Clock.Now()
	if w.cfg.FrozenFrames > 0 && hash != nil {
		w.trackHashLocked(hash)
	}

	next := StatusLive
	switch {
	case w.cfg.FrozenFrames > 0 && w.same >= w.cfg.FrozenFrames:
		next = StatusFrozen
	case f.Missing():
		next = StatusNoFace
	}
	changed := w.setLocked(next)
	w.mu.Unlock()

	if changed {
		w.notify(next)
	}
	return next
}

func (w *Watchdog) trackHashLocked(hash *goimagehash.ImageHash) {
	if w.lastHash == nil {
		w.lastHash = hash
		return
	}
	dist, err := w.lastHash.Distance(hash)
	if err == nil && dist <= MaxHashDistance {
		w.same++
		return
	}
	w.lastHash = hash
	w.same = 0
}

func (w *Watchdog) hash(thumb []byte) *goimagehash.ImageHash {
	if len(thumb) == 0 || w.cfg.FrozenFrames == 0 {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(thumb))
	if err != nil {
		slog.Debug("thumbnail decode failed", "error", err)
		return nil
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil
	}
	return hash
}

// Check marks the feed stalled when no frame arrived within StallTimeout
// before now.
func (w *Watchdog) Check(now time.Time) Status {
	w.mu.Lock()
	changed := false
	if w.status != StatusWaiting && w.status != StatusStalled &&
		now.Sub(w.lastFrame) > w.cfg.StallTimeout {
		changed = w.setLocked(StatusStalled)
	}
	status := w.status
	w.mu.Unlock()

	if changed {
		slog.Warn("frame feed stalled", "timeout", w.cfg.StallTimeout)
		w.notify(status)
	}
	return status
}

// Run calls Check on every tick until ctx is done.
func (w *Watchdog) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(w.cfg.Clock.Now())
		}
	}
}

// Status returns the current feed status.
func (w *Watchdog) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *Watchdog) setLocked(s Status) bool {
	if w.status == s {
		return false
	}
	w.status = s
	return true
}

func (w *Watchdog) notify(s Status) {
	if w.onChange != nil {
		w.onChange(s)
	}
}
