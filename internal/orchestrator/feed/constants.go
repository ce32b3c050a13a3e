package feed

import "time"

// Watchdog defaults
const (
	// Perceptual hash distance at or below which two thumbnails count as the
	// same picture
	MaxHashDistance = 2

	// How often Run checks for a stalled feed
	CheckInterval = 500 * time.Millisecond
)
