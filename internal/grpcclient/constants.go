package grpcclient

import "time"

// Client configuration defaults
const (
	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	// Frames per second requested from the sidecar when unset
	DefaultMaxFPS = 30
)
