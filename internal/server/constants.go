// Package server exposes the blink pipeline to the renderer and overlay
// windows over HTTP and WebSocket.
package server

import "time"

// Server configuration constants
const (
	// Per-connection rate limiting; score frames arrive at camera rate
	RateLimitMessages = 120
	RateLimitWindow   = time.Second

	// Outbound queue per WebSocket client; events are dropped when full
	ClientSendBuffer = 64
	WriteTimeout     = 2 * time.Second

	// Request body limit for REST control endpoints
	MaxBodyBytes = 1 << 16

	// Upper bound for GET /api/blinks?limit=
	MaxBlinkLimit = 1000
)
