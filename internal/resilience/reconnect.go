package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Attempt runs one stream session and reports whether it delivered any
// data before ending.
type Attempt func(ctx context.Context) (delivered bool, err error)

// Reconnect runs attempt until ctx is done or an attempt fails with an error
// IsRetryable rejects, which is returned. Sessions that end without
// delivering back off exponentially; one that delivered resets the backoff,
// so a stream that drops after running a while comes back at BaseDelay.
// Returns nil on cancellation.
func Reconnect(ctx context.Context, cfg RetryConfig, attempt Attempt) error {
	cfg = cfg.withDefaults()
	idle := 0

	for {
		delivered, err := attempt(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !cfg.IsRetryable(err) {
			return err
		}
		if delivered {
			idle = 0
		}

		delay := cfg.Delay(idle)
		idle++
		slog.Warn("stream ended, reconnecting", "idle_sessions", idle, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// Delay returns the wait after n consecutive sessions without data:
// BaseDelay doubled n times, capped at MaxDelay, then jittered.
func (c RetryConfig) Delay(n int) time.Duration {
	d := c.BaseDelay << min(n, 16)
	if d > c.MaxDelay || d <= 0 {
		d = c.MaxDelay
	}
	spread := float64(d) * c.JitterFactor * (rand.Float64() - 0.5)
	return d + time.Duration(spread)
}

// IsRetryableGRPC reports whether a stream error is worth reconnecting for.
// Transport-level codes are; a rejected request (bad camera id and the like)
// is not. Errors without a status, ErrOpen included, are retried.
func IsRetryableGRPC(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return true
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal, codes.Unknown:
		return true
	default:
		return false
	}
}
