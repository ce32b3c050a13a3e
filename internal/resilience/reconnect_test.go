package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
)

func fastRetry() RetryConfig {
	return RetryConfig{BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func TestReconnectUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sessions := 0

	err := Reconnect(ctx, fastRetry(), func(context.Context) (bool, error) {
		sessions++
		if sessions == 5 {
			cancel()
		}
		return false, status.Error(codes.Unavailable, "sidecar restarting")
	})
	if err != nil {
		t.Errorf("Reconnect() = %v, want nil on cancel", err)
	}
	if sessions != 5 {
		t.Errorf("sessions = %d, want 5", sessions)
	}
}

func TestReconnectStopsOnPermanentError(t *testing.T) {
	permanent := apperrors.New(apperrors.CodeInvalidArgument, "unknown camera")
	sessions := 0

	err := Reconnect(context.Background(), fastRetry(), func(context.Context) (bool, error) {
		sessions++
		if sessions < 3 {
			return true, status.Error(codes.Unavailable, "dropped")
		}
		return false, permanent
	})
	if !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Errorf("Reconnect() = %v, want INVALID_ARGUMENT", err)
	}
	if sessions != 3 {
		t.Errorf("sessions = %d, want 3", sessions)
	}
}

func TestReconnectBackoffResetsAfterDelivery(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 20 * time.Millisecond, MaxDelay: time.Second, JitterFactor: 0}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// three idle sessions push the wait to 80ms; a delivering one drops it to 20ms
	script := []bool{false, false, false, true}
	var gaps []time.Duration
	last := time.Now()
	sessions := 0

	_ = Reconnect(ctx, cfg, func(context.Context) (bool, error) {
		now := time.Now()
		if sessions > 0 {
			gaps = append(gaps, now.Sub(last))
		}
		last = now
		if sessions == len(script) {
			cancel()
			return false, nil
		}
		delivered := script[sessions]
		sessions++
		return delivered, errors.New("eof")
	})

	if len(gaps) != 4 {
		t.Fatalf("gaps = %v", gaps)
	}
	if gaps[2] < 80*time.Millisecond {
		t.Errorf("third gap = %v, want >= 80ms", gaps[2])
	}
	if gaps[3] >= 80*time.Millisecond {
		t.Errorf("gap after delivery = %v, want reset to base", gaps[3])
	}
}

func TestDelay(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{60, time.Second},
	}
	for _, tt := range tests {
		if got := cfg.Delay(tt.n); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestDelayJitterBounds(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: time.Second, JitterFactor: 0.2}
	for i := 0; i < 100; i++ {
		if d := cfg.Delay(0); d < 900*time.Millisecond || d > 1100*time.Millisecond {
			t.Fatalf("Delay = %v outside +/-10%%", d)
		}
	}
}

func TestIsRetryableGRPC(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{fmt.Errorf("stream: %w", context.Canceled), false},
		{ErrOpen, true},
		{errors.New("eof"), true},
		{status.Error(codes.Unavailable, "down"), true},
		{status.Error(codes.Unknown, "sidecar crashed"), true},
		{status.Error(codes.InvalidArgument, "bad camera"), false},
		{status.Error(codes.NotFound, "no service"), false},
		{apperrors.New(apperrors.CodeVisionStreamFailed, "closed by sidecar"), true},
		{apperrors.New(apperrors.CodeInvalidConfig, "bad fps"), false},
	}
	for _, tt := range tests {
		if got := IsRetryableGRPC(tt.err); got != tt.want {
			t.Errorf("IsRetryableGRPC(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryConfigDefaults(t *testing.T) {
	cfg := RetryConfig{}.withDefaults()
	if cfg.BaseDelay != DefaultBaseDelay || cfg.MaxDelay != DefaultMaxDelay || cfg.IsRetryable == nil {
		t.Errorf("defaults = %+v", cfg)
	}
	if v := VisionRetryConfig(); v.JitterFactor != DefaultJitterFactor {
		t.Errorf("vision jitter = %v", v.JitterFactor)
	}
}
