package resilience

import "time"

// Breaker defaults, tuned for the vision sidecar stream.
const (
	DefaultThreshold    = 3
	DefaultResetTimeout = 10 * time.Second
)

// Reconnect defaults. Frames stop while we wait, so the first retry is fast.
const (
	DefaultBaseDelay    = 250 * time.Millisecond
	DefaultMaxDelay     = 5 * time.Second
	DefaultJitterFactor = 0.2
)

// Config holds breaker settings.
type Config struct {
	Name         string        // logged on every transition
	Threshold    int           // consecutive failed sessions before opening
	ResetTimeout time.Duration // how long to fail fast before a trial session
}

// VisionConfig returns the breaker settings for the landmark stream.
func VisionConfig() Config {
	return Config{Name: "vision", Threshold: DefaultThreshold, ResetTimeout: DefaultResetTimeout}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "stream"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	return c
}

// RetryConfig shapes the delay between stream sessions.
type RetryConfig struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64          // delay varies by +/- JitterFactor/2
	IsRetryable  func(error) bool // nil means IsRetryableGRPC
}

// VisionRetryConfig returns reconnect settings for the landmark stream.
func VisionRetryConfig() RetryConfig {
	return RetryConfig{
		BaseDelay:    DefaultBaseDelay,
		MaxDelay:     DefaultMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  IsRetryableGRPC,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = max(DefaultMaxDelay, c.BaseDelay)
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	if c.IsRetryable == nil {
		c.IsRetryable = IsRetryableGRPC
	}
	return c
}
