// Package config handles platform configuration
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/GriffinCanCode/blinkguard/internal/blink"
	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
)

// Defaults applied before the YAML file and the environment.
const (
	DefaultHTTPAddr         = ":8000"
	DefaultCameraID         = "0"
	DefaultVisionMaxFPS     = 30
	DefaultCloseThreshold   = 0.3
	DefaultOpenThreshold    = 0.2
	DefaultQuietPeriod      = 500 * time.Millisecond
	DefaultFrameBuffer      = 8
	DefaultFeedStallTimeout = 3 * time.Second
	DefaultFeedFrozenFrames = 90
	DefaultHistorySize      = 256
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"

	// FileEnv names the environment variable holding the optional YAML path.
	FileEnv = "BLINK_CONFIG"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	// VisionAddr is the landmark sidecar address; empty disables the gRPC
	// feed and the renderer is the only frame source.
	VisionAddr   string `yaml:"vision_addr"`
	CameraID     string `yaml:"camera_id"`
	VisionMaxFPS int    `yaml:"vision_max_fps"`

	CloseThreshold float64       `yaml:"close_threshold"`
	OpenThreshold  float64       `yaml:"open_threshold"`
	QuietPeriod    time.Duration `yaml:"quiet_period"`
	StartActive    bool          `yaml:"start_active"`

	FrameBuffer      int           `yaml:"frame_buffer"`
	FeedStallTimeout time.Duration `yaml:"feed_stall_timeout"`
	FeedFrozenFrames int           `yaml:"feed_frozen_frames"` // 0 disables frozen detection
	HistorySize      int           `yaml:"history_size"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// File is the YAML file the config was read from, if any.
	File string `yaml:"-"`
}

// Defaults returns a Config holding only built-in values.
func Defaults() *Config {
	return &Config{
		HTTPAddr:         DefaultHTTPAddr,
		CameraID:         DefaultCameraID,
		VisionMaxFPS:     DefaultVisionMaxFPS,
		CloseThreshold:   DefaultCloseThreshold,
		OpenThreshold:    DefaultOpenThreshold,
		QuietPeriod:      DefaultQuietPeriod,
		FrameBuffer:      DefaultFrameBuffer,
		FeedStallTimeout: DefaultFeedStallTimeout,
		FeedFrozenFrames: DefaultFeedFrozenFrames,
		HistorySize:      DefaultHistorySize,
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
	}
}

// Load reads .env (if present), then the YAML file named by BLINK_CONFIG,
// then the process environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using process environment")
	}
	return LoadFrom(os.Getenv(FileEnv))
}

// LoadFrom is Load without the .env step, reading YAML from path when non-empty.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidConfig, "read config file").WithMetadata("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidConfig, "parse config file").WithMetadata("path", path)
	}
	c.File = path
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.VisionAddr = getEnv("VISION_ADDR", c.VisionAddr)
	c.CameraID = getEnv("CAMERA_ID", c.CameraID)
	c.VisionMaxFPS = getEnvInt("VISION_MAX_FPS", c.VisionMaxFPS)
	c.CloseThreshold = getEnvFloat("CLOSE_THRESHOLD", c.CloseThreshold)
	c.OpenThreshold = getEnvFloat("OPEN_THRESHOLD", c.OpenThreshold)
	c.QuietPeriod = getEnvDuration("QUIET_PERIOD", c.QuietPeriod)
	c.StartActive = getEnvBool("START_ACTIVE", c.StartActive)
	c.FrameBuffer = getEnvInt("FRAME_BUFFER", c.FrameBuffer)
	c.FeedStallTimeout = getEnvDuration("FEED_STALL_TIMEOUT", c.FeedStallTimeout)
	c.FeedFrozenFrames = getEnvInt("FEED_FROZEN_FRAMES", c.FeedFrozenFrames)
	c.HistorySize = getEnvInt("HISTORY_SIZE", c.HistorySize)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Thresholds returns the hysteresis bounds.
func (c *Config) Thresholds() blink.Thresholds {
	return blink.Thresholds{Close: c.CloseThreshold, Open: c.OpenThreshold}
}

// Monitor returns the blink monitor settings.
func (c *Config) Monitor() blink.Config {
	return blink.Config{Thresholds: c.Thresholds(), QuietPeriod: c.QuietPeriod, Active: c.StartActive}
}

// Validate rejects values the platform cannot run with.
func (c *Config) Validate() error {
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if c.QuietPeriod <= 0 {
		return invalid("quiet_period", "must be positive, got %v", c.QuietPeriod)
	}
	if c.FrameBuffer <= 0 {
		return invalid("frame_buffer", "must be positive, got %d", c.FrameBuffer)
	}
	if c.HistorySize <= 0 {
		return invalid("history_size", "must be positive, got %d", c.HistorySize)
	}
	if c.FeedStallTimeout <= 0 {
		return invalid("feed_stall_timeout", "must be positive, got %v", c.FeedStallTimeout)
	}
	if c.FeedFrozenFrames < 0 {
		return invalid("feed_frozen_frames", "must not be negative, got %d", c.FeedFrozenFrames)
	}
	if c.VisionMaxFPS <= 0 {
		return invalid("vision_max_fps", "must be positive, got %d", c.VisionMaxFPS)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return invalid("log_format", "unknown format %q", c.LogFormat)
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return apperrors.Newf(apperrors.CodeInvalidConfig, field+": "+format, args...).WithMetadata("field", field)
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, invalid("log_level", "unknown level %q", s)
	}
	return l, nil
}

// String renders the effective settings on one line for startup logs.
func (c *Config) String() string {
	vision := c.VisionAddr
	if vision == "" {
		vision = "disabled"
	}
	return fmt.Sprintf("http=%s vision=%s thresholds=(%s) quiet=%v active=%t",
		c.HTTPAddr, vision, c.Thresholds(), c.QuietPeriod, c.StartActive)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

// getEnvDuration accepts Go durations ("750ms") or bare seconds ("0.75").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return def
}
