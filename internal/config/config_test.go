package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
)

var envKeys = []string{
	"HTTP_ADDR", "VISION_ADDR", "CAMERA_ID", "VISION_MAX_FPS",
	"CLOSE_THRESHOLD", "OPEN_THRESHOLD", "QUIET_PERIOD", "START_ACTIVE",
	"FRAME_BUFFER", "FEED_STALL_TIMEOUT", "FEED_FROZEN_FRAMES", "HISTORY_SIZE",
	"LOG_LEVEL", "LOG_FORMAT", FileEnv,
}

// clearEnv blanks every key; empty values fall back to defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blinkguard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8000")
	}
	if cfg.VisionAddr != "" {
		t.Errorf("VisionAddr = %q, want empty", cfg.VisionAddr)
	}
	if cfg.CloseThreshold != 0.3 || cfg.OpenThreshold != 0.2 {
		t.Errorf("thresholds = %v/%v, want 0.3/0.2", cfg.CloseThreshold, cfg.OpenThreshold)
	}
	if cfg.QuietPeriod != 500*time.Millisecond {
		t.Errorf("QuietPeriod = %v, want 500ms", cfg.QuietPeriod)
	}
	if cfg.StartActive {
		t.Error("StartActive should default to false")
	}
	if cfg.FrameBuffer != DefaultFrameBuffer || cfg.HistorySize != DefaultHistorySize {
		t.Errorf("FrameBuffer=%d HistorySize=%d", cfg.FrameBuffer, cfg.HistorySize)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want empty", cfg.File)
	}
}

func TestLoadWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("VISION_ADDR", "localhost:50052")
	t.Setenv("CLOSE_THRESHOLD", "0.45")
	t.Setenv("OPEN_THRESHOLD", "0.25")
	t.Setenv("QUIET_PERIOD", "1.5")
	t.Setenv("START_ACTIVE", "true")
	t.Setenv("FEED_STALL_TIMEOUT", "750ms")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.VisionAddr != "localhost:50052" {
		t.Errorf("VisionAddr = %q", cfg.VisionAddr)
	}
	if cfg.CloseThreshold != 0.45 || cfg.OpenThreshold != 0.25 {
		t.Errorf("thresholds = %v/%v", cfg.CloseThreshold, cfg.OpenThreshold)
	}
	if cfg.QuietPeriod != 1500*time.Millisecond {
		t.Errorf("QuietPeriod = %v, want 1.5s", cfg.QuietPeriod)
	}
	if !cfg.StartActive {
		t.Error("StartActive should be true")
	}
	if cfg.FeedStallTimeout != 750*time.Millisecond {
		t.Errorf("FeedStallTimeout = %v", cfg.FeedStallTimeout)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
}

func TestLoadFilePrecedence(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
http_addr: ":7000"
close_threshold: 0.5
open_threshold: 0.4
quiet_period: 2s
history_size: 32
`)
	t.Setenv("OPEN_THRESHOLD", "0.1")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.HTTPAddr != ":7000" {
		t.Errorf("HTTPAddr = %q, want file value", cfg.HTTPAddr)
	}
	if cfg.CloseThreshold != 0.5 {
		t.Errorf("CloseThreshold = %v, want file value 0.5", cfg.CloseThreshold)
	}
	if cfg.OpenThreshold != 0.1 {
		t.Errorf("OpenThreshold = %v, want env value 0.1", cfg.OpenThreshold)
	}
	if cfg.QuietPeriod != 2*time.Second {
		t.Errorf("QuietPeriod = %v", cfg.QuietPeriod)
	}
	if cfg.HistorySize != 32 {
		t.Errorf("HistorySize = %d", cfg.HistorySize)
	}
	if cfg.FrameBuffer != DefaultFrameBuffer {
		t.Errorf("FrameBuffer = %d, want default", cfg.FrameBuffer)
	}
	if cfg.File != path {
		t.Errorf("File = %q", cfg.File)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		env   map[string]string
		field string
	}{
		{"inverted thresholds", "close_threshold: 0.2\nopen_threshold: 0.3\n", nil, "open_threshold"},
		{"threshold out of range", "", map[string]string{"CLOSE_THRESHOLD": "1.4"}, "close_threshold"},
		{"zero quiet period", "quiet_period: 0s\n", nil, "quiet_period"},
		{"negative frozen frames", "feed_frozen_frames: -1\n", nil, "feed_frozen_frames"},
		{"bad log level", "", map[string]string{"LOG_LEVEL": "chatty"}, "log_level"},
		{"bad log format", "log_format: xml\n", nil, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, tt.yaml)
			}

			_, err := LoadFrom(path)
			if !apperrors.IsCode(err, apperrors.CodeInvalidConfig) {
				t.Fatalf("err = %v, want INVALID_CONFIGURATION", err)
			}
			if got := apperrors.CodeOf(err); got != apperrors.CodeInvalidConfig {
				t.Fatalf("code = %v", got)
			}
			var ae *apperrors.AppError
			if !errors.As(err, &ae) || ae.Metadata["field"] != tt.field {
				t.Errorf("field = %v, want %q", ae, tt.field)
			}
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)

	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml")); !apperrors.IsCode(err, apperrors.CodeInvalidConfig) {
		t.Errorf("missing file: err = %v", err)
	}
	if _, err := LoadFrom(writeFile(t, "close_threshold: [1, 2\n")); !apperrors.IsCode(err, apperrors.CodeInvalidConfig) {
		t.Errorf("bad yaml: err = %v", err)
	}
}

func TestLoadReadsBlinkConfigEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(FileEnv, writeFile(t, "camera_id: \"2\"\n"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CameraID != "2" {
		t.Errorf("CameraID = %q, want 2", cfg.CameraID)
	}
}

func TestMonitorConfig(t *testing.T) {
	cfg := Defaults()
	cfg.StartActive = true

	mc := cfg.Monitor()
	if mc.Thresholds.Close != 0.3 || mc.Thresholds.Open != 0.2 || mc.QuietPeriod != DefaultQuietPeriod || !mc.Active {
		t.Errorf("Monitor() = %+v", mc)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION_GO", "250ms")
	t.Setenv("TEST_DURATION_SECONDS", "2")
	t.Setenv("TEST_DURATION_BAD", "soon")

	if d := getEnvDuration("TEST_DURATION_GO", 0); d != 250*time.Millisecond {
		t.Errorf("go syntax: %v", d)
	}
	if d := getEnvDuration("TEST_DURATION_SECONDS", 0); d != 2*time.Second {
		t.Errorf("bare seconds: %v", d)
	}
	if d := getEnvDuration("TEST_DURATION_BAD", time.Minute); d != time.Minute {
		t.Errorf("invalid should fall back: %v", d)
	}
	if d := getEnvDuration("TEST_DURATION_UNSET", time.Hour); d != time.Hour {
		t.Errorf("unset should fall back: %v", d)
	}
}

// startWatch runs Watch on path and returns once a first write has been
// picked up, so later edits are known to be observed.
func startWatch(t *testing.T, path string) chan *Config {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	changes := make(chan *Config, 16)
	go func() { _ = Watch(ctx, path, func(c *Config) { changes <- c }) }()

	for i := 0; i < 20; i++ {
		if err := os.WriteFile(path, []byte("quiet_period: 2s\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		select {
		case cfg := <-changes:
			if cfg.QuietPeriod != 2*time.Second {
				t.Fatalf("first reload quiet period = %v", cfg.QuietPeriod)
			}
			return changes
		case <-time.After(4 * ReloadDebounce):
		}
	}
	t.Fatal("watcher never picked up a write")
	return nil
}

func nextReload(t *testing.T, changes <-chan *Config) *Config {
	t.Helper()
	select {
	case cfg := <-changes:
		return cfg
	case <-time.After(2 * time.Second):
		t.Fatal("no reload observed")
		return nil
	}
}

func expectNoReload(t *testing.T, changes <-chan *Config) {
	t.Helper()
	select {
	case cfg := <-changes:
		t.Fatalf("unexpected reload: %s", cfg.String())
	case <-time.After(4 * ReloadDebounce):
	}
}

func TestWatchReloads(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "quiet_period: 1s\n")
	changes := startWatch(t, path)

	if err := os.WriteFile(path, []byte("quiet_period: 3s\nclose_threshold: 0.6\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := nextReload(t, changes)
	if cfg.QuietPeriod != 3*time.Second || cfg.CloseThreshold != 0.6 {
		t.Errorf("reloaded %s", cfg.String())
	}
}

func TestWatchSurvivesRenameOver(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "quiet_period: 1s\n")
	changes := startWatch(t, path)

	tmp := filepath.Join(filepath.Dir(path), ".blinkguard.yaml.tmp")
	if err := os.WriteFile(tmp, []byte("close_threshold: 0.6\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	if cfg := nextReload(t, changes); cfg.CloseThreshold != 0.6 {
		t.Errorf("after rename close = %v, want 0.6", cfg.CloseThreshold)
	}

	// the replaced file must still be watched
	if err := os.WriteFile(path, []byte("close_threshold: 0.7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if cfg := nextReload(t, changes); cfg.CloseThreshold != 0.7 {
		t.Errorf("after write close = %v, want 0.7", cfg.CloseThreshold)
	}
}

func TestWatchSkipsEmptyFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "quiet_period: 1s\n")
	changes := startWatch(t, path)

	if err := os.Truncate(path, 0); err != nil {
		t.Fatal(err)
	}
	expectNoReload(t, changes)

	if err := os.WriteFile(path, []byte("close_threshold: 0.6\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if cfg := nextReload(t, changes); cfg.CloseThreshold != 0.6 {
		t.Errorf("close = %v, want 0.6", cfg.CloseThreshold)
	}
}

func TestWatchIgnoresSiblingFiles(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "quiet_period: 1s\n")
	changes := startWatch(t, path)

	other := filepath.Join(filepath.Dir(path), "other.yaml")
	if err := os.WriteFile(other, []byte("quiet_period: 9s\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	expectNoReload(t, changes)
}

func TestReloadRejectsEmpty(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, " \n")
	if _, err := reload(path); !apperrors.IsCode(err, apperrors.CodeInvalidConfig) {
		t.Errorf("reload(empty) = %v, want INVALID_CONFIGURATION", err)
	}
}

func TestWatchSkipsInvalid(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "quiet_period: 1s\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 16)
	done := make(chan struct{})
	go func() {
		_ = Watch(ctx, path, func(c *Config) { changes <- c })
		close(done)
	}()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("quiet_period: -1s\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	timeout := time.After(200 * time.Millisecond)
drain:
	for {
		select {
		case c := <-changes:
			if c.QuietPeriod <= 0 {
				t.Fatalf("invalid config delivered: %+v", c)
			}
		case <-timeout:
			break drain
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
