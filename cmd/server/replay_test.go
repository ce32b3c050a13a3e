package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/GriffinCanCode/blinkguard/internal/blink"
	"github.com/GriffinCanCode/blinkguard/internal/config"
	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
)

func activeConfig() blink.Config {
	mc := config.Defaults().Monitor()
	mc.Active = true
	return mc
}

const blinkTrace = `# one blink, then the eyes stay open
{"t_ms": 0, "left": 0.1, "right": 0.1}
{"t_ms": 100, "left": 0.9, "right": 0.9}
{"t_ms": 200, "left": 0.1, "right": 0.1}

{"t_ms": 400, "face": false}
`

func TestReplayTrace(t *testing.T) {
	var out bytes.Buffer
	res, err := replayTrace(strings.NewReader(blinkTrace), &out, activeConfig(), true)
	if err != nil {
		t.Fatalf("replayTrace: %v", err)
	}

	want := replayResult{Frames: 4, Missing: 1, Blinks: 1, Shows: 1, Hides: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	for _, s := range []string{"closing edge", "opening edge", "blink #1", "0.700s  overlay show"} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("output missing %q:\n%s", s, out.String())
		}
	}
}

func TestReplayNoFlush(t *testing.T) {
	res, err := replayTrace(strings.NewReader(blinkTrace), &bytes.Buffer{}, activeConfig(), false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Shows != 0 {
		t.Errorf("Shows = %d, want 0 without flush", res.Shows)
	}
}

func TestReplayInactive(t *testing.T) {
	mc := activeConfig()
	mc.Active = false

	res, err := replayTrace(strings.NewReader(blinkTrace), &bytes.Buffer{}, mc, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Blinks != 1 || res.Shows != 0 || res.Hides != 0 {
		t.Errorf("inactive result = %+v, want counting only", res)
	}
}

func TestReplayErrors(t *testing.T) {
	tests := []struct {
		name  string
		trace string
	}{
		{"bad json", `{"t_ms": 0, "left": "x"}`},
		{"time goes backwards", "{\"t_ms\": 50}\n{\"t_ms\": 10}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := replayTrace(strings.NewReader(tt.trace), &bytes.Buffer{}, activeConfig(), true)
			if !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
				t.Errorf("err = %v, want INVALID_ARGUMENT", err)
			}
		})
	}
}

func TestReplayRejectsBadConfig(t *testing.T) {
	mc := activeConfig()
	mc.QuietPeriod = 0
	if _, err := replayTrace(strings.NewReader(""), &bytes.Buffer{}, mc, true); !apperrors.IsCode(err, apperrors.CodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIGURATION", err)
	}
}

func TestSetLevel(t *testing.T) {
	cfg := config.Defaults()
	var lv slog.LevelVar

	cfg.LogLevel = "debug"
	setLevel(cfg, &lv)
	if lv.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", lv.Level())
	}

	cfg.LogLevel = "nonsense"
	setLevel(cfg, &lv)
	if lv.Level() != slog.LevelInfo {
		t.Errorf("level = %v, want info fallback", lv.Level())
	}
}

func TestDumpConfigHighlightsChanges(t *testing.T) {
	cfg := config.Defaults()
	cfg.HTTPAddr = ":9999"

	var out bytes.Buffer
	dumpConfig(&out, cfg, config.Defaults())

	if !strings.Contains(out.String(), "(default :8000)") {
		t.Errorf("changed value not annotated:\n%s", out.String())
	}
	if strings.Count(out.String(), "(default") != 1 {
		t.Errorf("only http_addr differs:\n%s", out.String())
	}
}

func TestReportInvalid(t *testing.T) {
	var out bytes.Buffer
	err := apperrors.New(apperrors.CodeInvalidConfig, "quiet_period: must be positive").WithMetadata("field", "quiet_period")
	reportInvalid(&out, err)

	if !strings.Contains(out.String(), "field:  quiet_period") {
		t.Errorf("report = %s", out.String())
	}
}
