package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/blinkguard/internal/config"
	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
)

var validateDump bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration the same way serve does (.env, YAML file,
environment) and report whether it is valid.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "print every setting, highlighting values that differ from defaults")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		reportInvalid(os.Stderr, err)
		return err
	}

	source := cfg.File
	if source == "" {
		source = "environment"
	}
	color.New(color.FgGreen, color.Bold).Fprintf(os.Stdout, "configuration is valid: %s\n", source)

	if validateDump {
		dumpConfig(os.Stdout, cfg, config.Defaults())
	}
	return nil
}

func reportInvalid(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintln(w, "configuration is invalid")

	var ae *apperrors.AppError
	if errors.As(err, &ae) {
		if field := ae.Metadata["field"]; field != "" {
			fmt.Fprintf(w, "  field:  %s\n", field)
		}
		if path := ae.Metadata["path"]; path != "" {
			fmt.Fprintf(w, "  file:   %s\n", path)
		}
		fmt.Fprintf(w, "  reason: %s\n", ae.Message)
		if ae.Cause != nil {
			fmt.Fprintf(w, "  cause:  %v\n", ae.Cause)
		}
		return
	}
	fmt.Fprintf(w, "  %v\n", err)
}

type setting struct {
	key        string
	value, def any
}

func settings(cfg, def *config.Config) []setting {
	return []setting{
		{"http_addr", cfg.HTTPAddr, def.HTTPAddr},
		{"vision_addr", cfg.VisionAddr, def.VisionAddr},
		{"camera_id", cfg.CameraID, def.CameraID},
		{"vision_max_fps", cfg.VisionMaxFPS, def.VisionMaxFPS},
		{"close_threshold", cfg.CloseThreshold, def.CloseThreshold},
		{"open_threshold", cfg.OpenThreshold, def.OpenThreshold},
		{"quiet_period", cfg.QuietPeriod, def.QuietPeriod},
		{"start_active", cfg.StartActive, def.StartActive},
		{"frame_buffer", cfg.FrameBuffer, def.FrameBuffer},
		{"feed_stall_timeout", cfg.FeedStallTimeout, def.FeedStallTimeout},
		{"feed_frozen_frames", cfg.FeedFrozenFrames, def.FeedFrozenFrames},
		{"history_size", cfg.HistorySize, def.HistorySize},
		{"log_level", cfg.LogLevel, def.LogLevel},
		{"log_format", cfg.LogFormat, def.LogFormat},
	}
}

// dumpConfig prints every setting; values that differ from the default are
// highlighted and followed by the default.
func dumpConfig(w io.Writer, cfg, def *config.Config) {
	changed := color.New(color.FgYellow, color.Bold)
	for _, s := range settings(cfg, def) {
		v := fmt.Sprint(s.value)
		d := fmt.Sprint(s.def)
		if v == d {
			fmt.Fprintf(w, "  %-20s %s\n", s.key, v)
			continue
		}
		changed.Fprintf(w, "  %-20s %s", s.key, v)
		fmt.Fprintf(w, " (default %s)\n", d)
	}
}
