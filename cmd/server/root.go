package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/blinkguard/internal/config"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blinkguard",
	Short: "blinkguard - webcam blink monitor with eye-rest overlay",
	Long: `blinkguard watches per-frame eye-blink scores, counts blinks and, while
active, shows a full-screen overlay when no blink has been seen for the quiet
period.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to serve when no subcommand is provided
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file (overrides "+config.FileEnv+")")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads .env, the YAML file and the environment. The --config
// flag wins over BLINK_CONFIG.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		if err := os.Setenv(config.FileEnv, configPath); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

// newLogger builds the process logger from log_format. The level lives in
// lv so a config reload can change it.
func newLogger(cfg *config.Config, lv *slog.LevelVar) *slog.Logger {
	setLevel(cfg, lv)
	opts := &slog.HandlerOptions{Level: lv}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func setLevel(cfg *config.Config, lv *slog.LevelVar) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	lv.Set(level)
}
