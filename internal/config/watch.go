package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
)

// ReloadDebounce coalesces the burst of events one save produces.
const ReloadDebounce = 100 * time.Millisecond

// Watch reloads the config whenever the YAML file at path changes and passes
// the result to onChange. It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file, so saves that rename
// a temp file over path keep reloading. An empty file is a save caught
// between truncate and write; it is skipped like a file that fails to parse
// or validate, and the previous config stays in effect.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "create config watcher")
	}
	defer watcher.Close()

	dir, name := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidConfig, "watch config directory").WithMetadata("path", path)
	}
	log := slog.With("path", path)
	log.Info("watching config file", "dir", dir)

	pending := time.NewTimer(ReloadDebounce)
	pending.Stop()
	defer pending.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending.Reset(ReloadDebounce)
			}

		case <-pending.C:
			cfg, err := reload(path)
			if err != nil {
				log.Warn("config reload skipped, keeping previous", "error", err)
				continue
			}
			log.Info("config reloaded", "config", cfg.String())
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("config watcher error", "error", err)
		}
	}
}

func reload(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidConfig, "read config file").WithMetadata("path", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidConfig, "config file is empty").WithMetadata("path", path)
	}
	return LoadFrom(path)
}
