package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/blinkguard/internal/blink"
	"github.com/GriffinCanCode/blinkguard/internal/config"
	"github.com/GriffinCanCode/blinkguard/internal/grpcclient"
	"github.com/GriffinCanCode/blinkguard/internal/orchestrator"
	"github.com/GriffinCanCode/blinkguard/internal/server"
	"github.com/GriffinCanCode/blinkguard/internal/systemd"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the blink monitor and its HTTP/WebSocket API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var level slog.LevelVar
	slog.SetDefault(newLogger(cfg, &level))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to the landmark sidecar when configured
	var vision orchestrator.VisionSource
	if cfg.VisionAddr != "" {
		vcfg := grpcclient.DefaultConfig(cfg.VisionAddr)
		vcfg.CameraID = cfg.CameraID
		vcfg.MaxFPS = cfg.VisionMaxFPS
		client, err := grpcclient.New(vcfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		vision = client
	}

	mgr, err := orchestrator.New(cfg, vision, blink.RealScheduler{})
	if err != nil {
		return err
	}
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Stop()

	srv := server.New(mgr)
	srv.Start(ctx)

	if cfg.File != "" {
		go func() {
			err := config.Watch(ctx, cfg.File, func(next *config.Config) {
				setLevel(next, &level)
				if err := mgr.ApplyConfig(next); err != nil {
					slog.Error("apply reloaded config", "error", err)
				}
			})
			if err != nil {
				slog.Error("config watcher stopped", "path", cfg.File, "error", err)
			}
		}()
	}

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("blinkguard starting", "version", version, "session", mgr.SessionID(), "config", cfg.String())
		if err := httpServer.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if err := systemd.NotifyReady(); err != nil {
		slog.Warn("systemd notify failed", "error", err)
	}
	_ = systemd.NotifyStatus("listening on %s", lis.Addr())
	go func() {
		if err := systemd.Watchdog(ctx); err != nil {
			slog.Warn("systemd watchdog disabled", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("http server error", "error", err)
		return err
	}

	slog.Info("shutting down...")
	_ = systemd.NotifyStopping()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("shutdown complete", "blinks", mgr.BlinkCount())
	return nil
}
