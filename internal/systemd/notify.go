// Package systemd reports service state to systemd over sd_notify. Every
// call is a no-op when NOTIFY_SOCKET is unset.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// NotifyReady sends READY=1 once the HTTP listener is up.
func NotifyReady() error {
	return notify(daemon.SdNotifyReady)
}

// NotifyStopping sends STOPPING=1 at the start of shutdown.
func NotifyStopping() error {
	return notify(daemon.SdNotifyStopping)
}

// NotifyStatus sets the free-form status line shown by systemctl status.
func NotifyStatus(format string, args ...any) error {
	return notify("STATUS=" + fmt.Sprintf(format, args...))
}

func notify(state string) error {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		return fmt.Errorf("sd_notify %q: %w", state, err)
	}
	if !sent {
		slog.Debug("sd_notify skipped, not running under systemd", "state", state)
	}
	return nil
}

// Watchdog pings the systemd watchdog at half the configured interval until
// ctx is cancelled. It returns at once when WatchdogSec is not set for the
// unit.
func Watchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("read watchdog interval: %w", err)
	}
	if interval == 0 {
		return nil
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := notify(daemon.SdNotifyWatchdog); err != nil {
				slog.Warn("watchdog ping failed", "error", err)
			}
		}
	}
}
