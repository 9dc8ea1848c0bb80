package systemd

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/b0bbywan/go-odio-nowplaying/config"
	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

// Notifier reports the service state to systemd (Type=notify units) and
// keeps the watchdog fed when WatchdogSec is set.
type Notifier struct {
	enabled bool

	// swapped in tests
	sdNotify   func(unsetEnvironment bool, state string) (bool, error)
	sdWatchdog func(unsetEnvironment bool) (time.Duration, error)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a notifier. With notifications disabled every call is a no-op.
func New(cfg *config.SystemdConfig) *Notifier {
	return &Notifier{
		enabled:    cfg != nil && cfg.Notify,
		sdNotify:   daemon.SdNotify,
		sdWatchdog: daemon.SdWatchdogEnabled,
	}
}

func (n *Notifier) send(state string) bool {
	if !n.enabled {
		return false
	}
	sent, err := n.sdNotify(false, state)
	if err != nil {
		logger.Warn("[systemd] sd_notify %s failed: %v", state, err)
		return false
	}
	if !sent {
		logger.Debug("[systemd] NOTIFY_SOCKET not set, %s not sent", state)
	}
	return sent
}

// Ready signals that startup is complete.
func (n *Notifier) Ready() bool {
	return n.send(daemon.SdNotifyReady)
}

// Stopping signals that shutdown has begun.
func (n *Notifier) Stopping() bool {
	return n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(status string) bool {
	return n.send("STATUS=" + status)
}

// StartWatchdog pings the watchdog at half its timeout until ctx is done or
// Close is called. It does nothing when the unit has no watchdog.
func (n *Notifier) StartWatchdog(ctx context.Context) {
	if !n.enabled {
		return
	}
	interval, err := n.sdWatchdog(false)
	if err != nil {
		logger.Warn("[systemd] watchdog check failed: %v", err)
		return
	}
	if interval <= 0 {
		return
	}

	ctx, n.cancel = context.WithCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.send(daemon.SdNotifyWatchdog)
			}
		}
	}()
	logger.Info("[systemd] watchdog enabled, pinging every %v", interval/2)
}

func (n *Notifier) Close() {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
}
