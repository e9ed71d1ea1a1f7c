package cli

import (
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// serviceNotifier reports run state to systemd when started under a
// Type=notify unit. Outside systemd every call is a no-op.
type serviceNotifier struct {
	logger   *slog.Logger
	watchdog time.Duration
	lastPing time.Time
	now      func() time.Time
}

func newServiceNotifier(logger *slog.Logger) *serviceNotifier {
	n := &serviceNotifier{logger: logger, now: time.Now}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("invalid systemd watchdog settings", "error", err)
	}
	n.watchdog = interval
	return n
}

func (n *serviceNotifier) ready() {
	n.send(daemon.SdNotifyReady)
	n.lastPing = n.now()
}

func (n *serviceNotifier) stopping() {
	n.send(daemon.SdNotifyStopping)
}

// pulse pings the watchdog at most twice per watchdog interval. Commits
// are the liveness signal: a driver stuck in a commit stops pinging.
func (n *serviceNotifier) pulse() {
	if n.watchdog <= 0 {
		return
	}
	now := n.now()
	if now.Sub(n.lastPing) < n.watchdog/2 {
		return
	}
	n.send(daemon.SdNotifyWatchdog)
	n.lastPing = now
}

func (n *serviceNotifier) send(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("systemd notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("systemd notified", "state", state)
	}
}
