/* gandalf - usbmuxd TCP relay daemon
 *
 * systemd readiness/reload/watchdog notification
 */

package main

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// SystemdReady notifies systemd that startup has completed. A no-op
// when not run under systemd
func SystemdReady() {
	daemon.SdNotify(false, daemon.SdNotifyReady)
}

// SystemdReloading notifies systemd that a reload is in progress
func SystemdReloading() {
	daemon.SdNotify(false, daemon.SdNotifyReloading)
}

// SystemdStopping notifies systemd that shutdown has begun
func SystemdStopping() {
	daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// SystemdWatchdog starts a background ticker that pings the systemd
// watchdog at half the configured interval. It returns immediately
// if no watchdog interval is configured. The returned stop function
// must be called to release the ticker
func SystemdWatchdog() (stop func()) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(interval / 2)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
