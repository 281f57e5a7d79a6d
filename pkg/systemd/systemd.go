// Package systemd wraps sd_notify so the service unit can use
// Type=notify. Outside systemd every call is a silent no-op.
package systemd

import (
	"github.com/coreos/go-systemd/v22/daemon"
)

// NotifyReady tells the service manager startup has finished. It reports
// whether a notification was actually delivered.
func NotifyReady() (bool, error) {
	return daemon.SdNotify(false, daemon.SdNotifyReady)
}

// NotifyStopping tells the service manager shutdown has begun.
func NotifyStopping() (bool, error) {
	return daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// NotifyStatus publishes a free-form status line (shown by systemctl status).
func NotifyStatus(status string) (bool, error) {
	return daemon.SdNotify(false, "STATUS="+status)
}
