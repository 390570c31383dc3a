// Package systemd 提供 systemd 服务通知功能
package systemd

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages. The zero value talks to NOTIFY_SOCKET.
type Notifier struct {
	// notify is daemon.SdNotify unless replaced in tests.
	notify func(unsetEnvironment bool, state string) (bool, error)
	// watchdog is daemon.SdWatchdogEnabled unless replaced in tests.
	watchdog func(unsetEnvironment bool) (time.Duration, error)
}

func (n *Notifier) send(state string) bool {
	notify := n.notify
	if notify == nil {
		notify = daemon.SdNotify
	}
	sent, err := notify(false, state)
	if err != nil {
		slog.Warn("sd_notify failed", "state", state, "error", err)
		return false
	}
	return sent
}

// Ready 通知 systemd 服务已就绪；未在 systemd 下运行时返回 false
func (n *Notifier) Ready() bool { return n.send(daemon.SdNotifyReady) }

// Stopping 通知 systemd 服务正在停止
func (n *Notifier) Stopping() bool { return n.send(daemon.SdNotifyStopping) }

// Status 更新 systemctl status 中显示的状态文本
func (n *Notifier) Status(text string) bool { return n.send("STATUS=" + text) }

// Watchdog 在启用 WatchdogSec 时按一半间隔发送心跳，直到 ctx 结束
func (n *Notifier) Watchdog(ctx context.Context) {
	enabled := n.watchdog
	if enabled == nil {
		enabled = daemon.SdWatchdogEnabled
	}
	interval, err := enabled(false)
	if err != nil || interval <= 0 {
		return
	}
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
}
