// Package notifier sends desktop notifications for run outcomes.
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/types"
)

// RunNotifier reports run lifecycle events through the desktop
// notification service. Delivery failures are logged and swallowed; a
// missing notification never affects a run.
type RunNotifier struct {
	enabled        bool
	soundOnFailure bool
	logger         logger.Logger
}

// Config represents notification preferences.
type Config struct {
	Enabled        bool
	SoundOnFailure bool
}

// New creates a run notifier.
func New(config Config, log logger.Logger) *RunNotifier {
	if log == nil {
		log = logger.CreateLogger("info")
	}
	return &RunNotifier{
		enabled:        config.Enabled,
		soundOnFailure: config.SoundOnFailure,
		logger:         log,
	}
}

// NotifyRunStart announces that a run began.
func (n *RunNotifier) NotifyRunStart(processID string, instruction string) {
	if !n.enabled {
		return
	}

	title := "🌊 Breakwater"
	message := fmt.Sprintf("Running: %s", truncate(instruction, 80))

	n.send(title, message, false)
}

// NotifyRunSuccess announces a fully successful run.
func (n *RunNotifier) NotifyRunSuccess(processID string, duration time.Duration) {
	if !n.enabled {
		return
	}

	title := "✅ Run Succeeded"
	message := fmt.Sprintf("Run %s finished in %s", processID, formatDuration(duration))

	n.send(title, message, false)
}

// NotifyRunFailure announces a failed or partially failed run.
func (n *RunNotifier) NotifyRunFailure(processID string, status types.ProcessStatus) {
	if !n.enabled {
		return
	}

	title := "❌ Run Failed"
	message := fmt.Sprintf("Run %s ended: %s", processID, status)

	n.send(title, message, n.soundOnFailure)
}

// NotifyWaveStatus reports wave progress. Only a significant backlog
// is worth a notification.
func (n *RunNotifier) NotifyWaveStatus(running int, pending int) {
	if !n.enabled {
		return
	}
	if pending <= 5 {
		return
	}

	title := "⏳ Run In Progress"
	message := fmt.Sprintf("%d running, %d pending", running, pending)

	n.send(title, message, false)
}

func (n *RunNotifier) send(title, message string, playSound bool) {
	if err := beeep.Notify(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}

	if playSound {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
