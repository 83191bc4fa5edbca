package notifier_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/notifier"
	"github.com/breakwater/breakwater/pkg/types"
)

// Notification delivery depends on the desktop environment; these
// tests verify the notifier stays quiet when disabled and never
// panics when enabled.

func TestNotifier_RunLifecycle(t *testing.T) {
	log := logger.CreateLogger("error")

	n := notifier.New(notifier.Config{Enabled: true}, log)

	n.NotifyRunStart("a1b2c3d4e5f6", "update all packages")
	n.NotifyRunSuccess("a1b2c3d4e5f6", 5*time.Second)
	n.NotifyRunFailure("a1b2c3d4e5f6", types.ProcessStatusPartialFailure)
}

func TestNotifier_WaveStatus(t *testing.T) {
	log := logger.CreateLogger("error")

	n := notifier.New(notifier.Config{Enabled: true}, log)

	// Small backlogs stay silent; only a large one notifies.
	n.NotifyWaveStatus(2, 3)
	n.NotifyWaveStatus(4, 12)
}

func TestNotifier_Disabled(t *testing.T) {
	log := logger.CreateLogger("error")

	n := notifier.New(notifier.Config{Enabled: false}, log)

	n.NotifyRunStart("a1b2c3d4e5f6", "anything")
	n.NotifyRunSuccess("a1b2c3d4e5f6", time.Second)
	n.NotifyRunFailure("a1b2c3d4e5f6", types.ProcessStatusFailed)
	n.NotifyWaveStatus(1, 100)
}

func TestNotifier_LongInstructionIsTruncated(t *testing.T) {
	log := logger.CreateLogger("error")

	n := notifier.New(notifier.Config{Enabled: true}, log)

	long := ""
	for i := 0; i < 50; i++ {
		long += "reinstall everything "
	}
	n.NotifyRunStart("a1b2c3d4e5f6", long)
}

func TestNotifier_FailureSound(t *testing.T) {
	log := logger.CreateLogger("error")

	n := notifier.New(notifier.Config{Enabled: true, SoundOnFailure: true}, log)

	n.NotifyRunFailure("a1b2c3d4e5f6", types.ProcessStatusFailed)
}

func TestNotifier_ConcurrentNotifications(t *testing.T) {
	log := logger.CreateLogger("error")

	n := notifier.New(notifier.Config{Enabled: false}, log)

	done := make(chan bool, 5)
	for i := 0; i < 5; i++ {
		go func(idx int) {
			n.NotifyRunSuccess(fmt.Sprintf("run-%d", idx), time.Second)
			done <- true
		}(i)
	}
	for i := 0; i < 5; i++ {
		<-done
	}
}

func BenchmarkNotifier_Disabled(b *testing.B) {
	log := logger.CreateLogger("error")

	n := notifier.New(notifier.Config{Enabled: false}, log)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n.NotifyRunSuccess("bench", time.Second)
	}
}
