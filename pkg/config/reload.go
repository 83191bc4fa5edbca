// Hot-reload support: watches a file on disk and tells interested
// parties when it changes. Used for the config file and for the
// permanent allow-list log, which other sessions append to.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/breakwater/breakwater/pkg/logger"
)

// ReloadEventType represents the type of reload event
type ReloadEventType string

const (
	ReloadEventTypeModified ReloadEventType = "modified"
	ReloadEventTypeCreated  ReloadEventType = "created"
	ReloadEventTypeRemoved  ReloadEventType = "removed"
	ReloadEventTypeError    ReloadEventType = "error"
)

// ReloadEvent describes one observed change of the watched file.
type ReloadEvent struct {
	Path      string          `json:"path"`
	Timestamp time.Time       `json:"timestamp"`
	EventType ReloadEventType `json:"eventType"`
	Err       error           `json:"-"`
}

// ReloadCallback is called after a debounced file change.
type ReloadCallback func(ReloadEvent)

// ReloadManager watches one file for changes. Events are debounced so
// editors that write several times in a row trigger a single reload.
type ReloadManager struct {
	path           string
	logger         logger.Logger
	watcher        *fsnotify.Watcher
	callbacks      []ReloadCallback
	lastModTime    time.Time
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	isWatching     bool
}

// NewReloadManager creates a reload manager for the given file.
func NewReloadManager(path string, log logger.Logger) *ReloadManager {
	if log == nil {
		log = logger.CreateLogger("info")
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &ReloadManager{
		path:           path,
		logger:         log,
		debouncePeriod: 500 * time.Millisecond,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// AddCallback adds a reload callback
func (rm *ReloadManager) AddCallback(callback ReloadCallback) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.callbacks = append(rm.callbacks, callback)
}

// StartWatching begins watching the file for changes
func (rm *ReloadManager) StartWatching() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isWatching {
		return fmt.Errorf("already watching %s", rm.path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	rm.watcher = watcher

	// Watch the directory; the file itself may be replaced by renames.
	dir := filepath.Dir(rm.path)
	if err := rm.watcher.Add(dir); err != nil {
		rm.watcher.Close()
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	if stat, err := os.Stat(rm.path); err == nil {
		rm.lastModTime = stat.ModTime()
	}

	rm.isWatching = true
	go rm.watchLoop()

	rm.logger.Debug("Started watching file",
		logger.WithField("path", rm.path))
	return nil
}

// StopWatching stops watching the file
func (rm *ReloadManager) StopWatching() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !rm.isWatching {
		return nil
	}

	rm.cancel()

	if rm.debounceTimer != nil {
		rm.debounceTimer.Stop()
		rm.debounceTimer = nil
	}

	if rm.watcher != nil {
		if err := rm.watcher.Close(); err != nil {
			rm.logger.Warn("Error closing file watcher", logger.WithField("error", err))
		}
		rm.watcher = nil
	}

	rm.isWatching = false

	rm.logger.Debug("Stopped watching file")
	return nil
}

// IsWatching returns whether the manager is currently watching
func (rm *ReloadManager) IsWatching() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.isWatching
}

// TriggerReload manually fires the callbacks.
func (rm *ReloadManager) TriggerReload() {
	rm.logger.Debug("Manually triggering reload")
	rm.handleChange(ReloadEventTypeModified, true)
}

// SetDebouncePeriod sets the debounce period for file change events
func (rm *ReloadManager) SetDebouncePeriod(period time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.debouncePeriod = period
}

// Path returns the watched file path.
func (rm *ReloadManager) Path() string {
	return rm.path
}

func (rm *ReloadManager) watchLoop() {
	defer func() {
		if r := recover(); r != nil {
			rm.logger.Error("File watcher panic recovered",
				logger.WithField("panic", r))
		}
	}()

	for {
		select {
		case <-rm.ctx.Done():
			return

		case event, ok := <-rm.watcher.Events:
			if !ok {
				return
			}
			if !rm.isWatchedFileEvent(event.Name) {
				continue
			}

			rm.logger.Debug("File event received",
				logger.WithField("event", event.String()))
			rm.debounceReload(rm.mapFsnotifyEvent(event.Op))

		case err, ok := <-rm.watcher.Errors:
			if !ok {
				return
			}

			rm.logger.Error("File watcher error",
				logger.WithField("error", err))
			rm.notifyCallbacks(ReloadEvent{
				Path:      rm.path,
				Timestamp: time.Now(),
				EventType: ReloadEventTypeError,
				Err:       err,
			})
		}
	}
}

func (rm *ReloadManager) isWatchedFileEvent(eventPath string) bool {
	fileName := filepath.Base(rm.path)
	eventFileName := filepath.Base(eventPath)

	if eventFileName == fileName {
		return true
	}

	// Editors write through temporary files next to the target.
	return strings.HasPrefix(eventFileName, fileName) ||
		strings.HasSuffix(eventFileName, ".tmp") &&
			strings.Contains(eventFileName, fileName)
}

func (rm *ReloadManager) mapFsnotifyEvent(op fsnotify.Op) ReloadEventType {
	switch {
	case op&fsnotify.Write == fsnotify.Write:
		return ReloadEventTypeModified
	case op&fsnotify.Create == fsnotify.Create:
		return ReloadEventTypeCreated
	case op&fsnotify.Remove == fsnotify.Remove:
		return ReloadEventTypeRemoved
	default:
		return ReloadEventTypeModified
	}
}

func (rm *ReloadManager) debounceReload(eventType ReloadEventType) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.debounceTimer != nil {
		rm.debounceTimer.Stop()
	}
	rm.debounceTimer = time.AfterFunc(rm.debouncePeriod, func() {
		rm.handleChange(eventType, false)
	})
}

func (rm *ReloadManager) handleChange(eventType ReloadEventType, force bool) {
	if eventType == ReloadEventTypeRemoved {
		rm.notifyCallbacks(ReloadEvent{
			Path:      rm.path,
			Timestamp: time.Now(),
			EventType: eventType,
			Err:       fmt.Errorf("watched file was removed: %s", rm.path),
		})
		return
	}

	stat, err := os.Stat(rm.path)
	if err != nil {
		rm.logger.Error("Failed to stat watched file",
			logger.WithField("error", err))
		rm.notifyCallbacks(ReloadEvent{
			Path:      rm.path,
			Timestamp: time.Now(),
			EventType: ReloadEventTypeError,
			Err:       err,
		})
		return
	}

	rm.mu.Lock()
	if !force && !stat.ModTime().After(rm.lastModTime) {
		rm.mu.Unlock()
		rm.logger.Debug("File not modified, skipping reload")
		return
	}
	rm.lastModTime = stat.ModTime()
	rm.mu.Unlock()

	rm.notifyCallbacks(ReloadEvent{
		Path:      rm.path,
		Timestamp: time.Now(),
		EventType: eventType,
	})
}

func (rm *ReloadManager) notifyCallbacks(event ReloadEvent) {
	rm.mu.RLock()
	callbacks := make([]ReloadCallback, len(rm.callbacks))
	copy(callbacks, rm.callbacks)
	rm.mu.RUnlock()

	rm.logger.Debug("Notifying reload callbacks",
		logger.WithField("callbackCount", len(callbacks)),
		logger.WithField("eventType", event.EventType))

	for _, callback := range callbacks {
		go func(cb ReloadCallback) {
			defer func() {
				if r := recover(); r != nil {
					rm.logger.Error("Reload callback panic recovered",
						logger.WithField("panic", r))
				}
			}()
			cb(event)
		}(callback)
	}
}
