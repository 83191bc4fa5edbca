// Package state persists live run state so other processes can tell
// whether a run is still alive and how far along it is.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/types"
)

const (
	heartbeatInterval = 10 * time.Second
	// A heartbeat older than this marks the owning process as dead.
	staleAfter = 30 * time.Second
)

// RunState is the live state file of one plan execution, written
// atomically next to its siblings in the state directory.
type RunState struct {
	ProcessID   string              `json:"processId"`
	Instruction string              `json:"instruction"`
	Status      types.ProcessStatus `json:"status"`
	Pid         int                 `json:"pid"`
	Heartbeat   time.Time           `json:"heartbeat"`
	StartedAt   time.Time           `json:"startedAt"`
	CurrentWave int                 `json:"currentWave"`
	TotalWaves  int                 `json:"totalWaves"`
	StepsDone   int                 `json:"stepsDone"`
	TotalSteps  int                 `json:"totalSteps"`
	LastError   string              `json:"lastError,omitempty"`
}

// Manager handles the run state files of this process and reads those
// of others.
type Manager struct {
	stateDir       string
	logger         logger.Logger
	mu             sync.RWMutex
	runs           map[string]*RunState
	heartbeatStop  chan struct{}
	heartbeatTimer *time.Ticker
}

// NewManager creates a manager rooted at the given state directory.
func NewManager(stateDir string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.CreateLogger("info")
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		log.Error("Failed to create state directory", logger.WithField("error", err))
	}

	return &Manager{
		stateDir: stateDir,
		logger:   log,
		runs:     make(map[string]*RunState),
	}
}

// InitializeRun creates and persists the state file for a new run.
func (m *Manager) InitializeRun(processID, instruction string, totalWaves, totalSteps int) (*RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := &RunState{
		ProcessID:   processID,
		Instruction: instruction,
		Status:      types.ProcessStatusRunning,
		Pid:         os.Getpid(),
		Heartbeat:   time.Now(),
		StartedAt:   time.Now(),
		TotalWaves:  totalWaves,
		TotalSteps:  totalSteps,
	}

	if err := m.saveStateFile(run); err != nil {
		return nil, fmt.Errorf("failed to save initial run state: %w", err)
	}

	m.runs[processID] = run
	return run, nil
}

// ReadRun returns the state of a run, from memory when this process
// owns it, otherwise from disk.
func (m *Manager) ReadRun(processID string) (*RunState, error) {
	m.mu.RLock()
	if run, ok := m.runs[processID]; ok {
		m.mu.RUnlock()
		return run, nil
	}
	m.mu.RUnlock()

	return m.loadStateFile(processID)
}

// UpdateProgress records wave and step progress and refreshes the
// heartbeat.
func (m *Manager) UpdateProgress(processID string, currentWave, stepsDone int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[processID]
	if !ok {
		return fmt.Errorf("run state not found: %s", processID)
	}

	run.CurrentWave = currentWave
	run.StepsDone = stepsDone
	run.Heartbeat = time.Now()
	return m.saveStateFile(run)
}

// UpdateStatus records the run's status. A non-empty lastError is kept
// for post-mortem views.
func (m *Manager) UpdateStatus(processID string, status types.ProcessStatus, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[processID]
	if !ok {
		return fmt.Errorf("run state not found: %s", processID)
	}

	run.Status = status
	if lastError != "" {
		run.LastError = lastError
	}
	run.Heartbeat = time.Now()
	return m.saveStateFile(run)
}

// RemoveRun deletes a run's state file.
func (m *Manager) RemoveRun(processID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.runs, processID)

	stateFile := m.stateFilePath(processID)
	if err := os.Remove(stateFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// IsActive reports whether the run's owning process is still alive.
// Our own runs are always active.
func (m *Manager) IsActive(processID string) (bool, error) {
	run, err := m.ReadRun(processID)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	if run.Pid == os.Getpid() {
		return true, nil
	}
	if run.Pid == 0 {
		return false, nil
	}
	if time.Since(run.Heartbeat) > staleAfter {
		return false, nil
	}

	process, err := os.FindProcess(run.Pid)
	if err != nil {
		return false, nil
	}
	// Signal 0 probes for existence without delivering anything.
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, nil
	}
	return true, nil
}

// DiscoverRuns loads every run state file in the state directory.
func (m *Manager) DiscoverRuns() (map[string]*RunState, error) {
	runs := make(map[string]*RunState)

	files, err := os.ReadDir(m.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return runs, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		processID := file.Name()[:len(file.Name())-5]
		run, err := m.loadStateFile(processID)
		if err != nil {
			m.logger.Warn("Failed to load state file",
				logger.WithField("process_id", processID),
				logger.WithField("error", err))
			continue
		}
		runs[processID] = run
	}

	return runs, nil
}

// StartHeartbeat refreshes the heartbeat of this process's runs every
// ten seconds until the context ends or StopHeartbeat is called.
func (m *Manager) StartHeartbeat(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.heartbeatTimer != nil {
		return
	}

	m.heartbeatStop = make(chan struct{})
	m.heartbeatTimer = time.NewTicker(heartbeatInterval)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.heartbeatStop:
				return
			case <-m.heartbeatTimer.C:
				m.updateHeartbeats()
			}
		}
	}()
}

// StopHeartbeat stops the heartbeat updater.
func (m *Manager) StopHeartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.heartbeatTimer != nil {
		m.heartbeatTimer.Stop()
		m.heartbeatTimer = nil
	}
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
}

// Cleanup releases this process's claim on its runs. The final status
// stays as last written; a zero pid tells readers nothing owns the
// run anymore.
func (m *Manager) Cleanup() error {
	m.StopHeartbeat()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, run := range m.runs {
		run.Pid = 0
		if err := m.saveStateFile(run); err != nil {
			m.logger.Warn("Failed to save final run state",
				logger.WithField("process_id", run.ProcessID),
				logger.WithField("error", err))
		}
	}
	return nil
}

func (m *Manager) stateFilePath(processID string) string {
	return filepath.Join(m.stateDir, processID+".json")
}

func (m *Manager) loadStateFile(processID string) (*RunState, error) {
	data, err := os.ReadFile(m.stateFilePath(processID))
	if err != nil {
		return nil, err
	}

	var run RunState
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &run, nil
}

func (m *Manager) saveStateFile(run *RunState) error {
	stateFile := m.stateFilePath(run.ProcessID)

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	// Write atomically so readers never see a torn file.
	tempFile := stateFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tempFile, stateFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

func (m *Manager) updateHeartbeats() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, run := range m.runs {
		run.Heartbeat = now
		if err := m.saveStateFile(run); err != nil {
			m.logger.Debug("Failed to update heartbeat",
				logger.WithField("process_id", run.ProcessID),
				logger.WithField("error", err))
		}
	}
}
