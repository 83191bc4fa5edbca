package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/breakwater/breakwater/pkg/interfaces"
	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/runctx"
	"github.com/breakwater/breakwater/pkg/store"
	"github.com/breakwater/breakwater/pkg/types"
)

// InvalidTransitionError reports a step status change that the
// lifecycle state machine does not permit.
type InvalidTransitionError struct {
	StepID int
	From   types.StepStatus
	To     types.StepStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("step %d cannot move from %s to %s", e.StepID, e.From, e.To)
}

// Tracker owns the mutable ProcessRecord for each plan execution. All
// mutation goes through OnStepUpdate and Finalize; readers only ever
// see deep copies. Step transitions are monotonic: pending may move to
// running or skipped, running may reach any terminal state, and no
// step leaves a terminal state.
type Tracker struct {
	mu     sync.RWMutex
	runs   map[string]*trackedRun
	store  interfaces.ProcessStore
	logger logger.Logger
}

type trackedRun struct {
	record    *types.ProcessRecord
	finalized bool
}

// NewTracker creates a tracker. The process store may be nil, in which
// case finalized records are kept in memory only.
func NewTracker(processStore interfaces.ProcessStore, log logger.Logger) *Tracker {
	if log == nil {
		log = logger.CreateLogger("info")
	}
	return &Tracker{
		runs:   make(map[string]*trackedRun),
		store:  processStore,
		logger: log,
	}
}

// Begin registers a plan for tracking and returns a snapshot of its
// fresh record. Every step starts out pending.
func (t *Tracker) Begin(plan *types.Plan) *types.ProcessRecord {
	id := plan.ID
	if id == "" {
		id = runctx.GenerateProcessID()
	}

	record := &types.ProcessRecord{
		ID:          id,
		Instruction: plan.Instruction,
		Provider:    plan.Provider,
		Status:      types.ProcessStatusRunning,
		Steps:       make([]*types.Step, len(plan.Steps)),
		Waves:       make([]types.WaveResult, len(plan.Waves)),
		CreatedAt:   time.Now(),
	}
	for i, s := range plan.Steps {
		c := s.Clone()
		c.Status = types.StepStatusPending
		record.Steps[i] = c
	}
	for i, w := range plan.Waves {
		record.Waves[i] = types.WaveResult{
			Index:   w.Index,
			StepIDs: append([]int(nil), w.StepIDs...),
		}
	}

	t.mu.Lock()
	t.runs[record.ID] = &trackedRun{record: record}
	t.mu.Unlock()

	t.logger.Debug("Tracking process",
		logger.WithField("process_id", record.ID),
		logger.WithField("steps", len(record.Steps)),
		logger.WithField("waves", len(record.Waves)))

	return record.Clone()
}

// OnStepUpdate applies one step transition and merges the update's
// execution details into the step.
func (t *Tracker) OnStepUpdate(processID string, stepID int, update types.StepUpdate) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.runs[processID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrProcessNotFound, processID)
	}
	if run.finalized {
		return fmt.Errorf("process %s is already finalized", processID)
	}

	step := run.record.StepByID(stepID)
	if step == nil {
		return fmt.Errorf("step %d not found in process %s", stepID, processID)
	}
	if !validTransition(step.Status, update.Status) {
		return &InvalidTransitionError{StepID: stepID, From: step.Status, To: update.Status}
	}

	step.Status = update.Status
	if update.ExitCode != nil {
		step.ExitCode = update.ExitCode
	}
	if update.Stdout != "" {
		step.Stdout = update.Stdout
	}
	if update.Stderr != "" {
		step.Stderr = update.Stderr
	}
	if update.TimedOut {
		step.TimedOut = true
	}
	if update.StartedAt != nil {
		step.StartedAt = update.StartedAt
	}
	if update.FinishedAt != nil {
		step.FinishedAt = update.FinishedAt
	}
	if update.Duration > 0 {
		step.Duration = update.Duration
	}
	return nil
}

func validTransition(from, to types.StepStatus) bool {
	switch from {
	case types.StepStatusPending:
		return to == types.StepStatusRunning || to == types.StepStatusSkipped
	case types.StepStatusRunning:
		return to.IsTerminal()
	default:
		return false
	}
}

// Snapshot returns a deep copy of the record, usable mid-run for live
// progress views.
func (t *Tracker) Snapshot(processID string) (*types.ProcessRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	run, ok := t.runs[processID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrProcessNotFound, processID)
	}
	return run.record.Clone(), nil
}

// Finalize seals the record: remaining non-terminal steps become
// skipped, wave timing and the overall status are derived, and the
// record is handed to the process store exactly once. A second call
// returns the already-finalized record unchanged.
func (t *Tracker) Finalize(processID string) (*types.ProcessRecord, error) {
	t.mu.Lock()
	run, ok := t.runs[processID]
	if !ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", store.ErrProcessNotFound, processID)
	}
	if run.finalized {
		snapshot := run.record.Clone()
		t.mu.Unlock()
		return snapshot, nil
	}

	record := run.record
	for _, step := range record.Steps {
		if !step.Status.IsTerminal() {
			step.Status = types.StepStatusSkipped
		}
	}
	for i := range record.Waves {
		record.Waves[i] = waveTiming(record, record.Waves[i])
	}
	record.Status = deriveStatus(record)
	now := time.Now()
	record.FinishedAt = &now
	record.TotalDuration = now.Sub(record.CreatedAt)
	run.finalized = true

	snapshot := record.Clone()
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.Append(snapshot); err != nil {
			// Persistence failures never roll back the in-memory result.
			t.logger.Error("Failed to persist process record",
				logger.WithField("process_id", processID),
				logger.WithField("error", err.Error()))
		}
	}

	t.logger.Debug("Finalized process",
		logger.WithField("process_id", processID),
		logger.WithField("status", string(snapshot.Status)))

	return snapshot, nil
}

// waveTiming spans the earliest start to the latest finish over the
// wave's steps that actually ran. Skipped steps carry no timestamps
// and are ignored.
func waveTiming(record *types.ProcessRecord, wave types.WaveResult) types.WaveResult {
	var started, finished *time.Time
	for _, id := range wave.StepIDs {
		step := record.StepByID(id)
		if step == nil || step.StartedAt == nil {
			continue
		}
		if started == nil || step.StartedAt.Before(*started) {
			started = step.StartedAt
		}
		if step.FinishedAt != nil && (finished == nil || step.FinishedAt.After(*finished)) {
			finished = step.FinishedAt
		}
	}
	wave.StartedAt = started
	wave.FinishedAt = finished
	if started != nil && finished != nil {
		wave.Duration = finished.Sub(*started)
	}
	return wave
}

func deriveStatus(record *types.ProcessRecord) types.ProcessStatus {
	counts := record.CountByStatus()
	succeeded := counts[types.StepStatusSucceeded]
	failed := counts[types.StepStatusFailed]
	skipped := counts[types.StepStatusSkipped]

	switch {
	case failed == 0 && skipped == 0:
		return types.ProcessStatusSucceeded
	case succeeded == 0 && failed == 0:
		return types.ProcessStatusCancelled
	case succeeded > 0:
		return types.ProcessStatusPartialFailure
	default:
		return types.ProcessStatusFailed
	}
}
