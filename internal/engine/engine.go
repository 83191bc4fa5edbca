// Package engine turns a single instruction into safely ordered shell
// execution. An instruction is decomposed into steps, the steps are
// layered into dependency waves, each step's trust is resolved against
// the policy gate before launch, and the whole run is tracked and
// persisted as a ProcessRecord.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/breakwater/breakwater/internal/state"
	"github.com/breakwater/breakwater/pkg/interfaces"
	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/runctx"
	"github.com/breakwater/breakwater/pkg/session"
	"github.com/breakwater/breakwater/pkg/store"
	"github.com/breakwater/breakwater/pkg/types"
)

// Breakwater orchestrates one instruction end to end: planning,
// wave construction, execution, history, and notifications.
type Breakwater struct {
	config   *types.BreakwaterConfig
	workDir  string
	stateDir string
	logger   logger.Logger
	planner  interfaces.Planner
	gate     interfaces.TrustGate
	runner   interfaces.CommandRunner
	history  interfaces.HistoryStore
	notifier interfaces.Notifier
	tracker  *Tracker
	state    *state.Manager
	sess     *session.Session
	output   io.Writer

	mu        sync.Mutex
	isRunning bool
}

// New creates an engine instance. Planner, TrustGate, and Runner are
// required; the process store, history store, and notifier may be nil.
// An empty stateDir disables run state files and run logs.
func New(config *types.BreakwaterConfig, workDir string, log logger.Logger, deps interfaces.Dependencies, stateDir string) *Breakwater {
	if log == nil {
		log = logger.CreateLogger("info")
	}
	if config == nil {
		panic("config is required")
	}
	if deps.Planner == nil {
		panic("Planner dependency is required")
	}
	if deps.TrustGate == nil {
		panic("TrustGate dependency is required")
	}
	if deps.Runner == nil {
		panic("Runner dependency is required")
	}

	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to resolve working directory: %v", err))
	} else {
		workDir = absWorkDir
	}

	b := &Breakwater{
		config:   config,
		workDir:  workDir,
		stateDir: stateDir,
		logger:   log,
		planner:  deps.Planner,
		gate:     deps.TrustGate,
		runner:   deps.Runner,
		history:  deps.HistoryStore,
		notifier: deps.Notifier,
		tracker:  NewTracker(deps.ProcessStore, log),
	}
	if stateDir != "" {
		b.state = state.NewManager(store.RunStateDir(stateDir), log)
	}
	return b
}

// AttachSession gives the planner access to shell context (cwd, OS,
// recent commands) when decomposing instructions.
func (b *Breakwater) AttachSession(sess *session.Session) {
	b.sess = sess
}

// SetOutput streams step output to w in addition to the run log.
func (b *Breakwater) SetOutput(w io.Writer) {
	b.output = w
}

// Tracker exposes live run snapshots for progress views.
func (b *Breakwater) Tracker() *Tracker {
	return b.tracker
}

// Plan decomposes an instruction into steps and layers them into
// waves. Nothing executes; the returned plan is ready for preview or
// for ExecutePlan.
func (b *Breakwater) Plan(ctx context.Context, instruction string) (*types.Plan, error) {
	req := types.DecomposeRequest{Instruction: instruction}
	if b.sess != nil {
		b.sess.RefreshCwd()
		req.Context = b.sess.Summary()
	}

	b.logger.Info("Decomposing instruction",
		logger.WithField("provider", b.planner.Name()))

	resp, err := b.planner.Decompose(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("instruction decomposition failed: %w", err)
	}

	steps := plannedToSteps(resp.Steps)
	waves, err := BuildWaves(steps)
	if err != nil {
		return nil, err
	}

	plan := &types.Plan{
		ID:          runctx.GenerateProcessID(),
		Instruction: instruction,
		Provider:    resp.Provider,
		Steps:       steps,
		Waves:       waves,
		CreatedAt:   time.Now(),
	}

	b.logger.Info("Plan ready",
		logger.WithField("process_id", plan.ID),
		logger.WithField("steps", len(plan.Steps)),
		logger.WithField("waves", len(plan.Waves)))

	return plan, nil
}

// plannedToSteps converts planner output to plan steps. When the
// planner leaves every id unset, steps get one-based positional ids so
// dependency references by position keep working.
func plannedToSteps(planned []types.PlannedStep) []*types.Step {
	assignIDs := true
	for _, p := range planned {
		if p.ID != 0 {
			assignIDs = false
			break
		}
	}

	steps := make([]*types.Step, 0, len(planned))
	for i, p := range planned {
		id := p.ID
		if assignIDs {
			id = i + 1
		}
		steps = append(steps, &types.Step{
			ID:          id,
			Command:     p.Command,
			Description: p.Description,
			DependsOn:   append([]int(nil), p.DependsOn...),
			Status:      types.StepStatusPending,
		})
	}
	return steps
}

// Run is the full pipeline: Plan then ExecutePlan.
func (b *Breakwater) Run(ctx context.Context, instruction string) (*types.ProcessRecord, error) {
	plan, err := b.Plan(ctx, instruction)
	if err != nil {
		return nil, err
	}
	return b.ExecutePlan(ctx, plan)
}

// ExecutePlan runs a prepared plan and returns its finalized record.
func (b *Breakwater) ExecutePlan(ctx context.Context, plan *types.Plan) (*types.ProcessRecord, error) {
	b.mu.Lock()
	if b.isRunning {
		b.mu.Unlock()
		return nil, fmt.Errorf("a plan is already executing")
	}
	b.isRunning = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.isRunning = false
		b.mu.Unlock()
	}()

	if plan.ID == "" {
		plan.ID = runctx.GenerateProcessID()
	}
	ctx = runctx.WithOperation(ctx, "execute-plan")

	if b.notifier != nil {
		b.notifier.NotifyRunStart(plan.ID, plan.Instruction)
	}

	if b.state != nil {
		if _, err := b.state.InitializeRun(plan.ID, plan.Instruction, len(plan.Waves), len(plan.Steps)); err != nil {
			b.logger.Warn("Failed to initialize run state",
				logger.WithField("error", err.Error()))
		}
		b.state.StartHeartbeat(ctx)
	}

	logFile := b.openRunLog(plan.ID)
	if logFile != nil {
		defer logFile.Close()
		timestamp := time.Now().Format("2006-01-02 15:04:05")
		fmt.Fprintf(logFile, "\n=== Run %s started at %s ===\n", plan.ID, timestamp)
		fmt.Fprintf(logFile, "Instruction: %s\n", plan.Instruction)
	}

	opts := ExecutorOptions{
		MaxParallel:  b.config.GetMaxParallel(),
		StepTimeout:  b.config.GetStepTimeout(),
		CancelPolicy: b.config.GetCancelPolicy(),
		Cwd:          b.workDir,
	}
	switch {
	case logFile != nil && b.output != nil:
		opts.Output = io.MultiWriter(b.output, logFile)
	case logFile != nil:
		opts.Output = logFile
	case b.output != nil:
		opts.Output = b.output
	}
	if b.state != nil {
		opts.OnWaveDone = func(waveIndex, stepsDone int) {
			if err := b.state.UpdateProgress(plan.ID, waveIndex+1, stepsDone); err != nil {
				b.logger.Debug("Failed to update run progress",
					logger.WithField("error", err.Error()))
			}
		}
	}

	executor := NewExecutor(b.gate, b.runner, b.tracker, b.notifier, b.logger, opts)
	record, err := executor.Execute(ctx, plan)

	if b.state != nil {
		status := types.ProcessStatusFailed
		lastError := ""
		if record != nil {
			status = record.Status
			lastError = firstFailure(record)
		} else if err != nil {
			lastError = err.Error()
		}
		if stateErr := b.state.UpdateStatus(plan.ID, status, lastError); stateErr != nil {
			b.logger.Warn("Failed to update run state",
				logger.WithField("error", stateErr.Error()))
		}
		b.state.Cleanup()
	}

	if err != nil {
		return nil, err
	}

	if logFile != nil {
		fmt.Fprintf(logFile, "=== Run %s finished: %s ===\n", plan.ID, record.Status)
	}

	b.appendHistory(record)
	b.notifyOutcome(record)

	return record, nil
}

// openRunLog opens the per-run log in append mode. Failures are
// logged and the run continues without a log file.
func (b *Breakwater) openRunLog(processID string) *os.File {
	if b.stateDir == "" {
		return nil
	}

	logPath := store.RunLogPath(b.stateDir, processID)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		b.logger.Warn("Failed to create log directory",
			logger.WithField("error", err.Error()))
		return nil
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		b.logger.Warn("Failed to open run log",
			logger.WithField("error", err.Error()))
		return nil
	}
	return logFile
}

// appendHistory records every executed command. History failures are
// logged once and never affect the run's outcome.
func (b *Breakwater) appendHistory(record *types.ProcessRecord) {
	if b.history == nil {
		return
	}

	for _, step := range record.Steps {
		if step.Status != types.StepStatusSucceeded && step.Status != types.StepStatusFailed {
			continue
		}
		success := step.Status == types.StepStatusSucceeded
		entry := types.HistoryEntry{
			Timestamp:   time.Now(),
			Instruction: record.Instruction,
			Command:     step.Command,
			Cwd:         b.workDir,
			Success:     &success,
		}
		if err := b.history.Append(entry); err != nil {
			b.logger.Warn("Failed to append command history",
				logger.WithField("error", err.Error()))
			break
		}
		if b.sess != nil {
			b.sess.Record(step.Command)
		}
	}
}

// notifyOutcome reports the final status. Cancelled runs stay quiet;
// the user was the one who declined.
func (b *Breakwater) notifyOutcome(record *types.ProcessRecord) {
	if b.notifier == nil {
		return
	}

	switch record.Status {
	case types.ProcessStatusSucceeded:
		b.notifier.NotifyRunSuccess(record.ID, record.TotalDuration)
	case types.ProcessStatusFailed, types.ProcessStatusPartialFailure:
		b.notifier.NotifyRunFailure(record.ID, record.Status)
	}
}

// firstFailure summarizes the first failed step for state views.
func firstFailure(record *types.ProcessRecord) string {
	for _, step := range record.Steps {
		if step.Status != types.StepStatusFailed {
			continue
		}
		if step.TimedOut {
			return fmt.Sprintf("step %d timed out", step.ID)
		}
		if step.ExitCode != nil {
			return fmt.Sprintf("step %d exited with code %d", step.ID, *step.ExitCode)
		}
		return fmt.Sprintf("step %d failed", step.ID)
	}
	return ""
}
