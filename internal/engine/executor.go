package engine

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/breakwater/breakwater/pkg/interfaces"
	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/runctx"
	"github.com/breakwater/breakwater/pkg/shell"
	"github.com/breakwater/breakwater/pkg/types"
)

// DefaultMaxParallel caps how many steps of one wave run at a time.
const DefaultMaxParallel = 4

// ExecutorOptions tune one executor instance.
type ExecutorOptions struct {
	// MaxParallel bounds concurrent steps within a wave; <=0 uses the default.
	MaxParallel int
	// StepTimeout forces a running step to failed with TimedOut set; zero
	// means no limit.
	StepTimeout time.Duration
	// CancelPolicy decides what happens to running siblings when a step
	// in the same wave fails.
	CancelPolicy types.CancelPolicy
	// Cwd is the working directory for every step.
	Cwd string
	// Output receives a live copy of all step output, typically the run log.
	Output io.Writer
	// OnWaveDone, when set, observes progress after each wave drains.
	OnWaveDone func(waveIndex, stepsDone int)
}

// Executor walks a plan's waves strictly in order. Trust is resolved
// for every step of a wave before any of them launches; approved steps
// then run concurrently up to MaxParallel. A failed step halts the
// plan after its wave drains, and every step of a later wave is marked
// skipped without touching the shell.
type Executor struct {
	gate     interfaces.TrustGate
	runner   interfaces.CommandRunner
	tracker  *Tracker
	notifier interfaces.Notifier
	logger   logger.Logger
	opts     ExecutorOptions
}

// NewExecutor wires an executor from its collaborators. The notifier
// may be nil.
func NewExecutor(gate interfaces.TrustGate, runner interfaces.CommandRunner, tracker *Tracker, notifier interfaces.Notifier, log logger.Logger, opts ExecutorOptions) *Executor {
	if log == nil {
		log = logger.CreateLogger("info")
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.CancelPolicy == "" {
		opts.CancelPolicy = types.CancelPolicyFinishRunning
	}
	return &Executor{
		gate:     gate,
		runner:   runner,
		tracker:  tracker,
		notifier: notifier,
		logger:   log,
		opts:     opts,
	}
}

// Execute runs the plan and returns its finalized record. The record
// is always produced; step failures and cancelled prompts surface as
// statuses, not errors.
func (e *Executor) Execute(ctx context.Context, plan *types.Plan) (*types.ProcessRecord, error) {
	record := e.tracker.Begin(plan)
	processID := record.ID
	ctx = runctx.WithProcessID(ctx, processID)

	e.logger.Info("Executing plan",
		logger.WithField("process_id", processID),
		logger.WithField("steps", len(plan.Steps)),
		logger.WithField("waves", len(plan.Waves)))

	halted := false
	stepsDone := 0
	for _, wave := range plan.Waves {
		if halted || ctx.Err() != nil {
			e.skipWave(processID, wave)
			continue
		}

		approved := e.resolveTrust(ctx, plan, wave, processID)
		if e.notifier != nil {
			e.notifier.NotifyWaveStatus(len(approved), e.pendingAfter(plan, wave.Index))
		}

		failed := e.runWave(ctx, wave, approved, processID)
		stepsDone += len(wave.StepIDs)
		if e.opts.OnWaveDone != nil {
			e.opts.OnWaveDone(wave.Index, stepsDone)
		}

		if failed {
			e.logger.Warn("Wave failed, halting plan",
				logger.WithField("process_id", processID),
				logger.WithField("wave", wave.Index))
			halted = true
			continue
		}

		e.logger.Success("Wave completed",
			logger.WithField("process_id", processID),
			logger.WithField("wave", wave.Index))
	}

	return e.tracker.Finalize(processID)
}

// resolveTrust classifies and authorizes every step of the wave in
// declaration order, before anything launches. Prompting is inherently
// serial. A declined or failed resolution marks the step skipped; a
// resolution error never aborts the plan.
func (e *Executor) resolveTrust(ctx context.Context, plan *types.Plan, wave types.Wave, processID string) []*types.Step {
	approved := make([]*types.Step, 0, len(wave.StepIDs))
	for i, id := range wave.StepIDs {
		step := plan.StepByID(id)
		if step == nil {
			continue
		}
		if ctx.Err() != nil {
			e.markSkipped(processID, id)
			continue
		}

		tier, warnings := e.gate.Classify(step.Command)
		ok, err := e.gate.Authorize(ctx, types.PromptRequest{
			Command:   step.Command,
			Tier:      tier,
			Warnings:  warnings,
			WaveIndex: wave.Index,
			StepIndex: i,
		})
		if err != nil {
			e.logger.Warn("Trust resolution failed, skipping step",
				logger.WithField("process_id", processID),
				logger.WithField("step_id", id),
				logger.WithField("error", err.Error()))
			ok = false
		}
		if !ok {
			e.logger.Info("Step declined",
				logger.WithField("process_id", processID),
				logger.WithField("step_id", id),
				logger.WithField("tier", string(tier)))
			e.markSkipped(processID, id)
			continue
		}
		approved = append(approved, step)
	}
	return approved
}

// runWave launches the approved steps concurrently and waits for all
// of them. Returns true when at least one step failed. Under the
// cancel-wave policy a failure also cancels still-running siblings;
// under finish-running they drain normally.
func (e *Executor) runWave(ctx context.Context, wave types.Wave, steps []*types.Step, processID string) bool {
	if len(steps) == 0 {
		return false
	}

	waveCtx := ctx
	var cancelWave context.CancelFunc
	if e.opts.CancelPolicy == types.CancelPolicyCancelWave {
		waveCtx, cancelWave = context.WithCancel(ctx)
		defer cancelWave()
	}

	group, groupCtx := NewSafeGroup(waveCtx, e.logger)
	group.SetLimit(e.opts.MaxParallel)

	var failed atomic.Bool
	for _, step := range steps {
		group.Go(func() error {
			if groupCtx.Err() != nil {
				e.markSkipped(processID, step.ID)
				return nil
			}
			if !e.runStep(groupCtx, step, wave.Index, processID) {
				failed.Store(true)
				if cancelWave != nil {
					cancelWave()
				}
			}
			// Step failures are reported through the tracker; returning
			// an error here would cancel siblings under finish-running.
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		e.logger.Error("Wave aborted",
			logger.WithField("process_id", processID),
			logger.WithField("wave", wave.Index),
			logger.WithField("error", err.Error()))
		failed.Store(true)
	}
	return failed.Load()
}

// runStep executes one approved step and streams its transitions to
// the tracker. Returns true when the step succeeded.
func (e *Executor) runStep(ctx context.Context, step *types.Step, waveIndex int, processID string) bool {
	ctx = runctx.WithStepID(ctx, step.ID)
	start := time.Now()

	if err := e.tracker.OnStepUpdate(processID, step.ID, types.StepUpdate{
		Status:    types.StepStatusRunning,
		StartedAt: &start,
	}); err != nil {
		e.logger.Error("Step transition rejected",
			logger.WithField("process_id", processID),
			logger.WithField("step_id", step.ID),
			logger.WithField("error", err.Error()))
		return false
	}

	e.logger.Info("Running step",
		logger.WithField("process_id", processID),
		logger.WithField("step_id", step.ID),
		logger.WithField("wave", waveIndex),
		logger.WithField("command", step.Command))

	result, err := e.runner.Run(ctx, step.Command, shell.Options{
		Cwd:     e.opts.Cwd,
		Timeout: e.opts.StepTimeout,
		Stdout:  e.opts.Output,
		Stderr:  e.opts.Output,
	})

	finish := time.Now()
	update := types.StepUpdate{
		FinishedAt: &finish,
		Duration:   finish.Sub(start),
	}
	switch {
	case err != nil:
		code := -1
		update.Status = types.StepStatusFailed
		update.ExitCode = &code
		update.Stderr = err.Error()
	default:
		code := result.ExitCode
		update.ExitCode = &code
		update.Stdout = result.Stdout
		update.Stderr = result.Stderr
		update.TimedOut = result.TimedOut
		if result.ExitCode == 0 && !result.TimedOut {
			update.Status = types.StepStatusSucceeded
		} else {
			update.Status = types.StepStatusFailed
		}
	}

	if err := e.tracker.OnStepUpdate(processID, step.ID, update); err != nil {
		e.logger.Error("Step transition rejected",
			logger.WithField("process_id", processID),
			logger.WithField("step_id", step.ID),
			logger.WithField("error", err.Error()))
		return false
	}

	if update.Status == types.StepStatusSucceeded {
		e.logger.Success("Step succeeded",
			logger.WithField("process_id", processID),
			logger.WithField("step_id", step.ID),
			logger.WithField("duration", update.Duration.String()))
		return true
	}

	fields := []logger.Field{
		logger.WithField("process_id", processID),
		logger.WithField("step_id", step.ID),
	}
	if update.ExitCode != nil {
		fields = append(fields, logger.WithField("exit_code", *update.ExitCode))
	}
	if update.TimedOut {
		fields = append(fields, logger.WithField("timed_out", true))
	}
	e.logger.Error("Step failed", fields...)
	return false
}

// skipWave marks every step of a not-started wave as skipped.
func (e *Executor) skipWave(processID string, wave types.Wave) {
	for _, id := range wave.StepIDs {
		e.markSkipped(processID, id)
	}
}

func (e *Executor) markSkipped(processID string, stepID int) {
	if err := e.tracker.OnStepUpdate(processID, stepID, types.StepUpdate{
		Status: types.StepStatusSkipped,
	}); err != nil {
		e.logger.Debug("Skip transition rejected",
			logger.WithField("process_id", processID),
			logger.WithField("step_id", stepID),
			logger.WithField("error", err.Error()))
	}
}

// pendingAfter counts the steps declared in waves past the given index.
func (e *Executor) pendingAfter(plan *types.Plan, waveIndex int) int {
	pending := 0
	for _, w := range plan.Waves {
		if w.Index > waveIndex {
			pending += len(w.StepIDs)
		}
	}
	return pending
}
