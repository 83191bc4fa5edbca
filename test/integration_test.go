//go:build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/breakwater/breakwater/internal/engine"
	"github.com/breakwater/breakwater/internal/state"
	"github.com/breakwater/breakwater/pkg/interfaces"
	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/planner"
	"github.com/breakwater/breakwater/pkg/prompt"
	"github.com/breakwater/breakwater/pkg/store"
	"github.com/breakwater/breakwater/pkg/types"
)

// newEngine builds a fully wired engine over real shell execution,
// with prompts resolved automatically so tests never block.
func newEngine(t *testing.T, cfg *types.BreakwaterConfig, planPath string, decision types.PromptDecision) (*engine.Breakwater, string, string) {
	t.Helper()

	stateDir := t.TempDir()
	workDir := t.TempDir()

	if err := store.EnsureLayout(stateDir); err != nil {
		t.Fatalf("failed to prepare layout: %v", err)
	}

	log := logger.CreateLogger("error")
	factory := engine.NewDependencyFactory(stateDir, log, cfg)
	deps := factory.CreateWithOverrides(interfaces.Dependencies{
		Planner:  planner.NewFilePlanner(planPath),
		Prompter: prompt.NewAutoResolver(decision),
	})

	return engine.New(cfg, workDir, log, deps, stateDir), stateDir, workDir
}

func writePlan(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write plan: %v", err)
	}
	return path
}

func TestEndToEndRun(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	planPath := writePlan(t, `
instruction: stitch two files together
steps:
  - id: 1
    cmd: echo alpha > a.txt
  - id: 2
    cmd: echo beta > b.txt
  - id: 3
    cmd: cat a.txt b.txt > both.txt
    needs: [1, 2]
`)

	cfg := &types.BreakwaterConfig{}
	b, stateDir, workDir := newEngine(t, cfg, planPath, types.DecisionRunOnce)

	record, err := b.Run(context.Background(), "stitch two files together")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if record.Status != types.ProcessStatusSucceeded {
		t.Fatalf("expected succeeded, got %s", record.Status)
	}

	// Step 3 ran after both wave-1 steps, so it saw their files.
	data, err := os.ReadFile(filepath.Join(workDir, "both.txt"))
	if err != nil {
		t.Fatalf("dependent step output missing: %v", err)
	}
	if string(data) != "alpha\nbeta\n" {
		t.Errorf("unexpected combined output: %q", string(data))
	}

	// The finished run is in the process log.
	stored, err := store.NewProcessLog(store.ProcessesPath(stateDir)).Get(record.ID)
	if err != nil {
		t.Fatalf("run not found in process log: %v", err)
	}
	if stored.Status != types.ProcessStatusSucceeded {
		t.Errorf("stored status %s does not match", stored.Status)
	}

	// Every executed command landed in history.
	entries, err := store.NewHistoryLog(store.HistoryPath(stateDir)).List(10)
	if err != nil {
		t.Fatalf("failed to read history: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 history entries, got %d", len(entries))
	}

	// The run log carries the banner and outcome.
	logData, err := os.ReadFile(store.RunLogPath(stateDir, record.ID))
	if err != nil {
		t.Fatalf("run log missing: %v", err)
	}
	if !strings.Contains(string(logData), "finished: succeeded") {
		t.Errorf("run log lacks outcome: %q", string(logData))
	}

	// The state file survives with terminal status and a released pid.
	run, err := state.NewManager(store.RunStateDir(stateDir), nil).ReadRun(record.ID)
	if err != nil {
		t.Fatalf("state file missing: %v", err)
	}
	if run.Status != types.ProcessStatusSucceeded {
		t.Errorf("state status %s does not match", run.Status)
	}
	if run.Pid != 0 {
		t.Errorf("expected released pid, got %d", run.Pid)
	}
}

func TestFailedStepSkipsDependents(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	planPath := writePlan(t, `
instruction: fail early
steps:
  - id: 1
    cmd: "false"
  - id: 2
    cmd: echo also-ran
  - id: 3
    cmd: echo never > never.txt
    needs: [1]
`)

	cfg := &types.BreakwaterConfig{}
	b, _, workDir := newEngine(t, cfg, planPath, types.DecisionRunOnce)

	record, err := b.Run(context.Background(), "fail early")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if record.Status != types.ProcessStatusPartialFailure {
		t.Fatalf("expected partial_failure, got %s", record.Status)
	}

	step1 := record.StepByID(1)
	if step1.Status != types.StepStatusFailed {
		t.Errorf("step 1: expected failed, got %s", step1.Status)
	}
	if step1.ExitCode == nil || *step1.ExitCode != 1 {
		t.Errorf("step 1: expected exit code 1, got %v", step1.ExitCode)
	}

	// The sibling in the same wave still drained.
	if got := record.StepByID(2).Status; got != types.StepStatusSucceeded {
		t.Errorf("step 2: expected succeeded, got %s", got)
	}

	// The dependent wave never started.
	if got := record.StepByID(3).Status; got != types.StepStatusSkipped {
		t.Errorf("step 3: expected skipped, got %s", got)
	}
	if _, err := os.Stat(filepath.Join(workDir, "never.txt")); !os.IsNotExist(err) {
		t.Error("skipped step must not touch the shell")
	}
}

func TestDeclinedStepsDoNotHalt(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// echo is built-in safe and never prompts; touch does prompt, and
	// the resolver declines everything.
	planPath := writePlan(t, `
instruction: decline the risky step
steps:
  - id: 1
    cmd: echo safe-one
  - id: 2
    cmd: touch declined.txt
`)

	cfg := &types.BreakwaterConfig{}
	b, _, workDir := newEngine(t, cfg, planPath, types.DecisionCancel)

	record, err := b.Run(context.Background(), "decline the risky step")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if record.Status != types.ProcessStatusPartialFailure {
		t.Fatalf("expected partial_failure, got %s", record.Status)
	}
	if got := record.StepByID(1).Status; got != types.StepStatusSucceeded {
		t.Errorf("safe step: expected succeeded, got %s", got)
	}
	if got := record.StepByID(2).Status; got != types.StepStatusSkipped {
		t.Errorf("declined step: expected skipped, got %s", got)
	}
	if _, err := os.Stat(filepath.Join(workDir, "declined.txt")); !os.IsNotExist(err) {
		t.Error("declined step must not run")
	}
}

func TestStepTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	planPath := writePlan(t, `
instruction: hang forever
steps:
  - id: 1
    cmd: sleep 30
`)

	timeout := 1
	cfg := &types.BreakwaterConfig{
		Execution: &types.ExecutionConfig{StepTimeout: &timeout},
	}
	b, _, _ := newEngine(t, cfg, planPath, types.DecisionRunOnce)

	start := time.Now()
	record, err := b.Run(context.Background(), "hang forever")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timeout did not fire, run took %v", elapsed)
	}

	if record.Status != types.ProcessStatusFailed {
		t.Fatalf("expected failed, got %s", record.Status)
	}
	step := record.StepByID(1)
	if step.Status != types.StepStatusFailed {
		t.Errorf("expected failed step, got %s", step.Status)
	}
	if !step.TimedOut {
		t.Error("expected the step to be marked timed out")
	}
}
