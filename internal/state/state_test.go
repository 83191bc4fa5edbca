package state_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/breakwater/breakwater/internal/state"
	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/types"
)

func newManager(t *testing.T) (*state.Manager, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "state")
	return state.NewManager(dir, logger.CreateLogger("error")), dir
}

func TestManager_InitializeAndReadRun(t *testing.T) {
	manager, dir := newManager(t)

	run, err := manager.InitializeRun("a1b2c3d4e5f6", "build the project", 3, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != types.ProcessStatusRunning {
		t.Errorf("expected running, got %s", run.Status)
	}
	if run.Pid != os.Getpid() {
		t.Errorf("expected our pid, got %d", run.Pid)
	}
	if run.TotalWaves != 3 || run.TotalSteps != 5 {
		t.Errorf("expected totals recorded, got waves=%d steps=%d", run.TotalWaves, run.TotalSteps)
	}

	if _, err := os.Stat(filepath.Join(dir, "a1b2c3d4e5f6.json")); err != nil {
		t.Errorf("expected the state file on disk: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a1b2c3d4e5f6.json.tmp")); !os.IsNotExist(err) {
		t.Error("expected no leftover temp file after an atomic save")
	}

	// A second manager sees the run from disk.
	other := state.NewManager(dir, logger.CreateLogger("error"))
	loaded, err := other.ReadRun("a1b2c3d4e5f6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Instruction != "build the project" {
		t.Errorf("expected instruction persisted, got %q", loaded.Instruction)
	}
}

func TestManager_UpdateProgress(t *testing.T) {
	manager, dir := newManager(t)

	if _, err := manager.InitializeRun("run123456789", "deploy", 2, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := manager.UpdateProgress("run123456789", 1, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := state.NewManager(dir, logger.CreateLogger("error"))
	run, err := other.ReadRun("run123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.CurrentWave != 1 || run.StepsDone != 3 {
		t.Errorf("expected progress persisted, got wave=%d done=%d", run.CurrentWave, run.StepsDone)
	}
}

func TestManager_UpdateStatus(t *testing.T) {
	manager, dir := newManager(t)

	if _, err := manager.InitializeRun("run123456789", "deploy", 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := manager.UpdateStatus("run123456789", types.ProcessStatusFailed, "exit 1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := state.NewManager(dir, logger.CreateLogger("error"))
	run, _ := other.ReadRun("run123456789")
	if run.Status != types.ProcessStatusFailed {
		t.Errorf("expected failed, got %s", run.Status)
	}
	if run.LastError != "exit 1" {
		t.Errorf("expected the last error persisted, got %q", run.LastError)
	}
}

func TestManager_UpdateUnknownRun(t *testing.T) {
	manager, _ := newManager(t)

	if err := manager.UpdateProgress("missing", 0, 0); err == nil {
		t.Error("expected an error for an unknown run")
	}
	if err := manager.UpdateStatus("missing", types.ProcessStatusFailed, ""); err == nil {
		t.Error("expected an error for an unknown run")
	}
}

func TestManager_RemoveRun(t *testing.T) {
	manager, dir := newManager(t)

	if _, err := manager.InitializeRun("run123456789", "x", 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := manager.RemoveRun("run123456789"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "run123456789.json")); !os.IsNotExist(err) {
		t.Error("expected the state file to be removed")
	}
	// Removing again is not an error.
	if err := manager.RemoveRun("run123456789"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestManager_DiscoverRuns(t *testing.T) {
	manager, dir := newManager(t)

	manager.InitializeRun("run1aaaaaaaa", "first", 1, 1)
	manager.InitializeRun("run2bbbbbbbb", "second", 1, 1)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0644)

	runs, err := manager.DiscoverRuns()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
	if runs["run1aaaaaaaa"] == nil || runs["run2bbbbbbbb"] == nil {
		t.Error("expected both runs discovered")
	}
}

func TestManager_DiscoverRunsMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	manager := state.NewManager(dir, logger.CreateLogger("error"))
	os.RemoveAll(dir)

	runs, err := manager.DiscoverRuns()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}

func TestManager_IsActive(t *testing.T) {
	manager, dir := newManager(t)

	manager.InitializeRun("ownrun111111", "ours", 1, 1)
	active, err := manager.IsActive("ownrun111111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !active {
		t.Error("expected our own run to be active")
	}

	// A foreign run with a stale heartbeat is dead.
	stale := state.RunState{
		ProcessID: "stalerun1111",
		Status:    types.ProcessStatusRunning,
		Pid:       1,
		Heartbeat: time.Now().Add(-5 * time.Minute),
	}
	writeRunFile(t, dir, &stale)
	if active, _ := manager.IsActive("stalerun1111"); active {
		t.Error("expected a stale heartbeat to mark the run dead")
	}

	// A released run has pid zero.
	released := state.RunState{
		ProcessID: "donerun11111",
		Status:    types.ProcessStatusSucceeded,
		Pid:       0,
		Heartbeat: time.Now(),
	}
	writeRunFile(t, dir, &released)
	if active, _ := manager.IsActive("donerun11111"); active {
		t.Error("expected a released run to be inactive")
	}

	if active, _ := manager.IsActive("neverexisted"); active {
		t.Error("expected a missing run to be inactive")
	}
}

func TestManager_CleanupReleasesRuns(t *testing.T) {
	manager, dir := newManager(t)

	manager.InitializeRun("run123456789", "x", 1, 1)
	if err := manager.Cleanup(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := state.NewManager(dir, logger.CreateLogger("error"))
	run, err := other.ReadRun("run123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Pid != 0 {
		t.Errorf("expected the pid to be released, got %d", run.Pid)
	}
}

func writeRunFile(t *testing.T, dir string, run *state.RunState) {
	t.Helper()
	data, err := json.Marshal(run)
	if err != nil {
		t.Fatalf("marshal run state: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, run.ProcessID+".json"), data, 0644); err != nil {
		t.Fatalf("write run state: %v", err)
	}
}
