package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/breakwater/breakwater/pkg/types"
)

func TestStepStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   types.StepStatus
		terminal bool
	}{
		{types.StepStatusPending, false},
		{types.StepStatusRunning, false},
		{types.StepStatusSucceeded, true},
		{types.StepStatusFailed, true},
		{types.StepStatusSkipped, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestProcessStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   types.ProcessStatus
		terminal bool
	}{
		{types.ProcessStatusPending, false},
		{types.ProcessStatusRunning, false},
		{types.ProcessStatusSucceeded, true},
		{types.ProcessStatusPartialFailure, true},
		{types.ProcessStatusFailed, true},
		{types.ProcessStatusCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestSeverityRank(t *testing.T) {
	if types.SeverityCritical.Rank() <= types.SeverityHigh.Rank() {
		t.Error("critical should outrank high")
	}
	if types.SeverityHigh.Rank() <= types.SeverityMedium.Rank() {
		t.Error("high should outrank medium")
	}
	if types.Severity("bogus").Rank() != 0 {
		t.Error("unknown severity should rank 0")
	}
}

func TestPlanStepByID(t *testing.T) {
	plan := &types.Plan{
		Steps: []*types.Step{
			{ID: 1, Command: "mkdir demo"},
			{ID: 2, Command: "cd demo && git init", DependsOn: []int{1}},
		},
	}

	if s := plan.StepByID(2); s == nil || s.Command != "cd demo && git init" {
		t.Errorf("StepByID(2) = %v, want the git init step", s)
	}
	if s := plan.StepByID(99); s != nil {
		t.Errorf("StepByID(99) = %v, want nil", s)
	}
}

func TestPlanCloneIsDeep(t *testing.T) {
	started := time.Now()
	plan := &types.Plan{
		ID:          "abc123def456",
		Instruction: "set up project",
		Steps: []*types.Step{
			{ID: 1, Command: "mkdir demo", Status: types.StepStatusPending, StartedAt: &started},
			{ID: 2, Command: "npm install", DependsOn: []int{1}},
		},
		Waves: []types.Wave{
			{Index: 0, StepIDs: []int{1}},
			{Index: 1, StepIDs: []int{2}},
		},
	}

	clone := plan.Clone()
	clone.Steps[0].Status = types.StepStatusSucceeded
	clone.Steps[1].DependsOn[0] = 42
	clone.Waves[0].StepIDs[0] = 42

	if plan.Steps[0].Status != types.StepStatusPending {
		t.Error("mutating clone step status leaked into original")
	}
	if plan.Steps[1].DependsOn[0] != 1 {
		t.Error("mutating clone dependsOn leaked into original")
	}
	if plan.Waves[0].StepIDs[0] != 1 {
		t.Error("mutating clone wave leaked into original")
	}
}

func TestProcessRecordCountByStatus(t *testing.T) {
	record := &types.ProcessRecord{
		Steps: []*types.Step{
			{ID: 1, Status: types.StepStatusSucceeded},
			{ID: 2, Status: types.StepStatusSucceeded},
			{ID: 3, Status: types.StepStatusFailed},
			{ID: 4, Status: types.StepStatusSkipped},
		},
	}

	counts := record.CountByStatus()
	if counts[types.StepStatusSucceeded] != 2 {
		t.Errorf("expected 2 succeeded, got %d", counts[types.StepStatusSucceeded])
	}
	if counts[types.StepStatusFailed] != 1 {
		t.Errorf("expected 1 failed, got %d", counts[types.StepStatusFailed])
	}
	if counts[types.StepStatusSkipped] != 1 {
		t.Errorf("expected 1 skipped, got %d", counts[types.StepStatusSkipped])
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := &types.BreakwaterConfig{Version: "1.0"}

	if cfg.GetMaxParallel() != 4 {
		t.Errorf("expected default max parallel 4, got %d", cfg.GetMaxParallel())
	}
	if cfg.GetStepTimeout() != 0 {
		t.Errorf("expected no default step timeout, got %v", cfg.GetStepTimeout())
	}
	if cfg.GetCancelPolicy() != types.CancelPolicyFinishRunning {
		t.Errorf("expected finish-running policy, got %s", cfg.GetCancelPolicy())
	}
	if cfg.GetAutoApprove() {
		t.Error("expected auto-approve off by default")
	}
	if !cfg.NotificationsEnabled() {
		t.Error("expected notifications on by default")
	}
	if cfg.GetLogLevel() != types.LogLevelInfo {
		t.Errorf("expected default log level info, got %s", cfg.GetLogLevel())
	}
}

func TestConfigOverrides(t *testing.T) {
	configJSON := `{
		"version": "1.0",
		"execution": {
			"maxParallel": 2,
			"stepTimeout": 30,
			"cancelPolicy": "cancel-wave",
			"autoApprove": true
		},
		"notifications": {
			"enabled": false
		},
		"logging": {
			"level": "debug"
		}
	}`

	var cfg types.BreakwaterConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		t.Fatalf("failed to unmarshal config: %v", err)
	}

	if cfg.GetMaxParallel() != 2 {
		t.Errorf("expected max parallel 2, got %d", cfg.GetMaxParallel())
	}
	if cfg.GetStepTimeout() != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.GetStepTimeout())
	}
	if cfg.GetCancelPolicy() != types.CancelPolicyCancelWave {
		t.Errorf("expected cancel-wave policy, got %s", cfg.GetCancelPolicy())
	}
	if !cfg.GetAutoApprove() {
		t.Error("expected auto-approve on")
	}
	if cfg.NotificationsEnabled() {
		t.Error("expected notifications off")
	}
	if cfg.GetLogLevel() != types.LogLevelDebug {
		t.Errorf("expected debug level, got %s", cfg.GetLogLevel())
	}
}

func TestProcessRecordJSONRoundTrip(t *testing.T) {
	exit := 0
	now := time.Now().UTC().Truncate(time.Second)
	record := &types.ProcessRecord{
		ID:          "1a2b3c4d5e6f",
		Instruction: "deploy the service",
		Provider:    "file/deploy.yaml",
		Status:      types.ProcessStatusPartialFailure,
		Steps: []*types.Step{
			{ID: 1, Command: "make build", Status: types.StepStatusSucceeded, ExitCode: &exit},
		},
		Waves:     []types.WaveResult{{Index: 0, StepIDs: []int{1}}},
		CreatedAt: now,
	}

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded types.ProcessRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.ID != record.ID || decoded.Status != record.Status {
		t.Errorf("round trip mismatch: got %s/%s", decoded.ID, decoded.Status)
	}
	if len(decoded.Steps) != 1 || decoded.Steps[0].ExitCode == nil || *decoded.Steps[0].ExitCode != 0 {
		t.Error("step exit code lost in round trip")
	}
}

func BenchmarkPlanClone(b *testing.B) {
	plan := &types.Plan{
		ID:          "bench00000000",
		Instruction: "bench",
		Steps: []*types.Step{
			{ID: 1, Command: "echo one"},
			{ID: 2, Command: "echo two", DependsOn: []int{1}},
			{ID: 3, Command: "echo three", DependsOn: []int{1}},
			{ID: 4, Command: "echo four", DependsOn: []int{2, 3}},
		},
		Waves: []types.Wave{
			{Index: 0, StepIDs: []int{1}},
			{Index: 1, StepIDs: []int{2, 3}},
			{Index: 2, StepIDs: []int{4}},
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = plan.Clone()
	}
}
