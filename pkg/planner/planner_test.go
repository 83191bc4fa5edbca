package planner_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/breakwater/breakwater/pkg/planner"
	"github.com/breakwater/breakwater/pkg/types"
)

func writePlan(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write plan file: %v", err)
	}
	return path
}

func TestLoadPlanFile_YAMLWithAliases(t *testing.T) {
	path := writePlan(t, "deploy.yaml", `
instruction: deploy the service
steps:
  - id: 1
    cmd: make build
    desc: compile
  - id: 2
    cmd: make push
    needs: [1]
`)

	plan, err := planner.LoadPlanFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.Instruction != "deploy the service" {
		t.Errorf("expected the instruction, got %q", plan.Instruction)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(plan.Steps))
	}
	if plan.Steps[0].Command != "make build" {
		t.Errorf("expected cmd alias to map to command, got %q", plan.Steps[0].Command)
	}
	if plan.Steps[0].Description != "compile" {
		t.Errorf("expected desc alias to map to description, got %q", plan.Steps[0].Description)
	}
	if got := plan.Steps[1].DependsOn; len(got) != 1 || got[0] != 1 {
		t.Errorf("expected needs alias to map to dependencies, got %v", got)
	}
}

func TestLoadPlanFile_JSON(t *testing.T) {
	path := writePlan(t, "release.json", `{
  "instruction": "cut a release",
  "steps": [
    {"id": 1, "command": "go test ./...", "description": "verify"},
    {"id": 2, "command": "goreleaser release", "dependsOn": [1]}
  ]
}`)

	plan, err := planner.LoadPlanFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(plan.Steps))
	}
	if got := plan.Steps[1].DependsOn; len(got) != 1 || got[0] != 1 {
		t.Errorf("expected dependsOn to map to dependencies, got %v", got)
	}
}

func TestLoadPlanFile_BareStepList(t *testing.T) {
	path := writePlan(t, "steps.yaml", `
- command: echo one
- command: echo two
  depends_on: [0]
`)

	plan, err := planner.LoadPlanFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Instruction != "" {
		t.Errorf("expected no instruction for a bare list, got %q", plan.Instruction)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(plan.Steps))
	}
}

func TestLoadPlanFile_StepWithoutCommand(t *testing.T) {
	path := writePlan(t, "broken.yaml", `
steps:
  - command: echo ok
  - desc: forgot the command
`)

	_, err := planner.LoadPlanFile(path)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "step 2 has no command") {
		t.Errorf("expected the step to be named, got %v", err)
	}
}

func TestLoadPlanFile_NoSteps(t *testing.T) {
	path := writePlan(t, "empty.yaml", `instruction: nothing to do`)

	_, err := planner.LoadPlanFile(path)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "no steps") {
		t.Errorf("expected a no-steps error, got %v", err)
	}
}

func TestLoadPlanFile_Garbage(t *testing.T) {
	path := writePlan(t, "garbage.txt", "{{{ not a plan")

	_, err := planner.LoadPlanFile(path)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "failed to parse plan file") {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestLoadPlanFile_Missing(t *testing.T) {
	_, err := planner.LoadPlanFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "failed to read plan file") {
		t.Errorf("expected a read error, got %v", err)
	}
}

func TestFilePlanner_Decompose(t *testing.T) {
	path := writePlan(t, "build.yaml", `
steps:
  - command: make generate
  - command: make build
    needs: [1]
`)

	p := planner.NewFilePlanner(path)
	if p.Name() != "file/build.yaml" {
		t.Errorf("expected file/build.yaml, got %q", p.Name())
	}

	resp, err := p.Decompose(context.Background(), types.DecomposeRequest{Instruction: "build it"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Provider != "file/build.yaml" {
		t.Errorf("expected the provider label, got %q", resp.Provider)
	}
	if len(resp.Steps) != 2 {
		t.Errorf("expected 2 steps, got %d", len(resp.Steps))
	}
}

func TestCommandPlanner_Decompose(t *testing.T) {
	p := planner.NewCommandPlanner("df -h")

	resp, err := p.Decompose(context.Background(), types.DecomposeRequest{Instruction: "check disk"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Provider != "manual" {
		t.Errorf("expected manual, got %q", resp.Provider)
	}
	if len(resp.Steps) != 1 {
		t.Fatalf("expected a single step, got %d", len(resp.Steps))
	}
	if resp.Steps[0].ID != 1 || resp.Steps[0].Command != "df -h" {
		t.Errorf("unexpected step: %+v", resp.Steps[0])
	}
}

func TestCommandPlanner_EmptyCommand(t *testing.T) {
	p := planner.NewCommandPlanner("   ")

	if _, err := p.Decompose(context.Background(), types.DecomposeRequest{}); err == nil {
		t.Error("expected an error for a blank command")
	}
}
