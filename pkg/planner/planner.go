// Package planner provides the built-in planners. FilePlanner reads a
// hand-written plan file and CommandPlanner wraps one raw command, so
// manual plans flow through graph validation and the trust gate the
// same way a decomposed instruction does.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/breakwater/breakwater/pkg/types"
)

// PlanFile is a parsed plan file: an optional instruction plus steps.
type PlanFile struct {
	Instruction string
	Steps       []types.PlannedStep
}

// rawStep accepts the key aliases seen in hand-written plans.
type rawStep struct {
	ID           int    `json:"id" yaml:"id"`
	Command      string `json:"command" yaml:"command"`
	Cmd          string `json:"cmd" yaml:"cmd"`
	Description  string `json:"description" yaml:"description"`
	Desc         string `json:"desc" yaml:"desc"`
	DependsOn    []int  `json:"depends_on" yaml:"depends_on"`
	DependsOnAlt []int  `json:"dependsOn" yaml:"dependsOn"`
	Needs        []int  `json:"needs" yaml:"needs"`
}

type rawPlan struct {
	Instruction string    `json:"instruction" yaml:"instruction"`
	Steps       []rawStep `json:"steps" yaml:"steps"`
}

func (r rawStep) normalize() types.PlannedStep {
	command := r.Command
	if command == "" {
		command = r.Cmd
	}
	description := r.Description
	if description == "" {
		description = r.Desc
	}
	deps := r.DependsOn
	if deps == nil {
		deps = r.DependsOnAlt
	}
	if deps == nil {
		deps = r.Needs
	}
	return types.PlannedStep{
		ID:          r.ID,
		Command:     command,
		Description: description,
		DependsOn:   deps,
	}
}

// LoadPlanFile reads and validates a plan file. Both JSON and YAML are
// accepted, as an object with a steps list or as a bare step list.
func LoadPlanFile(path string) (*PlanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	raw, err := parsePlan(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	plan := &PlanFile{Instruction: strings.TrimSpace(raw.Instruction)}
	for i, rs := range raw.Steps {
		step := rs.normalize()
		if strings.TrimSpace(step.Command) == "" {
			return nil, fmt.Errorf("%s: step %d has no command", filepath.Base(path), i+1)
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}

// parsePlan tries JSON first, then YAML, in both shapes.
func parsePlan(data []byte) (*rawPlan, error) {
	var plan rawPlan
	jsonErr := json.Unmarshal(data, &plan)
	if jsonErr == nil && len(plan.Steps) > 0 {
		return &plan, nil
	}

	var steps []rawStep
	if err := json.Unmarshal(data, &steps); err == nil && len(steps) > 0 {
		return &rawPlan{Steps: steps}, nil
	}

	plan = rawPlan{}
	yamlErr := yaml.Unmarshal(data, &plan)
	if yamlErr == nil && len(plan.Steps) > 0 {
		return &plan, nil
	}

	steps = nil
	if err := yaml.Unmarshal(data, &steps); err == nil && len(steps) > 0 {
		return &rawPlan{Steps: steps}, nil
	}

	if jsonErr == nil || yamlErr == nil {
		return nil, fmt.Errorf("plan file has no steps")
	}
	return nil, fmt.Errorf("failed to parse plan file as JSON or YAML")
}

// FilePlanner serves the steps of one plan file. The file is read on
// every Decompose call, so edits between runs are picked up.
type FilePlanner struct {
	path string
}

// NewFilePlanner creates a planner backed by the given plan file.
func NewFilePlanner(path string) *FilePlanner {
	return &FilePlanner{path: path}
}

// Name labels plans with the file they came from.
func (p *FilePlanner) Name() string {
	return "file/" + filepath.Base(p.path)
}

// Decompose loads the plan file and returns its steps.
func (p *FilePlanner) Decompose(ctx context.Context, req types.DecomposeRequest) (*types.DecomposeResponse, error) {
	file, err := LoadPlanFile(p.path)
	if err != nil {
		return nil, err
	}
	return &types.DecomposeResponse{Steps: file.Steps, Provider: p.Name()}, nil
}

// CommandPlanner turns one raw command into a single-step plan.
type CommandPlanner struct {
	command string
}

// NewCommandPlanner creates a planner for one shell command.
func NewCommandPlanner(command string) *CommandPlanner {
	return &CommandPlanner{command: command}
}

// Name labels manually entered commands.
func (p *CommandPlanner) Name() string {
	return "manual"
}

// Decompose wraps the command as a plan with a single step.
func (p *CommandPlanner) Decompose(ctx context.Context, req types.DecomposeRequest) (*types.DecomposeResponse, error) {
	if strings.TrimSpace(p.command) == "" {
		return nil, fmt.Errorf("no command given")
	}
	return &types.DecomposeResponse{
		Steps:    []types.PlannedStep{{ID: 1, Command: p.command}},
		Provider: p.Name(),
	}, nil
}
