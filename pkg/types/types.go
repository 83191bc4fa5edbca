// Package types provides core types and configurations for Breakwater
package types

import (
	"fmt"
	"time"
)

// StepStatus represents the lifecycle state of a single step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// IsTerminal reports whether a step status allows no further transitions
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusSucceeded || s == StepStatusFailed || s == StepStatusSkipped
}

// ProcessStatus represents the overall outcome of one plan execution
type ProcessStatus string

const (
	ProcessStatusPending        ProcessStatus = "pending"
	ProcessStatusRunning        ProcessStatus = "running"
	ProcessStatusSucceeded      ProcessStatus = "succeeded"
	ProcessStatusPartialFailure ProcessStatus = "partial_failure"
	ProcessStatusFailed         ProcessStatus = "failed"
	ProcessStatusCancelled      ProcessStatus = "cancelled"
)

// IsTerminal reports whether a process status is final
func (s ProcessStatus) IsTerminal() bool {
	switch s {
	case ProcessStatusSucceeded, ProcessStatusPartialFailure, ProcessStatusFailed, ProcessStatusCancelled:
		return true
	}
	return false
}

// TrustTier classifies a command at decision time
type TrustTier string

const (
	TrustTierBuiltinSafe    TrustTier = "builtin_safe"
	TrustTierUserAllowed    TrustTier = "user_allowed"
	TrustTierPromptRequired TrustTier = "prompt_required"
	TrustTierCritical       TrustTier = "critical"
)

// AllowScope represents the lifetime of an allow-list entry
type AllowScope string

const (
	AllowScopeSession   AllowScope = "session"
	AllowScopePermanent AllowScope = "permanent"
)

// AllowOp represents an append-only allow-list change operation
type AllowOp string

const (
	AllowOpAdd    AllowOp = "add"
	AllowOpRemove AllowOp = "remove"
)

// PromptDecision is the outcome of an interactive trust prompt
type PromptDecision string

const (
	DecisionRunOnce      PromptDecision = "run-once"
	DecisionAlwaysAllow  PromptDecision = "always-allow"
	DecisionSessionAllow PromptDecision = "session-allow"
	DecisionCancel       PromptDecision = "cancel"
	DecisionConfirmToken PromptDecision = "confirm-token"
)

// Severity grades a safety warning
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns an ordering value for severity comparisons
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	}
	return 0
}

// CancelPolicy controls mid-wave behavior after a sibling failure or cancel
type CancelPolicy string

const (
	CancelPolicyFinishRunning CancelPolicy = "finish-running"
	CancelPolicyCancelWave    CancelPolicy = "cancel-wave"
)

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Warning is one matched safety rule for a command
type Warning struct {
	Severity Severity `json:"severity"`
	Reason   string   `json:"reason"`
}

// Step is one atomic shell command inside a plan
type Step struct {
	ID          int           `json:"id" yaml:"id"`
	Command     string        `json:"command" yaml:"command"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	DependsOn   []int         `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Status      StepStatus    `json:"status"`
	ExitCode    *int          `json:"exitCode,omitempty"`
	Stdout      string        `json:"stdout,omitempty"`
	Stderr      string        `json:"stderr,omitempty"`
	TimedOut    bool          `json:"timedOut,omitempty"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	FinishedAt  *time.Time    `json:"finishedAt,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// Clone returns a deep copy of the step
func (s *Step) Clone() *Step {
	c := *s
	if s.DependsOn != nil {
		c.DependsOn = append([]int(nil), s.DependsOn...)
	}
	if s.ExitCode != nil {
		v := *s.ExitCode
		c.ExitCode = &v
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// String renders a step for display
func (s *Step) String() string {
	return fmt.Sprintf("%d. %s", s.ID, s.Command)
}

// Wave is an ordered group of steps safe to run concurrently.
// Waves hold step ids, never copies; the plan owns the steps.
type Wave struct {
	Index   int   `json:"index"`
	StepIDs []int `json:"stepIds"`
}

// Plan is the full decomposition of one instruction
type Plan struct {
	ID          string    `json:"id"`
	Instruction string    `json:"instruction"`
	Provider    string    `json:"provider,omitempty"`
	Steps       []*Step   `json:"steps"`
	Waves       []Wave    `json:"waves,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// StepByID returns the step with the given id, or nil
func (p *Plan) StepByID(id int) *Step {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Clone returns a deep copy of the plan
func (p *Plan) Clone() *Plan {
	c := *p
	c.Steps = make([]*Step, len(p.Steps))
	for i, s := range p.Steps {
		c.Steps[i] = s.Clone()
	}
	c.Waves = make([]Wave, len(p.Waves))
	for i, w := range p.Waves {
		c.Waves[i] = Wave{Index: w.Index, StepIDs: append([]int(nil), w.StepIDs...)}
	}
	return &c
}

// WaveResult captures execution timing for one wave.
// Duration spans max(finished) - min(started) over the steps that ran.
type WaveResult struct {
	Index      int           `json:"index"`
	StepIDs    []int         `json:"stepIds"`
	StartedAt  *time.Time    `json:"startedAt,omitempty"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// ProcessRecord is the persisted lifecycle of one plan execution
type ProcessRecord struct {
	ID            string        `json:"id"`
	Instruction   string        `json:"instruction"`
	Provider      string        `json:"provider,omitempty"`
	Status        ProcessStatus `json:"status"`
	Steps         []*Step       `json:"steps"`
	Waves         []WaveResult  `json:"waves,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	FinishedAt    *time.Time    `json:"finishedAt,omitempty"`
	TotalDuration time.Duration `json:"totalDuration,omitempty"`
}

// StepByID returns the recorded step with the given id, or nil
func (r *ProcessRecord) StepByID(id int) *Step {
	for _, s := range r.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// CountByStatus tallies steps per status
func (r *ProcessRecord) CountByStatus() map[StepStatus]int {
	counts := make(map[StepStatus]int, 4)
	for _, s := range r.Steps {
		counts[s.Status]++
	}
	return counts
}

// Clone returns a deep copy of the record
func (r *ProcessRecord) Clone() *ProcessRecord {
	c := *r
	c.Steps = make([]*Step, len(r.Steps))
	for i, s := range r.Steps {
		c.Steps[i] = s.Clone()
	}
	c.Waves = make([]WaveResult, len(r.Waves))
	for i, w := range r.Waves {
		cw := w
		cw.StepIDs = append([]int(nil), w.StepIDs...)
		if w.StartedAt != nil {
			t := *w.StartedAt
			cw.StartedAt = &t
		}
		if w.FinishedAt != nil {
			t := *w.FinishedAt
			cw.FinishedAt = &t
		}
		c.Waves[i] = cw
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// StepUpdate carries one step transition from the executor to the tracker
type StepUpdate struct {
	Status     StepStatus
	ExitCode   *int
	Stdout     string
	Stderr     string
	TimedOut   bool
	StartedAt  *time.Time
	FinishedAt *time.Time
	Duration   time.Duration
}

// AllowListEntry is one append-only allow-list change
type AllowListEntry struct {
	Pattern string     `json:"pattern"`
	Scope   AllowScope `json:"scope"`
	Op      AllowOp    `json:"op"`
	AddedAt time.Time  `json:"addedAt"`
}

// PlannedStep is one step as returned by a planner, before graph validation
type PlannedStep struct {
	ID          int    `json:"id" yaml:"id"`
	Command     string `json:"command" yaml:"command"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	DependsOn   []int  `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
}

// DecomposeRequest asks a planner to break an instruction into steps
type DecomposeRequest struct {
	Instruction string `json:"instruction"`
	Context     string `json:"context,omitempty"`
}

// DecomposeResponse is the planner's step list plus its provenance label
type DecomposeResponse struct {
	Steps    []PlannedStep `json:"steps"`
	Provider string        `json:"provider"`
}

// PromptRequest asks the interactive resolver to decide one step
type PromptRequest struct {
	Command   string    `json:"command"`
	Tier      TrustTier `json:"tier"`
	Warnings  []Warning `json:"warnings,omitempty"`
	WaveIndex int       `json:"waveIndex"`
	StepIndex int       `json:"stepIndex"`
}

// PromptResponse is the resolver's decision for one step
type PromptResponse struct {
	Decision PromptDecision `json:"decision"`
}

// HistoryEntry is one executed command in the append-only history log
type HistoryEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Instruction string    `json:"instruction,omitempty"`
	Command     string    `json:"command"`
	Cwd         string    `json:"cwd,omitempty"`
	Success     *bool     `json:"success"`
}

// ExecutionConfig tunes the wave executor
type ExecutionConfig struct {
	MaxParallel  *int         `json:"maxParallel,omitempty" yaml:"maxParallel,omitempty"`
	StepTimeout  *int         `json:"stepTimeout,omitempty" yaml:"stepTimeout,omitempty"`
	CancelPolicy CancelPolicy `json:"cancelPolicy,omitempty" yaml:"cancelPolicy,omitempty"`
	AutoApprove  *bool        `json:"autoApprove,omitempty" yaml:"autoApprove,omitempty"`
}

// SafetyConfig tunes built-in safe command matching
type SafetyConfig struct {
	DisabledBuiltins  []string `json:"disabledBuiltins,omitempty" yaml:"disabledBuiltins,omitempty"`
	ExtraSafePrefixes []string `json:"extraSafePrefixes,omitempty" yaml:"extraSafePrefixes,omitempty"`
}

// NotificationConfig represents notification preferences
type NotificationConfig struct {
	Enabled        *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	SoundOnFailure *bool `json:"soundOnFailure,omitempty" yaml:"soundOnFailure,omitempty"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	File  string   `json:"file,omitempty" yaml:"file,omitempty"`
	Level LogLevel `json:"level,omitempty" yaml:"level,omitempty"`
}

// BreakwaterConfig represents the main configuration
type BreakwaterConfig struct {
	Version       string              `json:"version" yaml:"version"`
	StateDir      string              `json:"stateDir,omitempty" yaml:"stateDir,omitempty"`
	Execution     *ExecutionConfig    `json:"execution,omitempty" yaml:"execution,omitempty"`
	Safety        *SafetyConfig       `json:"safety,omitempty" yaml:"safety,omitempty"`
	Notifications *NotificationConfig `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	Logging       *LoggingConfig      `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// GetMaxParallel returns the wave concurrency bound
func (c *BreakwaterConfig) GetMaxParallel() int {
	if c.Execution != nil && c.Execution.MaxParallel != nil {
		return *c.Execution.MaxParallel
	}
	return 4
}

// GetStepTimeout returns the per-step deadline; zero means none
func (c *BreakwaterConfig) GetStepTimeout() time.Duration {
	if c.Execution != nil && c.Execution.StepTimeout != nil {
		return time.Duration(*c.Execution.StepTimeout) * time.Second
	}
	return 0
}

// GetCancelPolicy returns the mid-wave cancellation policy
func (c *BreakwaterConfig) GetCancelPolicy() CancelPolicy {
	if c.Execution != nil && c.Execution.CancelPolicy != "" {
		return c.Execution.CancelPolicy
	}
	return CancelPolicyFinishRunning
}

// GetAutoApprove reports whether prompt_required steps run without asking
func (c *BreakwaterConfig) GetAutoApprove() bool {
	return c.Execution != nil && c.Execution.AutoApprove != nil && *c.Execution.AutoApprove
}

// NotificationsEnabled reports whether desktop notifications are on
func (c *BreakwaterConfig) NotificationsEnabled() bool {
	if c.Notifications == nil || c.Notifications.Enabled == nil {
		return true
	}
	return *c.Notifications.Enabled
}

// FailureSoundEnabled reports whether a failure triggers an audible beep
func (c *BreakwaterConfig) FailureSoundEnabled() bool {
	if c.Notifications == nil || c.Notifications.SoundOnFailure == nil {
		return true
	}
	return *c.Notifications.SoundOnFailure
}

// GetLogLevel returns the configured verbosity, defaulting to info
func (c *BreakwaterConfig) GetLogLevel() LogLevel {
	if c.Logging != nil && c.Logging.Level != "" {
		return c.Logging.Level
	}
	return LogLevelInfo
}
