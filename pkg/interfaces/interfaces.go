// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"
	"time"

	"github.com/breakwater/breakwater/pkg/allowlist"
	"github.com/breakwater/breakwater/pkg/shell"
	"github.com/breakwater/breakwater/pkg/types"
)

// Planner turns a natural language instruction into executable steps
type Planner interface {
	// Decompose produces the steps for an instruction. Steps reference
	// each other by id through DependsOn.
	Decompose(ctx context.Context, req types.DecomposeRequest) (*types.DecomposeResponse, error)
	// Name identifies the planner in records and logs.
	Name() string
}

// PromptResolver obtains a trust decision from the user
type PromptResolver interface {
	Resolve(ctx context.Context, req types.PromptRequest) (types.PromptResponse, error)
}

// TrustGate classifies commands and decides whether they may run
type TrustGate interface {
	// Classify returns the trust tier for a command plus any safety
	// warnings that informed it.
	Classify(command string) (types.TrustTier, []types.Warning)
	// Authorize resolves the tier into a run/skip decision, prompting
	// when required. A false return without error is a user cancel.
	Authorize(ctx context.Context, req types.PromptRequest) (bool, error)
	// RecordAllow adds a pattern to the session or permanent allow list.
	RecordAllow(pattern string, scope types.AllowScope) error
	// IsBuiltinSafe reports whether the command is covered by the
	// built-in safe prefixes.
	IsBuiltinSafe(command string) bool
	// SetBuiltinEnabled toggles one built-in safe prefix.
	SetBuiltinEnabled(prefix string, enabled bool)
}

// CommandRunner executes a single step command
type CommandRunner interface {
	Run(ctx context.Context, command string, opts shell.Options) (*shell.Result, error)
}

// ProcessStore persists finished runs
type ProcessStore interface {
	Append(record *types.ProcessRecord) error
	List(limit int) ([]*types.ProcessRecord, error)
	Get(id string) (*types.ProcessRecord, error)
}

// HistoryStore records instructions and the commands they produced
type HistoryStore interface {
	Append(entry types.HistoryEntry) error
	List(limit int) ([]types.HistoryEntry, error)
}

// AllowLog is the durable allow-list change feed
type AllowLog = allowlist.Log

// Notifier delivers desktop notifications for run lifecycle events
type Notifier interface {
	NotifyRunStart(processID string, instruction string)
	NotifyRunSuccess(processID string, duration time.Duration)
	NotifyRunFailure(processID string, status types.ProcessStatus)
	NotifyWaveStatus(running int, pending int)
}

// Dependencies contains all injectable dependencies
type Dependencies struct {
	Planner      Planner
	Prompter     PromptResolver
	TrustGate    TrustGate
	Runner       CommandRunner
	ProcessStore ProcessStore
	HistoryStore HistoryStore
	AllowLog     AllowLog
	Notifier     Notifier
}
