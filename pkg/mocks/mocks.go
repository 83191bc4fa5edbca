// Package mocks provides mock implementations of interfaces for testing.
// These follow Go best practices for test doubles.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/breakwater/breakwater/pkg/interfaces"
	"github.com/breakwater/breakwater/pkg/shell"
	"github.com/breakwater/breakwater/pkg/store"
	"github.com/breakwater/breakwater/pkg/types"
)

var (
	_ interfaces.Planner        = (*MockPlanner)(nil)
	_ interfaces.PromptResolver = (*MockPromptResolver)(nil)
	_ interfaces.TrustGate      = (*MockTrustGate)(nil)
	_ interfaces.CommandRunner  = (*MockCommandRunner)(nil)
	_ interfaces.ProcessStore   = (*MockProcessStore)(nil)
	_ interfaces.HistoryStore   = (*MockHistoryStore)(nil)
	_ interfaces.Notifier       = (*MockNotifier)(nil)
)

// MockPlanner is a mock implementation of Planner for testing
type MockPlanner struct {
	mu           sync.Mutex
	steps        []types.PlannedStep
	decomposeErr error
	callCount    int
	lastRequest  types.DecomposeRequest
}

// NewMockPlanner creates a new mock planner
func NewMockPlanner() *MockPlanner {
	return &MockPlanner{}
}

// Decompose returns the configured steps
func (m *MockPlanner) Decompose(ctx context.Context, req types.DecomposeRequest) (*types.DecomposeResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.lastRequest = req

	if m.decomposeErr != nil {
		return nil, m.decomposeErr
	}

	steps := make([]types.PlannedStep, len(m.steps))
	copy(steps, m.steps)
	return &types.DecomposeResponse{Steps: steps, Provider: m.Name()}, nil
}

// Name identifies the mock planner
func (m *MockPlanner) Name() string {
	return "mock"
}

// SetSteps sets the steps returned by Decompose
func (m *MockPlanner) SetSteps(steps []types.PlannedStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = steps
}

// SetDecomposeError sets the error to return from Decompose
func (m *MockPlanner) SetDecomposeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decomposeErr = err
}

// CallCount returns how many times Decompose was called
func (m *MockPlanner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the most recent Decompose request
func (m *MockPlanner) LastRequest() types.DecomposeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// MockPromptResolver is a mock implementation of PromptResolver for testing
type MockPromptResolver struct {
	mu              sync.Mutex
	queue           []types.PromptDecision
	defaultDecision types.PromptDecision
	resolveErr      error
	requests        []types.PromptRequest
}

// NewMockPromptResolver creates a resolver that approves by default
func NewMockPromptResolver() *MockPromptResolver {
	return &MockPromptResolver{defaultDecision: types.DecisionRunOnce}
}

// Resolve records the request and returns the next queued decision
func (m *MockPromptResolver) Resolve(ctx context.Context, req types.PromptRequest) (types.PromptResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.resolveErr != nil {
		return types.PromptResponse{}, m.resolveErr
	}

	decision := m.defaultDecision
	if len(m.queue) > 0 {
		decision = m.queue[0]
		m.queue = m.queue[1:]
	}
	return types.PromptResponse{Decision: decision}, nil
}

// EnqueueDecision queues a decision for the next Resolve call
func (m *MockPromptResolver) EnqueueDecision(decision types.PromptDecision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, decision)
}

// SetDefaultDecision sets the decision used when the queue is empty
func (m *MockPromptResolver) SetDefaultDecision(decision types.PromptDecision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultDecision = decision
}

// SetResolveError sets the error to return from Resolve
func (m *MockPromptResolver) SetResolveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveErr = err
}

// Requests returns all recorded prompt requests
func (m *MockPromptResolver) Requests() []types.PromptRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.PromptRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RecordedAllow is one allow-list addition captured by MockTrustGate
type RecordedAllow struct {
	Pattern string
	Scope   types.AllowScope
}

// MockTrustGate is a mock implementation of TrustGate for testing
type MockTrustGate struct {
	mu              sync.Mutex
	tiers           map[string]types.TrustTier
	warnings        map[string][]types.Warning
	defaultTier     types.TrustTier
	denied          map[string]bool
	authorizeErr    error
	authorizeCalls  []string
	allows          []RecordedAllow
	recordAllowErr  error
	builtinDisabled map[string]bool
}

// NewMockTrustGate creates a gate that approves everything by default
func NewMockTrustGate() *MockTrustGate {
	return &MockTrustGate{
		tiers:           make(map[string]types.TrustTier),
		warnings:        make(map[string][]types.Warning),
		defaultTier:     types.TrustTierBuiltinSafe,
		denied:          make(map[string]bool),
		builtinDisabled: make(map[string]bool),
	}
}

// Classify returns the configured tier for a command
func (m *MockTrustGate) Classify(command string) (types.TrustTier, []types.Warning) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tier, ok := m.tiers[command]
	if !ok {
		tier = m.defaultTier
	}
	return tier, m.warnings[command]
}

// Authorize records the call order and applies configured denials
func (m *MockTrustGate) Authorize(ctx context.Context, req types.PromptRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.authorizeCalls = append(m.authorizeCalls, req.Command)

	if m.authorizeErr != nil {
		return false, m.authorizeErr
	}
	return !m.denied[req.Command], nil
}

// RecordAllow captures allow-list additions
func (m *MockTrustGate) RecordAllow(pattern string, scope types.AllowScope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recordAllowErr != nil {
		return m.recordAllowErr
	}
	m.allows = append(m.allows, RecordedAllow{Pattern: pattern, Scope: scope})
	return nil
}

// IsBuiltinSafe reports whether the command was configured builtin safe
func (m *MockTrustGate) IsBuiltinSafe(command string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	tier, ok := m.tiers[command]
	if !ok {
		tier = m.defaultTier
	}
	return tier == types.TrustTierBuiltinSafe && !m.builtinDisabled[command]
}

// SetBuiltinEnabled toggles a built-in prefix
func (m *MockTrustGate) SetBuiltinEnabled(prefix string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builtinDisabled[prefix] = !enabled
}

// SetTier sets the tier returned for a command
func (m *MockTrustGate) SetTier(command string, tier types.TrustTier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers[command] = tier
}

// SetWarnings sets the warnings returned for a command
func (m *MockTrustGate) SetWarnings(command string, warnings []types.Warning) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings[command] = warnings
}

// SetDefaultTier sets the tier for unconfigured commands
func (m *MockTrustGate) SetDefaultTier(tier types.TrustTier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultTier = tier
}

// Deny makes Authorize reject a command
func (m *MockTrustGate) Deny(command string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[command] = true
}

// SetAuthorizeError sets the error to return from Authorize
func (m *MockTrustGate) SetAuthorizeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorizeErr = err
}

// SetRecordAllowError sets the error to return from RecordAllow
func (m *MockTrustGate) SetRecordAllowError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordAllowErr = err
}

// AuthorizeCalls returns the commands passed to Authorize, in order
func (m *MockTrustGate) AuthorizeCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.authorizeCalls))
	copy(out, m.authorizeCalls)
	return out
}

// Allows returns the recorded allow-list additions
func (m *MockTrustGate) Allows() []RecordedAllow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedAllow, len(m.allows))
	copy(out, m.allows)
	return out
}

// RunCall is one recorded command execution
type RunCall struct {
	Command string
	Opts    shell.Options
}

// MockCommandRunner is a mock implementation of CommandRunner for testing
type MockCommandRunner struct {
	mu            sync.Mutex
	results       map[string]shell.Result
	defaultResult shell.Result
	runErr        map[string]error
	delay         time.Duration
	calls         []RunCall
	active        int
	maxActive     int
}

// NewMockCommandRunner creates a runner where every command succeeds
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{
		results: make(map[string]shell.Result),
		runErr:  make(map[string]error),
	}
}

// Run records the call and returns the configured result
func (m *MockCommandRunner) Run(ctx context.Context, command string, opts shell.Options) (*shell.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, RunCall{Command: command, Opts: opts})
	m.active++
	if m.active > m.maxActive {
		m.maxActive = m.active
	}
	delay := m.delay
	err := m.runErr[command]
	result, ok := m.results[command]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &shell.Result{ExitCode: -1}, nil
		}
	}

	if err != nil {
		return &shell.Result{ExitCode: -1, Stderr: err.Error()}, err
	}
	if !ok {
		result = m.defaultResult
	}
	result.Duration = delay
	return &result, nil
}

// SetResult sets the result for one command
func (m *MockCommandRunner) SetResult(command string, result shell.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[command] = result
}

// SetRunError sets the error to return for one command
func (m *MockCommandRunner) SetRunError(command string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runErr[command] = err
}

// SetDelay makes every run take the given time
func (m *MockCommandRunner) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
}

// Calls returns the recorded runs in execution order
func (m *MockCommandRunner) Calls() []RunCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RunCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many commands were run
func (m *MockCommandRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MaxActive returns the peak number of concurrent runs
func (m *MockCommandRunner) MaxActive() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}

// MockProcessStore is a mock implementation of ProcessStore for testing
type MockProcessStore struct {
	mu        sync.Mutex
	records   []*types.ProcessRecord
	appendErr error
}

// NewMockProcessStore creates an empty process store
func NewMockProcessStore() *MockProcessStore {
	return &MockProcessStore{}
}

// Append stores a finished run
func (m *MockProcessStore) Append(record *types.ProcessRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return m.appendErr
	}
	m.records = append(m.records, record.Clone())
	return nil
}

// List returns stored runs, most recent first
func (m *MockProcessStore) List(limit int) ([]*types.ProcessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*types.ProcessRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		out = append(out, m.records[i].Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Get returns the stored run with the given id
func (m *MockProcessStore) Get(id string) (*types.ProcessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].ID == id {
			return m.records[i].Clone(), nil
		}
	}
	return nil, store.ErrProcessNotFound
}

// SetAppendError sets the error to return from Append
func (m *MockProcessStore) SetAppendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
}

// AppendCount returns how many runs were stored
func (m *MockProcessStore) AppendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// MockHistoryStore is a mock implementation of HistoryStore for testing
type MockHistoryStore struct {
	mu        sync.Mutex
	entries   []types.HistoryEntry
	appendErr error
}

// NewMockHistoryStore creates an empty history store
func NewMockHistoryStore() *MockHistoryStore {
	return &MockHistoryStore{}
}

// Append stores a history entry
func (m *MockHistoryStore) Append(entry types.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

// List returns stored entries, most recent first
func (m *MockHistoryStore) List(limit int) ([]types.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.HistoryEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		out = append(out, m.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// SetAppendError sets the error to return from Append
func (m *MockHistoryStore) SetAppendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
}

// MockNotifier is a mock implementation of Notifier for testing
type MockNotifier struct {
	mu           sync.Mutex
	startCount   int
	successCount int
	failureCount int
	lastStatus   types.ProcessStatus
}

// NewMockNotifier creates a notifier that records calls
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// NotifyRunStart records a run start
func (m *MockNotifier) NotifyRunStart(processID string, instruction string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCount++
}

// NotifyRunSuccess records a successful run
func (m *MockNotifier) NotifyRunSuccess(processID string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successCount++
}

// NotifyRunFailure records a failed run
func (m *MockNotifier) NotifyRunFailure(processID string, status types.ProcessStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureCount++
	m.lastStatus = status
}

// NotifyWaveStatus is a no-op for the mock
func (m *MockNotifier) NotifyWaveStatus(running int, pending int) {}

// StartCount returns recorded run starts
func (m *MockNotifier) StartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCount
}

// SuccessCount returns recorded successes
func (m *MockNotifier) SuccessCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.successCount
}

// FailureCount returns recorded failures
func (m *MockNotifier) FailureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failureCount
}

// LastStatus returns the status of the most recent failure
func (m *MockNotifier) LastStatus() types.ProcessStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastStatus
}
