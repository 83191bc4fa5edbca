package engine

import (
	"os"

	"github.com/breakwater/breakwater/pkg/allowlist"
	"github.com/breakwater/breakwater/pkg/config"
	"github.com/breakwater/breakwater/pkg/interfaces"
	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/notifier"
	"github.com/breakwater/breakwater/pkg/prompt"
	"github.com/breakwater/breakwater/pkg/shell"
	"github.com/breakwater/breakwater/pkg/store"
	"github.com/breakwater/breakwater/pkg/types"
)

// DependencyFactory creates default implementations of dependencies.
// This follows the dependency injection pattern and removes hidden
// concrete fallbacks from constructors.
type DependencyFactory struct {
	stateDir string
	logger   logger.Logger
	config   *types.BreakwaterConfig
}

// NewDependencyFactory creates a new dependency factory
func NewDependencyFactory(stateDir string, log logger.Logger, cfg *types.BreakwaterConfig) *DependencyFactory {
	if log == nil {
		log = logger.CreateLogger("info")
	}
	if cfg == nil {
		cfg = config.NewManager().GetDefaultConfig()
	}
	return &DependencyFactory{
		stateDir: stateDir,
		logger:   log,
		config:   cfg,
	}
}

// CreateDefaults creates all default dependencies for Breakwater.
// The Planner is left nil; the command layer picks one per invocation.
func (f *DependencyFactory) CreateDefaults() interfaces.Dependencies {
	return f.CreateWithOverrides(interfaces.Dependencies{})
}

// CreateWithOverrides creates dependencies, filling every nil slot with
// the default implementation. Non-nil values are kept as given, and the
// trust gate is built around whichever prompter ends up in use.
func (f *DependencyFactory) CreateWithOverrides(overrides interfaces.Dependencies) interfaces.Dependencies {
	deps := overrides

	if deps.Prompter == nil {
		deps.Prompter = f.createPrompter()
	}
	if deps.AllowLog == nil {
		deps.AllowLog = f.createAllowLog()
	}
	if deps.TrustGate == nil {
		deps.TrustGate = f.createTrustGate(deps.AllowLog, deps.Prompter)
	}
	if deps.Runner == nil {
		deps.Runner = f.createRunner()
	}
	if deps.ProcessStore == nil {
		deps.ProcessStore = f.createProcessStore()
	}
	if deps.HistoryStore == nil {
		deps.HistoryStore = f.createHistoryStore()
	}
	if deps.Notifier == nil {
		deps.Notifier = f.createNotifier()
	}

	return deps
}

// Individual factory methods for each dependency

func (f *DependencyFactory) createPrompter() interfaces.PromptResolver {
	if f.config.GetAutoApprove() {
		return prompt.NewAutoResolver(types.DecisionRunOnce)
	}
	return prompt.NewTerminalResolver(os.Stdin, os.Stdout)
}

func (f *DependencyFactory) createAllowLog() interfaces.AllowLog {
	return store.NewAllowLog(store.AllowListPath(f.stateDir))
}

func (f *DependencyFactory) createTrustGate(allowLog interfaces.AllowLog, prompter interfaces.PromptResolver) interfaces.TrustGate {
	builtins := allowlist.NewBuiltins()
	builtins.ApplyConfig(f.config.Safety)

	// A failed replay degrades to an empty permanent tier; affected
	// commands prompt again instead of blocking startup.
	var permanent allowlist.Store
	if p, err := allowlist.NewPermanentStore(allowLog); err != nil {
		f.logger.Warn("Failed to replay allow list, starting empty",
			logger.WithField("error", err))
	} else {
		permanent = p
	}

	return NewTrustGate(builtins, allowlist.NewMemoryStore(), permanent, prompter, f.logger, f.config.GetAutoApprove())
}

func (f *DependencyFactory) createRunner() interfaces.CommandRunner {
	return shell.NewRunner(f.logger)
}

func (f *DependencyFactory) createProcessStore() interfaces.ProcessStore {
	return store.NewProcessLog(store.ProcessesPath(f.stateDir))
}

func (f *DependencyFactory) createHistoryStore() interfaces.HistoryStore {
	return store.NewHistoryLog(store.HistoryPath(f.stateDir))
}

func (f *DependencyFactory) createNotifier() interfaces.Notifier {
	return notifier.New(notifier.Config{
		Enabled:        f.config.NotificationsEnabled(),
		SoundOnFailure: f.config.FailureSoundEnabled(),
	}, f.logger)
}
