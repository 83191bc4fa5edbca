package engine

import (
	"context"
	"fmt"

	"github.com/breakwater/breakwater/pkg/allowlist"
	"github.com/breakwater/breakwater/pkg/interfaces"
	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/safety"
	"github.com/breakwater/breakwater/pkg/types"
)

// TrustDecisionError reports a malformed or failed prompt resolution.
// The affected step is cancelled; the plan keeps going.
type TrustDecisionError struct {
	Command string
	Err     error
}

func (e *TrustDecisionError) Error() string {
	return fmt.Sprintf("trust decision failed for %q: %v", e.Command, e.Err)
}

func (e *TrustDecisionError) Unwrap() error {
	return e.Err
}

// TrustGate classifies commands into trust tiers and resolves the
// non-automatic tiers through the prompt collaborator.
//
// Classification is re-evaluated on every execution: the allow list can
// change between runs, and between steps of the same run.
type TrustGate struct {
	builtins    *allowlist.Builtins
	session     allowlist.Store
	permanent   allowlist.Store
	prompter    interfaces.PromptResolver
	logger      logger.Logger
	autoApprove bool
}

// NewTrustGate creates a trust gate over the given allow-list tiers.
// Nil stores fall back to in-memory ones.
func NewTrustGate(
	builtins *allowlist.Builtins,
	session allowlist.Store,
	permanent allowlist.Store,
	prompter interfaces.PromptResolver,
	log logger.Logger,
	autoApprove bool,
) *TrustGate {
	if builtins == nil {
		builtins = allowlist.NewBuiltins()
	}
	if session == nil {
		session = allowlist.NewMemoryStore()
	}
	if permanent == nil {
		permanent = allowlist.NewMemoryStore()
	}
	return &TrustGate{
		builtins:    builtins,
		session:     session,
		permanent:   permanent,
		prompter:    prompter,
		logger:      log,
		autoApprove: autoApprove,
	}
}

// Classify returns the trust tier for a command plus the safety warnings
// that informed it.
//
// A critical safety match wins over everything; no allow-list entry can
// downgrade it. Below critical, the built-in safe table is consulted
// first, then the session and permanent allow lists.
func (g *TrustGate) Classify(command string) (types.TrustTier, []types.Warning) {
	cmd := allowlist.Normalize(command)
	warnings := safety.Check(cmd)

	if safety.HasCritical(warnings) {
		return types.TrustTierCritical, warnings
	}
	if g.builtins.IsSafe(cmd) {
		return types.TrustTierBuiltinSafe, warnings
	}
	if g.session.Allows(cmd) || g.permanent.Allows(cmd) {
		return types.TrustTierUserAllowed, warnings
	}
	return types.TrustTierPromptRequired, warnings
}

// Authorize resolves a classified step into a run/skip decision.
//
// Automatic tiers pass straight through. prompt_required consults the
// prompt collaborator (or auto-approve); critical accepts nothing but
// the typed confirmation token, regardless of flags or allow lists.
// A false return without error is a user cancel.
func (g *TrustGate) Authorize(ctx context.Context, req types.PromptRequest) (bool, error) {
	switch req.Tier {
	case types.TrustTierBuiltinSafe, types.TrustTierUserAllowed:
		return true, nil
	}

	if g.autoApprove && req.Tier == types.TrustTierPromptRequired {
		return true, nil
	}

	if g.prompter == nil {
		return false, &TrustDecisionError{Command: req.Command, Err: fmt.Errorf("no prompt resolver available")}
	}

	resp, err := g.prompter.Resolve(ctx, req)
	if err != nil {
		return false, &TrustDecisionError{Command: req.Command, Err: err}
	}

	if req.Tier == types.TrustTierCritical {
		// Only the typed token authorizes a critical command.
		return resp.Decision == types.DecisionConfirmToken, nil
	}

	switch resp.Decision {
	case types.DecisionRunOnce:
		return true, nil
	case types.DecisionAlwaysAllow:
		g.recordAllowLogged(req.Command, types.AllowScopePermanent)
		return true, nil
	case types.DecisionSessionAllow:
		g.recordAllowLogged(req.Command, types.AllowScopeSession)
		return true, nil
	case types.DecisionCancel:
		return false, nil
	default:
		return false, &TrustDecisionError{
			Command: req.Command,
			Err:     fmt.Errorf("unrecognized decision %q", resp.Decision),
		}
	}
}

// RecordAllow adds a pattern to the requested allow-list tier.
func (g *TrustGate) RecordAllow(pattern string, scope types.AllowScope) error {
	if scope == types.AllowScopePermanent {
		return g.permanent.Add(pattern)
	}
	return g.session.Add(pattern)
}

// IsBuiltinSafe reports whether the command matches an enabled built-in
// safe prefix.
func (g *TrustGate) IsBuiltinSafe(command string) bool {
	return g.builtins.IsSafe(command)
}

// SetBuiltinEnabled toggles one built-in safe prefix.
func (g *TrustGate) SetBuiltinEnabled(prefix string, enabled bool) {
	if enabled {
		g.builtins.Enable(prefix)
	} else {
		g.builtins.Disable(prefix)
	}
}

// ReloadAllowList refreshes the permanent tier from its backing log,
// picking up entries appended by other sessions. Stores without a log
// are left as they are.
func (g *TrustGate) ReloadAllowList() error {
	if r, ok := g.permanent.(interface{ Reload() error }); ok {
		return r.Reload()
	}
	return nil
}

// recordAllowLogged derives the allow pattern for a command and records
// it. A failed write is logged and does not block the approved run.
func (g *TrustGate) recordAllowLogged(command string, scope types.AllowScope) {
	pattern := allowlist.DerivePattern(command)
	if err := g.RecordAllow(pattern, scope); err != nil && g.logger != nil {
		g.logger.Error("Failed to record allow-list entry",
			logger.WithField("pattern", pattern),
			logger.WithField("scope", string(scope)),
			logger.WithField("error", err))
	}
}
