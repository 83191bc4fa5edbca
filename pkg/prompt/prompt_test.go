package prompt_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/breakwater/breakwater/pkg/prompt"
	"github.com/breakwater/breakwater/pkg/types"
)

func resolve(t *testing.T, input string, req types.PromptRequest) (types.PromptResponse, string) {
	t.Helper()
	color.NoColor = true

	var out bytes.Buffer
	r := prompt.NewTerminalResolver(strings.NewReader(input), &out)
	resp, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp, out.String()
}

func TestTerminalResolver_Decisions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  types.PromptDecision
	}{
		{"y runs once", "y\n", types.DecisionRunOnce},
		{"yes runs once", "yes\n", types.DecisionRunOnce},
		{"a allows permanently", "a\n", types.DecisionAlwaysAllow},
		{"s allows for the session", "s\n", types.DecisionSessionAllow},
		{"empty answer cancels", "\n", types.DecisionCancel},
		{"n cancels", "n\n", types.DecisionCancel},
		{"anything else cancels", "q\n", types.DecisionCancel},
		{"mixed case is accepted", "Y\n", types.DecisionRunOnce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := types.PromptRequest{Command: "make deploy", Tier: types.TrustTierPromptRequired}
			resp, _ := resolve(t, tt.input, req)
			if resp.Decision != tt.want {
				t.Errorf("expected %s, got %s", tt.want, resp.Decision)
			}
		})
	}
}

func TestTerminalResolver_RendersPreview(t *testing.T) {
	req := types.PromptRequest{Command: "make deploy", Tier: types.TrustTierPromptRequired}
	_, out := resolve(t, "y\n", req)

	if !strings.Contains(out, "Command Preview") {
		t.Error("expected the preview box header")
	}
	if !strings.Contains(out, "make deploy") {
		t.Error("expected the command in the preview")
	}
	if !strings.Contains(out, "[y/a/s/N]") {
		t.Error("expected the option prompt")
	}
}

func TestTerminalResolver_MultilineCommand(t *testing.T) {
	req := types.PromptRequest{Command: "echo one\necho two", Tier: types.TrustTierPromptRequired}
	_, out := resolve(t, "y\n", req)

	if !strings.Contains(out, "│  echo one") || !strings.Contains(out, "│  echo two") {
		t.Errorf("expected each command line in the box, got:\n%s", out)
	}
}

func TestTerminalResolver_RendersWarnings(t *testing.T) {
	req := types.PromptRequest{
		Command: "rm -rf build",
		Tier:    types.TrustTierPromptRequired,
		Warnings: []types.Warning{
			{Severity: types.SeverityMedium, Reason: "recursive force delete"},
		},
	}
	_, out := resolve(t, "n\n", req)

	if !strings.Contains(out, "Safety warnings") {
		t.Error("expected the warnings block")
	}
	if !strings.Contains(out, "recursive force delete") {
		t.Error("expected the warning reason")
	}
	if !strings.Contains(out, "(has warnings)") {
		t.Error("expected the warning tag on the options line")
	}
}

func TestTerminalResolver_CriticalToken(t *testing.T) {
	req := types.PromptRequest{
		Command: "rm -rf /",
		Tier:    types.TrustTierCritical,
		Warnings: []types.Warning{
			{Severity: types.SeverityCritical, Reason: "wipes the filesystem"},
		},
	}

	tests := []struct {
		name  string
		input string
		want  types.PromptDecision
	}{
		{"token confirms", "execute\n", types.DecisionConfirmToken},
		{"token is case insensitive", "EXECUTE\n", types.DecisionConfirmToken},
		{"y is not enough", "y\n", types.DecisionCancel},
		{"empty answer cancels", "\n", types.DecisionCancel},
		{"near miss cancels", "exec\n", types.DecisionCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := resolve(t, tt.input, req)
			if resp.Decision != tt.want {
				t.Errorf("expected %s, got %s", tt.want, resp.Decision)
			}
			if !strings.Contains(out, "critically dangerous") {
				t.Error("expected the critical banner")
			}
			if strings.Contains(out, "[y/a/s/N]") {
				t.Error("critical prompts must not offer the allow options")
			}
		})
	}
}

func TestTerminalResolver_ClosedInputCancels(t *testing.T) {
	req := types.PromptRequest{Command: "make deploy", Tier: types.TrustTierPromptRequired}
	resp, _ := resolve(t, "", req)
	if resp.Decision != types.DecisionCancel {
		t.Errorf("expected cancel on closed stdin, got %s", resp.Decision)
	}
}

func TestTerminalResolver_CancelledContext(t *testing.T) {
	color.NoColor = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	r := prompt.NewTerminalResolver(strings.NewReader("y\n"), &out)
	if _, err := r.Resolve(ctx, types.PromptRequest{Command: "true"}); err == nil {
		t.Error("expected an error for a cancelled context")
	}
	if out.Len() != 0 {
		t.Error("expected no rendering after cancellation")
	}
}

func TestAutoResolver(t *testing.T) {
	r := prompt.NewAutoResolver(types.DecisionRunOnce)

	resp, err := r.Resolve(context.Background(), types.PromptRequest{Command: "true"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Decision != types.DecisionRunOnce {
		t.Errorf("expected run-once, got %s", resp.Decision)
	}
}
