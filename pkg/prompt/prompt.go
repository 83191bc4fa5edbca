// Package prompt implements the interactive trust prompt: a command
// preview plus a one-key decision, with a typed confirmation token for
// critical commands.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/breakwater/breakwater/pkg/safety"
	"github.com/breakwater/breakwater/pkg/types"
)

// TerminalResolver collects trust decisions from an interactive
// terminal. It renders a preview box and maps single-key answers to
// the decision contract.
type TerminalResolver struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalResolver reads answers from in and renders to out,
// typically os.Stdin and os.Stdout.
func NewTerminalResolver(in io.Reader, out io.Writer) *TerminalResolver {
	return &TerminalResolver{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Resolve shows the command and returns the user's decision. Critical
// commands accept only the typed confirmation token; every other
// answer maps to cancel.
func (r *TerminalResolver) Resolve(ctx context.Context, req types.PromptRequest) (types.PromptResponse, error) {
	if err := ctx.Err(); err != nil {
		return types.PromptResponse{}, err
	}

	r.renderPreview(req)

	if req.Tier == types.TrustTierCritical {
		return r.resolveCritical()
	}
	return r.resolveOptions(len(req.Warnings) > 0)
}

func (r *TerminalResolver) renderPreview(req types.PromptRequest) {
	borderStyle := color.New(color.FgCyan)
	if len(req.Warnings) > 0 || req.Tier == types.TrustTierCritical {
		borderStyle = color.New(color.FgRed)
	}

	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "  %s\n", borderStyle.Sprintf("┌─ Command Preview ─────────────────────"))
	for _, line := range strings.Split(req.Command, "\n") {
		fmt.Fprintf(r.out, "  %s  %s\n", borderStyle.Sprint("│"), line)
	}
	fmt.Fprintf(r.out, "  %s\n", borderStyle.Sprintf("└───────────────────────────────────────"))

	if len(req.Warnings) > 0 {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, safety.FormatWarnings(req.Warnings))
	}
}

func (r *TerminalResolver) resolveCritical() (types.PromptResponse, error) {
	fmt.Fprintf(r.out, "\n  %s\n", color.RedString("This command is critically dangerous."))
	fmt.Fprintf(r.out, "  %s ", color.RedString("Type '%s' to confirm:", safety.ConfirmToken))

	answer, err := r.readAnswer()
	if err != nil {
		return types.PromptResponse{}, err
	}
	if answer != safety.ConfirmToken {
		fmt.Fprintf(r.out, "  %s\n", color.New(color.Faint).Sprint("Cancelled."))
		return types.PromptResponse{Decision: types.DecisionCancel}, nil
	}
	return types.PromptResponse{Decision: types.DecisionConfirmToken}, nil
}

func (r *TerminalResolver) resolveOptions(hasWarnings bool) (types.PromptResponse, error) {
	bold := color.New(color.Bold)
	warnTag := ""
	if hasWarnings {
		warnTag = " " + color.YellowString("(has warnings)")
	}

	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "  %s execute        %s always allow   %s session allow   %s cancel%s\n",
		bold.Sprint("y"), bold.Sprint("a"), bold.Sprint("s"), bold.Sprint("n"), warnTag)
	fmt.Fprintf(r.out, "\n  %s [y/a/s/N] ", bold.Sprint("Run?"))

	answer, err := r.readAnswer()
	if err != nil {
		return types.PromptResponse{}, err
	}

	switch answer {
	case "y", "yes":
		return types.PromptResponse{Decision: types.DecisionRunOnce}, nil
	case "a":
		fmt.Fprintf(r.out, "  %s Added to permanent allow list\n", color.GreenString("✓"))
		return types.PromptResponse{Decision: types.DecisionAlwaysAllow}, nil
	case "s":
		fmt.Fprintf(r.out, "  %s Allowed for this session\n", color.GreenString("✓"))
		return types.PromptResponse{Decision: types.DecisionSessionAllow}, nil
	default:
		fmt.Fprintf(r.out, "  %s\n", color.New(color.Faint).Sprint("Cancelled."))
		return types.PromptResponse{Decision: types.DecisionCancel}, nil
	}
}

// readAnswer reads one line. EOF with no input counts as an empty
// answer so a closed stdin cancels instead of erroring.
func (r *TerminalResolver) readAnswer() (string, error) {
	line, err := r.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

// AutoResolver answers every prompt with a fixed decision. Used for
// non-interactive runs where no terminal is attached.
type AutoResolver struct {
	decision types.PromptDecision
}

// NewAutoResolver creates a resolver that always answers decision.
func NewAutoResolver(decision types.PromptDecision) *AutoResolver {
	return &AutoResolver{decision: decision}
}

// Resolve returns the fixed decision without rendering anything.
func (r *AutoResolver) Resolve(ctx context.Context, req types.PromptRequest) (types.PromptResponse, error) {
	if err := ctx.Err(); err != nil {
		return types.PromptResponse{}, err
	}
	return types.PromptResponse{Decision: r.decision}, nil
}
