// Package shell runs individual step commands and captures their output.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/breakwater/breakwater/pkg/logger"
)

// Result is the outcome of one command execution.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Options control where and how a command runs.
type Options struct {
	// Cwd is the working directory; empty inherits the current one.
	Cwd string
	// Env entries are appended to the inherited environment.
	Env map[string]string
	// Timeout kills the command when exceeded; zero means no limit.
	Timeout time.Duration
	// Stdout and Stderr receive a live copy of the captured streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Runner executes shell commands.
type Runner struct {
	logger logger.Logger
}

// NewRunner creates a command runner.
func NewRunner(log logger.Logger) *Runner {
	return &Runner{logger: log}
}

// Run executes a command and captures its output.
//
// A non-zero exit or a timeout is reported through the result, not the
// error; the error is reserved for commands that could not be run at all.
func (r *Runner) Run(ctx context.Context, command string, opts Options) (*Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := createCommand(runCtx, command)
	cmd.Dir = opts.Cwd

	if len(opts.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range opts.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, opts.Stdout)
	cmd.Stderr = tee(&stderr, opts.Stderr)
	// Grandchildren can hold the output pipes open past the kill.
	cmd.WaitDelay = 5 * time.Second

	if r.logger != nil {
		r.logger.Debug("Executing command",
			logger.WithField("command", command),
			logger.WithField("cwd", opts.Cwd))
	}

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if opts.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if result.TimedOut || ctx.Err() != nil {
			result.ExitCode = -1
			return result, nil
		}
		// Could not start at all.
		result.ExitCode = -1
		result.Stderr = err.Error()
		return result, err
	}

	return result, nil
}

// createCommand builds an exec.Cmd from a command string.
// Commands using shell operators run under sh -c; simple commands are
// split on whitespace and run directly.
func createCommand(ctx context.Context, command string) *exec.Cmd {
	if strings.Contains(command, "&&") || strings.Contains(command, "||") ||
		strings.Contains(command, "|") || strings.Contains(command, ";") ||
		strings.Contains(command, ">") || strings.Contains(command, "<") ||
		strings.Contains(command, "$") || strings.Contains(command, "*") ||
		strings.Contains(command, "\"") || strings.Contains(command, "'") {
		return exec.CommandContext(ctx, "sh", "-c", command)
	}

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return exec.CommandContext(ctx, "sh", "-c", command)
	}
	return exec.CommandContext(ctx, parts[0], parts[1:]...)
}

func tee(buf io.Writer, extra io.Writer) io.Writer {
	if extra == nil {
		return buf
	}
	return io.MultiWriter(buf, extra)
}
