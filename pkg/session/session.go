// Package session captures a snapshot of the user's terminal environment.
//
// The snapshot travels with every planning request so generated commands
// match the platform, shell, and tooling actually present. Only a curated
// set of environment variables is captured to avoid leaking secrets.
package session

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

const probeTimeout = 2 * time.Second

// safeEnvKeys is the curated subset of environment variables included in
// the snapshot.
var safeEnvKeys = []string{
	"PATH", "LANG", "LC_ALL", "TERM", "EDITOR", "VISUAL",
	"VIRTUAL_ENV", "CONDA_DEFAULT_ENV", "DOCKER_HOST",
	"GOPATH", "CARGO_HOME", "NODE_PATH",
}

// packageManagers is probed in order; the first one on PATH wins.
var packageManagers = []string{
	"brew", "apt", "dnf", "yum", "pacman", "zypper", "apk", "nix",
}

// Session is a snapshot of the current terminal environment plus the
// commands run so far.
type Session struct {
	Cwd            string
	Shell          string
	OSName         string
	OSVersion      string
	Arch           string
	Distro         string
	PackageManager string
	Username       string
	Home           string
	GitBranch      string

	mu      sync.RWMutex
	history []string
	env     map[string]string
}

// Collect builds a snapshot of the current environment.
// Every probe is best effort; missing pieces stay empty.
func Collect() *Session {
	cwd, _ := os.Getwd()
	home, _ := os.UserHomeDir()

	s := &Session{
		Cwd:            cwd,
		Shell:          envOr("SHELL", "unknown"),
		OSName:         runtime.GOOS,
		OSVersion:      kernelVersion(),
		Arch:           runtime.GOARCH,
		Distro:         detectDistro(),
		PackageManager: detectPackageManager(),
		Username:       envOr("USER", "unknown"),
		Home:           home,
		GitBranch:      gitBranch(cwd),
		env:            make(map[string]string),
	}

	for _, key := range safeEnvKeys {
		if value := os.Getenv(key); value != "" {
			s.env[key] = value
		}
	}

	return s
}

// Record appends a command to the session history.
func (s *Session) Record(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, command)
}

// History returns the most recent n commands, oldest first.
// A limit of zero or less returns everything.
func (s *Session) History(n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if n > 0 && len(s.history) > n {
		start = len(s.history) - n
	}
	out := make([]string, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// Env returns a captured environment variable, or empty when not captured.
func (s *Session) Env(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env[key]
}

// RefreshCwd re-reads the working directory and git branch.
func (s *Session) RefreshCwd() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cwd = cwd
	s.GitBranch = gitBranch(cwd)
}

// Summary renders the snapshot as a compact context paragraph.
func (s *Session) Summary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := []string{
		fmt.Sprintf("OS: %s %s (%s)", s.OSName, s.OSVersion, s.Arch),
		fmt.Sprintf("Shell: %s", s.Shell),
		fmt.Sprintf("CWD: %s", s.Cwd),
		fmt.Sprintf("User: %s", s.Username),
		fmt.Sprintf("Package manager: %s", s.PackageManager),
	}

	if s.Distro != "" {
		parts = append(parts, fmt.Sprintf("Distro: %s", s.Distro))
	}
	if s.GitBranch != "" {
		parts = append(parts, fmt.Sprintf("Git branch: %s", s.GitBranch))
	}
	if venv := s.env["VIRTUAL_ENV"]; venv != "" {
		parts = append(parts, fmt.Sprintf("Python venv: %s", venv))
	}
	if conda := s.env["CONDA_DEFAULT_ENV"]; conda != "" {
		parts = append(parts, fmt.Sprintf("Conda env: %s", conda))
	}

	recent := s.history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	if len(recent) == 0 {
		recent = []string{"(none)"}
	}
	parts = append(parts, fmt.Sprintf("Recent commands: %s", strings.Join(recent, "; ")))

	return strings.Join(parts, "\n")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// detectDistro reads the pretty name from /etc/os-release.
// Empty on non-Linux systems.
func detectDistro() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "PRETTY_NAME=") {
			return strings.Trim(strings.SplitN(line, "=", 2)[1], "\"")
		}
	}
	return ""
}

// detectPackageManager returns the first package manager found on PATH.
func detectPackageManager() string {
	for _, pm := range packageManagers {
		if _, err := exec.LookPath(pm); err == nil {
			return pm
		}
	}
	return "unknown"
}

// gitBranch returns the current branch, or empty outside a repository.
func gitBranch(cwd string) string {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = cwd
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// kernelVersion returns the kernel release string.
func kernelVersion() string {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "uname", "-r").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
