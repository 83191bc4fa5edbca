// Package store persists runs, history, and allow-list changes under the
// state directory as append-only JSONL files.
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDirName is the state directory created under the user's home.
const DefaultDirName = ".breakwater"

// DefaultStateDir resolves the default state directory (~/.breakwater).
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// EnsureLayout creates the state directory and its subdirectories.
func EnsureLayout(stateDir string) error {
	for _, dir := range []string{stateDir, RunStateDir(stateDir), LogsDir(stateDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory %s: %w", dir, err)
		}
	}
	return nil
}

// ConfigPath returns the config file location inside the state directory.
func ConfigPath(stateDir string) string {
	return filepath.Join(stateDir, "config.yaml")
}

// ProcessesPath returns the finished-run log location.
func ProcessesPath(stateDir string) string {
	return filepath.Join(stateDir, "processes.jsonl")
}

// HistoryPath returns the instruction history location.
func HistoryPath(stateDir string) string {
	return filepath.Join(stateDir, "history.jsonl")
}

// AllowListPath returns the allow-list change log location.
func AllowListPath(stateDir string) string {
	return filepath.Join(stateDir, "allowlist.jsonl")
}

// RunStateDir returns the directory holding live run state files.
func RunStateDir(stateDir string) string {
	return filepath.Join(stateDir, "state")
}

// LogsDir returns the directory holding per-run output logs.
func LogsDir(stateDir string) string {
	return filepath.Join(stateDir, "logs")
}

// RunLogPath returns the output log location for one run.
func RunLogPath(stateDir, processID string) string {
	return filepath.Join(LogsDir(stateDir), processID+".log")
}
