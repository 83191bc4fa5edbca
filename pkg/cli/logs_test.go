package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/breakwater/breakwater/pkg/store"
)

func TestReadLastNLines(t *testing.T) {
	tempDir := t.TempDir()
	logFile := filepath.Join(tempDir, "run.log")

	var content strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&content, "line %d\n", i)
	}
	if err := os.WriteFile(logFile, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to write log file: %v", err)
	}

	got, err := readLastNLines(logFile, 3)
	if err != nil {
		t.Fatalf("readLastNLines failed: %v", err)
	}
	if got != "line 8\nline 9\nline 10\n" {
		t.Errorf("expected last three lines, got %q", got)
	}

	// Asking for more than the file holds returns everything.
	got, err = readLastNLines(logFile, 100)
	if err != nil {
		t.Fatalf("readLastNLines failed: %v", err)
	}
	if !strings.HasPrefix(got, "line 1\n") || !strings.HasSuffix(got, "line 10\n") {
		t.Errorf("expected all lines, got %q", got)
	}
}

func TestReadLastNLines_MissingFile(t *testing.T) {
	if _, err := readLastNLines(filepath.Join(t.TempDir(), "absent.log"), 5); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRunLogs_MissingRun(t *testing.T) {
	tempDir := t.TempDir()
	originalStateDir := stateDir
	stateDir = tempDir
	defer func() { stateDir = originalStateDir }()

	err := runLogs("no-such-run", false, 10)
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
	if !strings.Contains(err.Error(), "no log for run") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunLogs_ShowsTail(t *testing.T) {
	tempDir := t.TempDir()
	originalStateDir := stateDir
	stateDir = tempDir
	defer func() { stateDir = originalStateDir }()

	if err := store.EnsureLayout(tempDir); err != nil {
		t.Fatalf("failed to create layout: %v", err)
	}

	logFile := store.RunLogPath(tempDir, "abc123")
	if err := os.WriteFile(logFile, []byte("step 1 ok\nstep 2 ok\n"), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	if err := runLogs("abc123", false, 50); err != nil {
		t.Errorf("runLogs failed: %v", err)
	}
}
