package cli

import (
	"strings"
	"testing"
)

func TestAllowAddListRemove(t *testing.T) {
	tempDir := t.TempDir()
	originalStateDir := stateDir
	stateDir = tempDir
	defer func() { stateDir = originalStateDir }()

	// Patterns are normalized on the way in.
	if err := runAllowAdd("  Terraform   Plan  "); err != nil {
		t.Fatalf("runAllowAdd failed: %v", err)
	}

	permanent, err := openPermanentStore(tempDir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	patterns := permanent.List()
	if len(patterns) != 1 || patterns[0] != "terraform plan" {
		t.Fatalf("expected normalized pattern, got %v", patterns)
	}
	if !permanent.Allows("terraform plan -out tf.plan") {
		t.Error("added pattern should match an extended command")
	}

	if err := runAllowRemove("terraform plan"); err != nil {
		t.Fatalf("runAllowRemove failed: %v", err)
	}

	permanent, err = openPermanentStore(tempDir)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	if got := permanent.List(); len(got) != 0 {
		t.Errorf("expected empty allow list after removal, got %v", got)
	}

	// Removing again is a no-op, not an error.
	if err := runAllowRemove("terraform plan"); err != nil {
		t.Errorf("removing an absent pattern should not error: %v", err)
	}
}

func TestRunAllowAdd_EmptyPattern(t *testing.T) {
	tempDir := t.TempDir()
	originalStateDir := stateDir
	stateDir = tempDir
	defer func() { stateDir = originalStateDir }()

	err := runAllowAdd("   ")
	if err == nil {
		t.Fatal("expected error for empty pattern")
	}
	if !strings.Contains(err.Error(), "empty pattern") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunAllowList_EmptyStore(t *testing.T) {
	tempDir := t.TempDir()
	originalStateDir := stateDir
	stateDir = tempDir
	defer func() { stateDir = originalStateDir }()

	if err := runAllowList(false); err != nil {
		t.Errorf("runAllowList on empty store failed: %v", err)
	}
}
