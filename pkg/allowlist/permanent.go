package allowlist

import (
	"fmt"
	"sync"
	"time"

	"github.com/breakwater/breakwater/pkg/types"
)

// PermanentStore is the durable allow list. Every change is appended to a
// log; the in-memory cache is the log replayed in order. The log is never
// rewritten in place, so a crash mid-write can lose at most the entry
// being appended.
type PermanentStore struct {
	mu      sync.RWMutex
	log     Log
	entries map[string]bool
}

// NewPermanentStore replays the change log and returns a store backed by it.
func NewPermanentStore(log Log) (*PermanentStore, error) {
	entries, err := replayEntries(log)
	if err != nil {
		return nil, err
	}
	return &PermanentStore{log: log, entries: entries}, nil
}

// Reload replays the log again, picking up entries appended by other
// sessions since the store was created.
func (s *PermanentStore) Reload() error {
	entries, err := replayEntries(s.log)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

func replayEntries(log Log) (map[string]bool, error) {
	changes, err := log.Replay()
	if err != nil {
		return nil, fmt.Errorf("failed to replay allow-list log: %w", err)
	}

	entries := make(map[string]bool)
	for _, change := range changes {
		key := Normalize(change.Pattern)
		if key == "" {
			continue
		}
		switch change.Op {
		case types.AllowOpAdd:
			entries[key] = true
		case types.AllowOpRemove:
			delete(entries, key)
		}
	}
	return entries, nil
}

// Add appends an add change and caches the pattern.
// Adding an already-present pattern is a no-op.
func (s *PermanentStore) Add(pattern string) error {
	key := Normalize(pattern)
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries[key] {
		return nil
	}

	entry := types.AllowListEntry{
		Pattern: key,
		Scope:   types.AllowScopePermanent,
		Op:      types.AllowOpAdd,
		AddedAt: time.Now(),
	}
	if err := s.log.Append(entry); err != nil {
		return fmt.Errorf("failed to append allow-list change: %w", err)
	}

	s.entries[key] = true
	return nil
}

// Remove appends a remove change and drops the pattern from the cache.
// It reports whether the pattern was present.
func (s *PermanentStore) Remove(pattern string) (bool, error) {
	key := Normalize(pattern)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.entries[key] {
		return false, nil
	}

	entry := types.AllowListEntry{
		Pattern: key,
		Scope:   types.AllowScopePermanent,
		Op:      types.AllowOpRemove,
		AddedAt: time.Now(),
	}
	if err := s.log.Append(entry); err != nil {
		return false, fmt.Errorf("failed to append allow-list change: %w", err)
	}

	delete(s.entries, key)
	return true, nil
}

// Allows reports whether the command matches a permanent entry.
func (s *PermanentStore) Allows(command string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for entry := range s.entries {
		if Matches(command, entry) {
			return true
		}
	}
	return false
}

// List returns the permanent patterns in sorted order.
func (s *PermanentStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.entries)
}
