// Package allowlist decides which commands run without prompting.
//
// Three sources feed the decision: built-in safe prefixes for read-only
// commands, a session list that lives in memory, and a permanent list
// replayed from an append-only change log.
package allowlist

import (
	"sort"
	"strings"
	"sync"

	"github.com/breakwater/breakwater/pkg/types"
)

// Normalize collapses runs of whitespace in a command.
// Commands are matched textually; quoting and escaping are not interpreted.
func Normalize(command string) string {
	return strings.Join(strings.Fields(command), " ")
}

// DerivePattern extracts the allow-list pattern for a command.
//
// A bare command is stored whole. A command with arguments is reduced to
// its binary plus first subcommand ("git commit -m msg" becomes
// "git commit"), so one approval covers the whole command family.
func DerivePattern(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return strings.TrimSpace(command)
	}
	if len(fields) > 2 {
		fields = fields[:2]
	}
	return strings.Join(fields, " ")
}

// Matches reports whether a command matches an allow-list entry.
// Matching is case-insensitive: the command equals the entry or continues
// past it at a word boundary.
func Matches(command, entry string) bool {
	cmd := strings.ToLower(strings.TrimSpace(command))
	ent := strings.ToLower(strings.TrimSpace(entry))
	if ent == "" {
		return false
	}
	return cmd == ent || strings.HasPrefix(cmd, ent+" ")
}

// Store is a single tier of the allow list.
// Implementations serialize writes and allow concurrent reads.
type Store interface {
	// Add allows the given pattern.
	Add(pattern string) error
	// Remove revokes the given pattern. It reports whether the pattern
	// was present.
	Remove(pattern string) (bool, error)
	// Allows reports whether the command matches any allowed pattern.
	Allows(command string) bool
	// List returns the currently allowed patterns in sorted order.
	List() []string
}

// Log is the durable change feed behind a permanent store.
// Entries are only ever appended; the current list is derived by replay.
type Log interface {
	Append(entry types.AllowListEntry) error
	Replay() ([]types.AllowListEntry, error)
}

// MemoryStore is the session-scoped allow list. Entries vanish with the
// process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]bool
}

// NewMemoryStore creates an empty session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]bool)}
}

// Add allows a pattern for the rest of the session.
func (s *MemoryStore) Add(pattern string) error {
	key := Normalize(pattern)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = true
	return nil
}

// Remove revokes a session pattern.
func (s *MemoryStore) Remove(pattern string) (bool, error) {
	key := Normalize(pattern)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.entries[key] {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// Allows reports whether the command matches a session entry.
func (s *MemoryStore) Allows(command string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for entry := range s.entries {
		if Matches(command, entry) {
			return true
		}
	}
	return false
}

// List returns the session patterns in sorted order.
func (s *MemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.entries)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
