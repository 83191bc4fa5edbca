package store

import (
	"encoding/json"
	"sync"

	"github.com/breakwater/breakwater/pkg/types"
)

// AllowLog is the durable allow-list change feed.
// It satisfies allowlist.Log.
type AllowLog struct {
	mu   sync.Mutex
	path string
}

// NewAllowLog creates a change log writing to the given JSONL file.
func NewAllowLog(path string) *AllowLog {
	return &AllowLog{path: path}
}

// Append records one allow-list change.
func (a *AllowLog) Append(entry types.AllowListEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return appendJSONL(a.path, entry)
}

// Replay returns all recorded changes in append order.
// A missing file yields an empty history.
func (a *AllowLog) Replay() ([]types.AllowListEntry, error) {
	var entries []types.AllowListEntry

	err := readJSONL(a.path, func(line []byte) error {
		var entry types.AllowListEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
