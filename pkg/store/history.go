package store

import (
	"encoding/json"
	"sync"

	"github.com/breakwater/breakwater/pkg/types"
)

// HistoryLog records every instruction together with the commands it ran.
type HistoryLog struct {
	mu   sync.Mutex
	path string
}

// NewHistoryLog creates a history store writing to the given JSONL file.
func NewHistoryLog(path string) *HistoryLog {
	return &HistoryLog{path: path}
}

// Append records one history entry.
func (h *HistoryLog) Append(entry types.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return appendJSONL(h.path, entry)
}

// List returns history entries, most recent first.
// A limit of zero or less returns everything.
func (h *HistoryLog) List(limit int) ([]types.HistoryEntry, error) {
	var entries []types.HistoryEntry

	err := readJSONL(h.path, func(line []byte) error {
		var entry types.HistoryEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
