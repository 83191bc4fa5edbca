package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/breakwater/breakwater/pkg/types"
)

// ErrProcessNotFound is returned when no run with the requested id exists.
var ErrProcessNotFound = errors.New("process not found")

// ProcessLog is the append-only record of finished runs.
type ProcessLog struct {
	mu   sync.Mutex
	path string
}

// NewProcessLog creates a store writing to the given JSONL file.
func NewProcessLog(path string) *ProcessLog {
	return &ProcessLog{path: path}
}

// Append persists one finished run.
func (p *ProcessLog) Append(record *types.ProcessRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := appendJSONL(p.path, record); err != nil {
		return fmt.Errorf("failed to persist process %s: %w", record.ID, err)
	}
	return nil
}

// List returns finished runs, most recent first.
// A limit of zero or less returns everything.
func (p *ProcessLog) List(limit int) ([]*types.ProcessRecord, error) {
	var records []*types.ProcessRecord

	err := readJSONL(p.path, func(line []byte) error {
		var record types.ProcessRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil
		}
		records = append(records, &record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Newest entries are at the end of the file.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Get returns the run with the given id.
func (p *ProcessLog) Get(id string) (*types.ProcessRecord, error) {
	var found *types.ProcessRecord

	err := readJSONL(p.path, func(line []byte) error {
		var record types.ProcessRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil
		}
		if record.ID == id {
			found = &record
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}
	return found, nil
}
