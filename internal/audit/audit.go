// Package audit collects the change records the pipeline emits and exports
// them in batches to an archive sink.
package audit

import (
	"sync"

	"reqcore/pkg/domain"
)

// Trail receives one Change per persisted mutation.
type Trail interface {
	Record(change domain.Change) error
}

// Memory is an in-process trail. It retains every change in order and hands
// out copies so callers cannot mutate history.
type Memory struct {
	mu      sync.RWMutex
	changes []domain.Change
}

// NewMemory returns an empty trail.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(change domain.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, change)
	return nil
}

// Changes returns a snapshot of all recorded changes in emission order.
func (m *Memory) Changes() []domain.Change {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Change, len(m.changes))
	copy(out, m.changes)
	return out
}

// Len reports how many changes the trail holds.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.changes)
}

// drainFrom returns changes recorded at or after offset.
func (m *Memory) drainFrom(offset int) []domain.Change {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if offset >= len(m.changes) {
		return nil
	}
	out := make([]domain.Change, len(m.changes)-offset)
	copy(out, m.changes[offset:])
	return out
}
