// Package memory implements the persistence backend as per-table maps held
// in process. It is the default driver and the substrate the snapshot-backed
// SQL drivers embed.
package memory

import (
	"context"
	"sort"
	"sync"

	"reqcore/pkg/domain"
)

// Store holds one map per table. Rows are cloned on the way in and on the
// way out, so callers never share map references with the store.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string]domain.Row
}

// New returns an empty store.
func New() *Store {
	return &Store{tables: make(map[string]map[string]domain.Row)}
}

func kindOf(table string) domain.EntityType {
	for _, kind := range domain.EntityTypes() {
		if kind.Table() == table {
			return kind
		}
	}
	return domain.EntityType(table)
}

func (s *Store) table(name string) map[string]domain.Row {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[string]domain.Row)
		s.tables[name] = t
	}
	return t
}

func (s *Store) Insert(_ context.Context, table string, row domain.Row) (domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := domain.RowString(row, "id")
	if id == "" {
		return nil, domain.ValidationError{Entity: kindOf(table), Field: "id", Reason: "missing id"}
	}
	t := s.table(table)
	if _, exists := t[id]; exists {
		return nil, domain.ValidationError{Entity: kindOf(table), Field: "id", Reason: "duplicate id"}
	}
	t[id] = domain.CloneRow(row)
	return domain.CloneRow(row), nil
}

func (s *Store) Update(_ context.Context, table, id string, patch domain.Row, expectedVersion *int64) (domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(table)
	existing, ok := t[id]
	if !ok {
		return nil, domain.NotFoundError{Entity: kindOf(table), ID: id}
	}
	if expectedVersion != nil && domain.RowVersion(existing) != *expectedVersion {
		return nil, domain.ConflictError{
			Entity:   kindOf(table),
			ID:       id,
			Expected: *expectedVersion,
			Actual:   domain.RowVersion(existing),
		}
	}
	next := domain.CloneRow(existing)
	for field, value := range patch {
		next[field] = value
	}
	t[id] = next
	return domain.CloneRow(next), nil
}

func (s *Store) Get(_ context.Context, table, id string) (domain.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.tables[table][id]
	if !ok {
		return nil, domain.NotFoundError{Entity: kindOf(table), ID: id}
	}
	return domain.CloneRow(row), nil
}

func (s *Store) Delete(ctx context.Context, table, id string, patch domain.Row) (domain.Row, error) {
	// Soft delete is an unconditional patch; the pipeline has already read
	// the row and decided.
	return s.Update(ctx, table, id, patch, nil)
}

func (s *Store) List(_ context.Context, table string) ([]domain.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.tables[table]
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]domain.Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, domain.CloneRow(t[id]))
	}
	return rows, nil
}

// Snapshot returns a deep copy of every table, keyed by table name. The SQL
// snapshot drivers persist this structure.
func (s *Store) Snapshot() map[string][]domain.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]domain.Row, len(s.tables))
	for name, t := range s.tables {
		ids := make([]string, 0, len(t))
		for id := range t {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		rows := make([]domain.Row, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, domain.CloneRow(t[id]))
		}
		out[name] = rows
	}
	return out
}

// Restore replaces the store contents with a previously captured snapshot.
func (s *Store) Restore(snapshot map[string][]domain.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]map[string]domain.Row, len(snapshot))
	for name, rows := range snapshot {
		t := make(map[string]domain.Row, len(rows))
		for _, row := range rows {
			t[domain.RowString(row, "id")] = domain.CloneRow(row)
		}
		s.tables[name] = t
	}
}
