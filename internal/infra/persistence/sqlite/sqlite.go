// Package sqlite persists the in-memory state to a single SQLite table as
// JSON snapshots, one blob per entity table. The snapshot is rewritten after
// every successful mutation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"reqcore/internal/infra/persistence/memory"
	"reqcore/pkg/domain"
)

var _ domain.Backend = (*Store)(nil)

// Store wraps the memory backend with SQLite durability.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// New opens or creates the database at path and hydrates the in-memory state
// from any existing snapshot.
func New(path string) (*Store, error) {
	if path == "" {
		path = "reqcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.New(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	snapshot := make(map[string][]domain.Row)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan state: %w", err)
		}
		var table []domain.Row
		if err := json.Unmarshal(payload, &table); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		snapshot[bucket] = table
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if len(snapshot) > 0 {
		s.Restore(snapshot)
	}
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.Snapshot()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for bucket, table := range snapshot {
		data, err := json.Marshal(table)
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err := tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	return tx.Commit()
}

func (s *Store) Insert(ctx context.Context, table string, row domain.Row) (domain.Row, error) {
	stored, err := s.Store.Insert(ctx, table, row)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Store) Update(ctx context.Context, table, id string, patch domain.Row, expectedVersion *int64) (domain.Row, error) {
	stored, err := s.Store.Update(ctx, table, id, patch, expectedVersion)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Store) Delete(ctx context.Context, table, id string, patch domain.Row) (domain.Row, error) {
	stored, err := s.Store.Delete(ctx, table, id, patch)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return stored, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
