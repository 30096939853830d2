// Package archive provides durable sinks for exported audit batches. A sink
// only needs to store named JSON blobs; the audit archiver decides what goes
// in them and when.
package archive

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Store persists named payloads. Keys are slash-separated paths chosen by the
// caller; writing an existing key overwrites it.
type Store interface {
	Put(ctx context.Context, key string, payload []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Keys(ctx context.Context) ([]string, error)
}

// Memory is an in-process store used in tests and as the default sink.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, key string, payload []byte) error {
	if key == "" {
		return fmt.Errorf("archive: empty key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), payload...)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("archive: key %s not found", key)
	}
	return append([]byte(nil), payload...), nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Filesystem stores each object as a file under a root directory. Keys map to
// relative paths; path separators in keys become directories.
type Filesystem struct {
	root string
}

// NewFilesystem returns a store rooted at dir, creating it if needed.
func NewFilesystem(dir string) (*Filesystem, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: create root: %w", err)
	}
	return &Filesystem{root: dir}, nil
}

func (f *Filesystem) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("archive: invalid key %q", key)
	}
	return f.root + string(os.PathSeparator) + strings.ReplaceAll(key, "/", string(os.PathSeparator)), nil
}

func (f *Filesystem) Put(_ context.Context, key string, payload []byte) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if idx := strings.LastIndexByte(path, os.PathSeparator); idx > 0 {
		if err := os.MkdirAll(path[:idx], 0o755); err != nil {
			return fmt.Errorf("archive: create dir: %w", err)
		}
	}
	return os.WriteFile(path, payload, 0o644)
}

func (f *Filesystem) Get(_ context.Context, key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (f *Filesystem) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := walk(f.root, "", &keys)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func walk(dir, prefix string, keys *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		key := name
		if prefix != "" {
			key = prefix + "/" + name
		}
		if entry.IsDir() {
			if err := walk(dir+string(os.PathSeparator)+name, key, keys); err != nil {
				return err
			}
			continue
		}
		*keys = append(*keys, key)
	}
	return nil
}
