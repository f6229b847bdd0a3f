// Package kv provides the small key/value persistence surface used for
// per-user state such as recently-used records.
package kv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage is a string key/value store. Implementations must be safe for
// concurrent use.
type Storage interface {
	// GetItem returns the stored value and whether the key exists.
	GetItem(key string) (string, bool)
	// SetItem stores a value under the key, replacing any previous value.
	SetItem(key, value string) error
}

// Memory is an in-process Storage, mainly for tests and single-node use.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

func (m *Memory) GetItem(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.items[key]
	return value, ok
}

func (m *Memory) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

// File is a Storage persisted as a single JSON file. The whole map is
// rewritten on every SetItem; a corrupt or missing file reads as empty.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) GetItem(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.load()
	value, ok := items[key]
	return value, ok
}

func (f *File) SetItem(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.load()
	items[key] = value

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode kv file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create kv dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write kv file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace kv file: %w", err)
	}
	return nil
}

func (f *File) load() map[string]string {
	items := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if err != nil {
		return items
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return make(map[string]string)
	}
	return items
}
