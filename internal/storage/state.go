// internal/storage/state.go
package storage

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
)

// Durable state keys
const (
	KeyAccessToken          = "access_token"
	KeyUserData             = "user_data"
	KeyIsLoggedIn           = "isLoggedIn"
	KeySelectedProjectID    = "selectedProjectId"
	KeySelectedProjectTitle = "selectedProjectTitle"
	KeyCurrentProject       = "current_project"
)

// SessionKeys are removed on logout
var SessionKeys = []string{
	KeyAccessToken, KeyUserData, KeyIsLoggedIn,
	KeySelectedProjectID, KeySelectedProjectTitle, KeyCurrentProject,
}

// StateStore is a durable string key/value store. A missing key is
// absent, never an error, and removing absent keys succeeds.
type StateStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(keys ...string) error
	Close() error
}

// Open creates the store selected by driver: "file", "sqlite" or "memory"
func Open(driver, dataDir, stateFile string) (StateStore, error) {
	switch driver {
	case "", "file":
		return NewFileStorage(dataDir, stateFile)
	case "sqlite":
		return NewSQLiteStorage(filepath.Join(dataDir, "state.db"))
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// MemoryStorage keeps state in process memory
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Remove(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *MemoryStorage) Close() error { return nil }

// Keys returns the stored keys, sorted
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
