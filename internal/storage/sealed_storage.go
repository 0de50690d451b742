// internal/storage/sealed_storage.go
package storage

import (
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

// Sealer encrypts and decrypts single values. *utils.Sealer implements it.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// SealedStorage encrypts selected keys before they reach the inner store.
// A value that cannot be opened, e.g. one written under another secret or
// before sealing was enabled, reads as absent.
type SealedStorage struct {
	inner  StateStore
	sealer Sealer
	keys   map[string]bool
}

// NewSealedStorage wraps inner; only keys are sealed
func NewSealedStorage(inner StateStore, sealer Sealer, keys ...string) *SealedStorage {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return &SealedStorage{inner: inner, sealer: sealer, keys: set}
}

// Unwrap returns the inner store
func (s *SealedStorage) Unwrap() StateStore {
	return s.inner
}

func (s *SealedStorage) Get(key string) (string, bool) {
	value, ok := s.inner.Get(key)
	if !ok || !s.keys[key] {
		return value, ok
	}

	plain, err := s.sealer.Open(value)
	if err != nil {
		utils.GetLogger().Warn("sealed state value unreadable, ignoring it", map[string]interface{}{
			"key": key,
		})
		return "", false
	}
	return plain, true
}

func (s *SealedStorage) Set(key, value string) error {
	if s.keys[key] {
		sealed, err := s.sealer.Seal(value)
		if err != nil {
			return err
		}
		value = sealed
	}
	return s.inner.Set(key, value)
}

func (s *SealedStorage) Remove(keys ...string) error {
	return s.inner.Remove(keys...)
}

func (s *SealedStorage) Close() error {
	return s.inner.Close()
}
