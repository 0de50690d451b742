package storage

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

// exercise runs the common contract against a store
func exercise(t *testing.T, s StateStore) {
	t.Helper()

	_, ok := s.Get(KeyAccessToken)
	assert.False(t, ok)

	require.NoError(t, s.Set(KeyAccessToken, "T"))
	require.NoError(t, s.Set(KeyIsLoggedIn, "true"))
	require.NoError(t, s.Set(KeyAccessToken, "T2"))

	v, ok := s.Get(KeyAccessToken)
	assert.True(t, ok)
	assert.Equal(t, "T2", v)

	require.NoError(t, s.Remove(KeyAccessToken, "never-set"))
	_, ok = s.Get(KeyAccessToken)
	assert.False(t, ok)

	v, ok = s.Get(KeyIsLoggedIn)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	require.NoError(t, s.Remove())
	require.NoError(t, s.Remove(SessionKeys...))
	_, ok = s.Get(KeyIsLoggedIn)
	assert.False(t, ok)
}

func TestMemoryStorage(t *testing.T) {
	exercise(t, NewMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), "state.json")
	require.NoError(t, err)
	exercise(t, fs)
}

func TestSQLiteStorage(t *testing.T) {
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)
}

func TestFileStorageSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir, "state.json")
	require.NoError(t, err)
	require.NoError(t, fs.Set(KeySelectedProjectID, "demo-2"))

	reopened, err := NewFileStorage(dir, "state.json")
	require.NoError(t, err)
	v, ok := reopened.Get(KeySelectedProjectID)
	assert.True(t, ok)
	assert.Equal(t, "demo-2", v)
	assert.Equal(t, []string{KeySelectedProjectID}, reopened.Keys())

	_, err = os.Stat(fs.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStorageCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0600))

	_, err := NewFileStorage(dir, "state.json")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), nil, 0600))
	fs, err := NewFileStorage(dir, "empty.json")
	require.NoError(t, err)
	assert.Empty(t, fs.Keys())
}

func TestFileStorageConcurrentWritesAndReloads(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir, "state.json")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				assert.NoError(t, fs.Set("k"+strconv.Itoa(i), strconv.Itoa(j)))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := fs.Reload()
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	reopened, err := NewFileStorage(dir, "state.json")
	require.NoError(t, err)
	require.Len(t, reopened.Keys(), 8)
	for i := 0; i < 8; i++ {
		v, ok := reopened.Get("k" + strconv.Itoa(i))
		assert.True(t, ok)
		assert.Equal(t, "19", v)
	}
}

func TestFileStorageWatch(t *testing.T) {
	dir := t.TempDir()
	watched, err := NewFileStorage(dir, "state.json")
	require.NoError(t, err)

	var changes atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watched.Watch(ctx, func() { changes.Add(1) }) }()

	other, err := NewFileStorage(dir, "state.json")
	require.NoError(t, err)

	// the watcher may not be registered yet; keep writing until it sees one
	require.Eventually(t, func() bool {
		_ = other.Set(KeyAccessToken, time.Now().String())
		v, ok := watched.Get(KeyAccessToken)
		return ok && v != "" && changes.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("file", dir, "state.json")
	require.NoError(t, err)
	assert.IsType(t, &FileStorage{}, s)

	s, err = Open("memory", dir, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	_, err = Open("redis", dir, "")
	assert.Error(t, err)
}

func TestSealedStorage(t *testing.T) {
	sealer, err := utils.NewSealer("state secret")
	require.NoError(t, err)
	inner := NewMemoryStorage()
	s := NewSealedStorage(inner, sealer, KeyAccessToken)
	exercise(t, s)

	require.NoError(t, s.Set(KeyAccessToken, "jwt-value"))
	require.NoError(t, s.Set(KeyIsLoggedIn, "true"))

	raw, ok := inner.Get(KeyAccessToken)
	require.True(t, ok)
	assert.NotEqual(t, "jwt-value", raw)
	raw, _ = inner.Get(KeyIsLoggedIn)
	assert.Equal(t, "true", raw)

	v, ok := s.Get(KeyAccessToken)
	assert.True(t, ok)
	assert.Equal(t, "jwt-value", v)

	// a token written before sealing was turned on reads as absent
	require.NoError(t, inner.Set(KeyAccessToken, "plain-token"))
	_, ok = s.Get(KeyAccessToken)
	assert.False(t, ok)
	assert.Same(t, inner, s.Unwrap())
}
