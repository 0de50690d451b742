// internal/storage/file_storage.go
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

// FileStorage keeps the state as one JSON object file. Reads are served
// from an in-memory copy; every write replaces the file atomically.
type FileStorage struct {
	BaseDir string
	path    string

	// fileMu serializes reads and replacements of the state file
	fileMu sync.Mutex

	mu     sync.RWMutex
	values map[string]string
}

// NewFileStorage opens (or creates) baseDir/filename
func NewFileStorage(baseDir, filename string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if filename == "" {
		filename = "state.json"
	}

	fs := &FileStorage{
		BaseDir: baseDir,
		path:    filepath.Join(baseDir, filename),
		values:  make(map[string]string),
	}
	if _, err := fs.Reload(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Path returns the state file path
func (fs *FileStorage) Path() string {
	return fs.path
}

func (fs *FileStorage) Get(key string) (string, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	v, ok := fs.values[key]
	return v, ok
}

func (fs *FileStorage) Set(key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if cur, ok := fs.values[key]; ok && cur == value {
		return nil
	}
	next := maps.Clone(fs.values)
	next[key] = value
	if err := fs.saveJSON(next); err != nil {
		return err
	}
	fs.values = next
	return nil
}

func (fs *FileStorage) Remove(keys ...string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	next := maps.Clone(fs.values)
	changed := false
	for _, k := range keys {
		if _, ok := next[k]; ok {
			delete(next, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := fs.saveJSON(next); err != nil {
		return err
	}
	fs.values = next
	return nil
}

func (fs *FileStorage) Close() error { return nil }

// Keys returns the stored keys, sorted
func (fs *FileStorage) Keys() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	keys := make([]string, 0, len(fs.values))
	for k := range fs.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reload re-reads the file and reports whether the contents changed. A
// missing or empty file is an empty state; a corrupt file is an error.
func (fs *FileStorage) Reload() (bool, error) {
	fs.fileMu.Lock()
	content, err := os.ReadFile(fs.path)
	fs.fileMu.Unlock()

	loaded := make(map[string]string)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return false, fmt.Errorf("read state file: %w", err)
	case len(content) > 0:
		if err := json.Unmarshal(content, &loaded); err != nil {
			return false, fmt.Errorf("parse state file: %w", err)
		}
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if maps.Equal(fs.values, loaded) {
		return false, nil
	}
	fs.values = loaded
	return true, nil
}

func (fs *FileStorage) saveJSON(values map[string]string) error {
	content, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return fs.saveTextFile(content)
}

// saveTextFile writes through a temp file and a rename
func (fs *FileStorage) saveTextFile(content []byte) error {
	fs.fileMu.Lock()
	defer fs.fileMu.Unlock()

	tempPath := fs.path + ".tmp"
	if err := os.WriteFile(tempPath, content, 0600); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := os.Rename(tempPath, fs.path); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			utils.GetLogger().Warn("failed to clean up temporary state file", map[string]interface{}{
				"path":  tempPath,
				"error": removeErr,
			})
		}
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Watch reloads the state whenever another process rewrites the file and
// calls onChange after a reload that changed something. It blocks until
// ctx is done.
func (fs *FileStorage) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// the file itself is replaced on every write, so watch its directory
	if err := watcher.Add(fs.BaseDir); err != nil {
		return fmt.Errorf("watch %s: %w", fs.BaseDir, err)
	}

	logger := utils.GetLogger()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(fs.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			changed, err := fs.Reload()
			if err != nil {
				// usually a partial write; the next event retries
				logger.Debug("state reload failed", map[string]interface{}{"error": err})
				continue
			}
			if changed && onChange != nil {
				onChange()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("state watcher error", map[string]interface{}{"error": err})

		case <-ctx.Done():
			return nil
		}
	}
}
