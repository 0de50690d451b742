package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.log")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	l := NewLogger(f)
	l.Info("project selected", map[string]interface{}{"project_id": "demo-1"})
	l.Debug("hidden at info level", nil)
	l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"project selected"`)
	assert.Contains(t, out, `"project_id":"demo-1"`)
	assert.False(t, strings.Contains(out, "hidden at info level"))

	l.SetLogLevel(DEBUG)
	l.Debugf("now visible %d", 1)
	l.Sync()
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "now visible 1")
}

func TestDisabledLoggerIsSilent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "off.log")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	l := NewLogger(f)
	l.Enable(false)
	l.Error("should not appear", nil)
	l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}
