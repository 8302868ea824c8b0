package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlship/mlship/internal/pipeline"
)

func resetCacheGlobals() {
	cacheDir = pipeline.DefaultCacheDir
}

// runCacheCommand executes "mlship cache <args>" against a fresh root and
// returns the captured output.
func runCacheCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetCacheGlobals()

	var buf bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"cache"}, args...))

	err := cmd.Execute()
	return buf.String(), err
}

func writeCacheFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	content := strings.Repeat("x", size)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCacheClearCommand_RemovesCacheDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeCacheFile(t, dir, "abc123.json", 10)
	writeCacheFile(t, dir, "abc123.tar.zst", 10)

	out, err := runCacheCommand(t, "clear", "--cache-dir", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "Cache cleared:")
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "cache directory should be removed")
}

func TestCacheClearCommand_MissingDirIsNoop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never-created")

	out, err := runCacheCommand(t, "clear", "--cache-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared:")
}

func TestCacheClearCommand_RefusesForeignFiles(t *testing.T) {
	dir := t.TempDir()
	writeCacheFile(t, dir, "notes.txt", 5)

	_, err := runCacheCommand(t, "clear", "--cache-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to delete")

	// The stray file must survive the refused clear.
	_, statErr := os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, statErr)
}

func TestCacheInfoCommand_CountsEntries(t *testing.T) {
	dir := t.TempDir()
	writeCacheFile(t, dir, "key1.json", 120)
	writeCacheFile(t, dir, "key2.json", 40)
	writeCacheFile(t, dir, "key1.tar.zst", 64)
	writeCacheFile(t, dir, "README.md", 999)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))

	out, err := runCacheCommand(t, "info", "--cache-dir", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "Cached results:    2")
	assert.Contains(t, out, "Artifact archives: 1")
	// Only cache entries count toward the size: 120 + 40 + 64.
	assert.Contains(t, out, "Total size:        224 B")
}

func TestCacheInfoCommand_MissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never-created")

	out, err := runCacheCommand(t, "info", "--cache-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "(empty)")
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{10737418240, "10.0 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatSize(tt.bytes))
		})
	}
}

func TestRootCommand_HasCacheSubcommand(t *testing.T) {
	root := newRootCommand()

	found := false
	for _, c := range root.Commands() {
		if c.Name() == "cache" {
			found = true
			names := []string{}
			for _, sub := range c.Commands() {
				names = append(names, sub.Name())
			}
			assert.Contains(t, names, "clear")
			assert.Contains(t, names, "info")
		}
	}

	assert.True(t, found, "cache command should be registered")
}
