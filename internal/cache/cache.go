package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mlship/mlship/internal/models"
	"github.com/mlship/mlship/internal/pipeline"
	"github.com/mlship/mlship/internal/storage"
)

// archiveSuffix is the extension for cached artifact archives.
const archiveSuffix = ".tar.zst"

// Cache stores stage results so a re-run with unchanged inputs can replay
// the result instead of executing the stage again.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// New creates a cache rooted at dir. An empty dir disables the cache.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// StageKey generates a unique cache key for one stage run.
// The key is based on:
// - pipeline identity (name)
// - toolchain (python interpreter, requirements path)
// - the stage name and its option block
// - input file hashes
func StageKey(spec *pipeline.Spec, stage string, inputs []string) (string, error) {
	h := sha256.New()

	if err := writeString(h, spec.Name); err != nil {
		return "", err
	}
	if err := writeString(h, stage); err != nil {
		return "", err
	}

	// Include the toolchain and timeout
	if err := writeString(h, spec.Project.Python); err != nil {
		return "", err
	}
	if err := writeString(h, spec.Project.Requirements); err != nil {
		return "", err
	}
	if err := writeInt(h, spec.Config.TimeoutSec); err != nil {
		return "", err
	}

	// Include the stage's option block
	optsJSON, err := json.Marshal(spec.OptionsFor(stage))
	if err != nil {
		return "", fmt.Errorf("marshaling stage options: %w", err)
	}
	if _, err := h.Write(optsJSON); err != nil {
		return "", err
	}

	// Include input files (training script, requirements, data files)
	if err := hashInputs(h, spec.Dir, inputs); err != nil {
		return "", fmt.Errorf("hashing inputs: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get retrieves a cached stage result if it exists
func (c *Cache) Get(key string) (*models.StageResult, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.cachePath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		// Cache miss
		return nil, false
	}

	var result models.StageResult
	if err := json.Unmarshal(data, &result); err != nil {
		// Invalid cache entry, treat as miss
		return nil, false
	}

	return &result, true
}

// Put stores a stage result in the cache
func (c *Cache) Put(key string, result *models.StageResult) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Ensure cache directory exists
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	path := c.cachePath(key)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}

// PutArtifacts archives the stage's artifact paths (relative to root) under
// the key so a later hit can restore them.
func (c *Cache) PutArtifacts(key, root string, paths []string) error {
	if c.dir == "" || len(paths) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	archive := c.archivePath(key)
	f, err := os.Create(archive)
	if err != nil {
		return fmt.Errorf("creating artifact archive: %w", err)
	}
	if err := storage.PackPaths(f, root, paths); err != nil {
		f.Close() //nolint:errcheck
		_ = os.Remove(archive)
		return fmt.Errorf("archiving artifacts: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing artifact archive: %w", err)
	}

	return nil
}

// RestoreArtifacts unpacks the artifact archive for key into root. A missing
// archive is not an error: a result can be cached without artifacts.
func (c *Cache) RestoreArtifacts(key, root string) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.archivePath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening artifact archive: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := storage.Unpack(f, root); err != nil {
		return fmt.Errorf("restoring artifacts: %w", err)
	}
	return nil
}

// Clear removes all cached results
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if directory exists
	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	// Safety check: verify this is an mlship cache directory before removing
	// Check for presence of at least one cache file or empty directory
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	// If directory is not empty, verify it contains only cache files
	if len(entries) > 0 {
		hasValidCache := false
		for _, entry := range entries {
			if entry.IsDir() {
				return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
			}
			if filepath.Ext(entry.Name()) == ".json" || strings.HasSuffix(entry.Name(), archiveSuffix) {
				hasValidCache = true
			} else {
				return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
			}
		}
		if !hasValidCache {
			return fmt.Errorf("no valid cache files found in directory - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

// cachePath returns the file path for a cache key
func (c *Cache) cachePath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// archivePath returns the artifact archive path for a cache key
func (c *Cache) archivePath(key string) string {
	return filepath.Join(c.dir, key+archiveSuffix)
}

// Helper functions

func writeString(w io.Writer, s string) error {
	// Write string with null byte delimiter to prevent hash collisions
	_, err := w.Write([]byte(s + "\x00"))
	return err
}

func writeInt(w io.Writer, i int) error {
	// Write int with null byte delimiter to prevent hash collisions
	_, err := fmt.Fprintf(w, "%d\x00", i)
	return err
}

func hashInputs(h io.Writer, baseDir string, inputs []string) error {
	if len(inputs) == 0 {
		return nil
	}

	// Sort inputs for deterministic hashing
	sortedInputs := make([]string, len(inputs))
	copy(sortedInputs, inputs)
	sort.Strings(sortedInputs)

	for _, input := range sortedInputs {
		// Resolve input path
		inputPath := input
		if !filepath.IsAbs(inputPath) && baseDir != "" {
			inputPath = filepath.Join(baseDir, input)
		}

		// Hash the file content
		if err := hashFile(h, inputPath); err != nil {
			// If the file doesn't exist, include the path in the hash anyway
			// This ensures cache invalidation if inputs are added or removed
			if os.IsNotExist(err) {
				if err := writeString(h, input); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("hashing input %s: %w", input, err)
		}
	}

	return nil
}

func hashFile(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(h, f); err != nil {
		return err
	}

	return nil
}
