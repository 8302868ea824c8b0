package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mlship/mlship/internal/models"
	"github.com/mlship/mlship/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec(dir string) *pipeline.Spec {
	spec := pipeline.New()
	spec.Name = "drug-classification"
	spec.Dir = dir
	return spec
}

func TestStageKey(t *testing.T) {
	tempDir := t.TempDir()
	spec := testSpec(tempDir)

	// Create input files
	train := filepath.Join(tempDir, "train.py")
	reqs := filepath.Join(tempDir, "requirements.txt")
	require.NoError(t, os.WriteFile(train, []byte("print('train')"), 0644))
	require.NoError(t, os.WriteFile(reqs, []byte("scikit-learn"), 0644))

	key1, err := StageKey(spec, pipeline.StageTrain, []string{"train.py", "requirements.txt"})
	require.NoError(t, err)
	assert.NotEmpty(t, key1)
	assert.Len(t, key1, 64) // SHA256 hex is 64 chars

	// Same inputs should produce same key
	key2, err := StageKey(spec, pipeline.StageTrain, []string{"train.py", "requirements.txt"})
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}

func TestStageKey_DifferentStageChangesKey(t *testing.T) {
	spec := testSpec("")

	key1, err := StageKey(spec, pipeline.StageTrain, nil)
	require.NoError(t, err)

	key2, err := StageKey(spec, pipeline.StageEval, nil)
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
}

func TestStageKey_DifferentOptionsChangeKey(t *testing.T) {
	spec1 := testSpec("")
	spec1.Stages[pipeline.StageTrain] = pipeline.StageOptions{"script": "train.py"}

	spec2 := testSpec("")
	spec2.Stages[pipeline.StageTrain] = pipeline.StageOptions{"script": "retrain.py"}

	key1, err := StageKey(spec1, pipeline.StageTrain, nil)
	require.NoError(t, err)

	key2, err := StageKey(spec2, pipeline.StageTrain, nil)
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
}

func TestStageKey_DifferentInputContentChangesKey(t *testing.T) {
	tempDir := t.TempDir()
	spec := testSpec(tempDir)

	train := filepath.Join(tempDir, "train.py")
	require.NoError(t, os.WriteFile(train, []byte("v1"), 0644))

	key1, err := StageKey(spec, pipeline.StageTrain, []string{"train.py"})
	require.NoError(t, err)

	// Change file content
	require.NoError(t, os.WriteFile(train, []byte("v2"), 0644))

	key2, err := StageKey(spec, pipeline.StageTrain, []string{"train.py"})
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
}

func TestStageKey_InputOrderDoesNotMatter(t *testing.T) {
	tempDir := t.TempDir()
	spec := testSpec(tempDir)

	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "a.csv"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "b.csv"), []byte("b"), 0644))

	key1, err := StageKey(spec, pipeline.StageTrain, []string{"a.csv", "b.csv"})
	require.NoError(t, err)

	key2, err := StageKey(spec, pipeline.StageTrain, []string{"b.csv", "a.csv"})
	require.NoError(t, err)

	assert.Equal(t, key1, key2, "inputs are sorted before hashing")
}

func TestStageKey_MissingInputs(t *testing.T) {
	spec := testSpec(t.TempDir())

	// Should not error on missing inputs
	key, err := StageKey(spec, pipeline.StageTrain, []string{"nonexistent.csv"})
	require.NoError(t, err)
	assert.NotEmpty(t, key)
}

func TestStageKey_NoHashCollision(t *testing.T) {
	// Field delimiters prevent adjacent fields from bleeding together
	spec1 := testSpec("")
	spec1.Name = "ab"

	spec2 := testSpec("")
	spec2.Name = "a"

	key1, err := StageKey(spec1, "btrain", nil)
	require.NoError(t, err)

	key2, err := StageKey(spec2, "train", nil)
	require.NoError(t, err)

	// Without delimiters both would hash "abbtrain..."
	assert.NotEqual(t, key1, key2, "field delimiters should prevent hash collisions")
}

func TestCache_GetPut(t *testing.T) {
	cacheDir := t.TempDir()
	c := New(cacheDir)

	key := "test-key-123"
	result := &models.StageResult{
		Stage:      pipeline.StageTrain,
		Status:     models.StatusPassed,
		DurationMs: 1000,
		Artifacts:  []string{"Model/drug_pipeline.skops"},
	}

	// Cache miss
	retrieved, found := c.Get(key)
	assert.False(t, found)
	assert.Nil(t, retrieved)

	// Store in cache
	err := c.Put(key, result)
	require.NoError(t, err)

	// Cache hit
	retrieved, found = c.Get(key)
	assert.True(t, found)
	require.NotNil(t, retrieved)
	assert.Equal(t, result.Stage, retrieved.Stage)
	assert.Equal(t, result.Status, retrieved.Status)
	assert.Equal(t, result.Artifacts, retrieved.Artifacts)
}

func TestCache_Artifacts(t *testing.T) {
	cacheDir := t.TempDir()
	c := New(cacheDir)

	// Lay out a project with results
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Results"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Results", "metrics.txt"), []byte("Accuracy = 0.85."), 0644))

	key := "artifact-key"
	require.NoError(t, c.PutArtifacts(key, root, []string{"Results"}))

	// Restore into a fresh root
	dest := t.TempDir()
	require.NoError(t, c.RestoreArtifacts(key, dest))

	data, err := os.ReadFile(filepath.Join(dest, "Results", "metrics.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Accuracy = 0.85.", string(data))
}

func TestCache_RestoreMissingArchive(t *testing.T) {
	c := New(t.TempDir())
	assert.NoError(t, c.RestoreArtifacts("no-such-key", t.TempDir()))
}

func TestCache_Clear(t *testing.T) {
	cacheDir := t.TempDir()
	c := New(cacheDir)

	result := &models.StageResult{Stage: pipeline.StageTrain, Status: models.StatusPassed}
	require.NoError(t, c.Put("key1", result))
	require.NoError(t, c.Put("key2", result))

	// An artifact archive must not block the clear
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "out.txt"), []byte("x"), 0644))
	require.NoError(t, c.PutArtifacts("key1", root, []string{"out.txt"}))

	err := c.Clear()
	require.NoError(t, err)

	_, found := c.Get("key1")
	assert.False(t, found)

	// Directory should not exist
	_, err = os.Stat(cacheDir)
	assert.True(t, os.IsNotExist(err))
}

func TestCache_EmptyDir(t *testing.T) {
	c := New("")

	// Get should return false
	_, found := c.Get("any-key")
	assert.False(t, found)

	// Put should be no-op
	err := c.Put("key", &models.StageResult{Stage: pipeline.StageTrain})
	assert.NoError(t, err)

	// Clear should be no-op
	err = c.Clear()
	assert.NoError(t, err)
}

func TestCache_Clear_SafetyChecks(t *testing.T) {
	t.Run("refuses to clear directory with subdirectories", func(t *testing.T) {
		cacheDir := t.TempDir()
		c := New(cacheDir)

		result := &models.StageResult{Stage: pipeline.StageTrain, Status: models.StatusPassed}
		require.NoError(t, c.Put("key1", result))

		subDir := filepath.Join(cacheDir, "subdir")
		require.NoError(t, os.Mkdir(subDir, 0755))

		err := c.Clear()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "subdirectories")

		// Cache directory should still exist
		_, err = os.Stat(cacheDir)
		assert.NoError(t, err)
	})

	t.Run("refuses to clear directory with non-cache files", func(t *testing.T) {
		cacheDir := t.TempDir()
		c := New(cacheDir)

		result := &models.StageResult{Stage: pipeline.StageTrain, Status: models.StatusPassed}
		require.NoError(t, c.Put("key1", result))

		nonCacheFile := filepath.Join(cacheDir, "README.txt")
		require.NoError(t, os.WriteFile(nonCacheFile, []byte("test"), 0644))

		err := c.Clear()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "non-cache files")

		// Cache directory should still exist
		_, err = os.Stat(cacheDir)
		assert.NoError(t, err)
	})

	t.Run("successfully clears empty cache directory", func(t *testing.T) {
		cacheDir := t.TempDir()
		c := New(cacheDir)

		err := c.Clear()
		assert.NoError(t, err)

		_, err = os.Stat(cacheDir)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestCache_ConcurrentOperations(t *testing.T) {
	cacheDir := t.TempDir()
	c := New(cacheDir)

	numGoroutines := 10
	numOperations := 20

	t.Run("concurrent Put operations on different keys", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					key := fmt.Sprintf("key-%d-%d", id, j)
					result := &models.StageResult{
						Stage:  pipeline.StageTrain,
						Status: models.StatusPassed,
					}
					assert.NoError(t, c.Put(key, result))
				}
			}(i)
		}
		wg.Wait()

		entries, err := os.ReadDir(cacheDir)
		require.NoError(t, err)
		assert.Equal(t, numGoroutines*numOperations, len(entries))
	})

	t.Run("concurrent Put on same key", func(t *testing.T) {
		sharedKey := "same-key"
		var wg sync.WaitGroup
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				result := &models.StageResult{
					Stage:  fmt.Sprintf("train-%d", id),
					Status: models.StatusPassed,
				}
				assert.NoError(t, c.Put(sharedKey, result))
			}(i)
		}
		wg.Wait()

		// The cache file must be valid JSON whichever write won
		result, found := c.Get(sharedKey)
		assert.True(t, found, "cache entry should exist after concurrent writes")
		assert.NotNil(t, result, "cached result should be valid")
	})
}
