package storage

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Results"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Model"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Results", "metrics.txt"), []byte("Accuracy = 0.85."), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Results", "model_results.png"), []byte("png-bytes"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Model", "drug_pipeline.skops"), []byte("model-bytes"), 0644))

	var buf bytes.Buffer
	require.NoError(t, PackPaths(&buf, root, []string{"Results", "Model/drug_pipeline.skops"}))
	assert.NotZero(t, buf.Len())

	dest := t.TempDir()
	require.NoError(t, Unpack(bytes.NewReader(buf.Bytes()), dest))

	data, err := os.ReadFile(filepath.Join(dest, "Results", "metrics.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Accuracy = 0.85.", string(data))

	data, err = os.ReadFile(filepath.Join(dest, "Model", "drug_pipeline.skops"))
	require.NoError(t, err)
	assert.Equal(t, "model-bytes", string(data))
}

func TestPackPathsSkipsMissing(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "metrics.txt"), []byte("m"), 0644))

	var buf bytes.Buffer
	require.NoError(t, PackPaths(&buf, root, []string{"metrics.txt", "does-not-exist"}))

	dest := t.TempDir()
	require.NoError(t, Unpack(bytes.NewReader(buf.Bytes()), dest))

	_, err := os.Stat(filepath.Join(dest, "metrics.txt"))
	assert.NoError(t, err)
}

func TestUnpackRejectsEscapingEntry(t *testing.T) {
	// Handcraft an archive whose entry climbs out of the destination.
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	tw := tar.NewWriter(zw)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "../evil.txt",
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     4,
	}))
	_, err = tw.Write([]byte("evil"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())

	dest := t.TempDir()
	err = Unpack(bytes.NewReader(buf.Bytes()), dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes the destination")

	_, statErr := os.Stat(filepath.Join(dest, "..", "evil.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnpackGarbageInput(t *testing.T) {
	err := Unpack(bytes.NewReader([]byte("definitely not zstd")), t.TempDir())
	assert.Error(t, err)
}
