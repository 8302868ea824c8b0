package stages

import (
	"context"
	"testing"

	"github.com/mlship/mlship/internal/execution"
	"github.com/mlship/mlship/internal/models"
	"github.com/stretchr/testify/require"
)

func TestFormatStage_GlobExpansion(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "train.py", "x = 1\n")
	writeProjectFile(t, dir, "drug_app.py", "y = 2\n")
	writeProjectFile(t, dir, "README.md", "docs\n")
	sc, engine := testContext(t, dir)

	s, err := NewFormatStage(FormatArgs{})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)
	require.Equal(t, []string{"black drug_app.py train.py"}, engine.CommandLines())
}

func TestFormatStage_CheckOnly(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "train.py", "x = 1\n")
	sc, engine := testContext(t, dir)

	s, err := NewFormatStage(FormatArgs{CheckOnly: true})
	require.NoError(t, err)

	_, err = s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, []string{"black --check train.py"}, engine.CommandLines())
}

func TestFormatStage_NoMatches(t *testing.T) {
	sc, engine := testContext(t, t.TempDir())

	s, err := NewFormatStage(FormatArgs{})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)
	require.Contains(t, result.Output, "no files matched")
	require.Empty(t, engine.CommandLines())
}

func TestFormatStage_PlainTargetPassesThrough(t *testing.T) {
	sc, engine := testContext(t, t.TempDir())

	s, err := NewFormatStage(FormatArgs{Targets: []string{"App/drug_app.py"}})
	require.NoError(t, err)

	_, err = s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, []string{"black App/drug_app.py"}, engine.CommandLines())
}

func TestFormatStage_ViolationsFail(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "train.py", "x=1\n")
	sc, engine := testContext(t, dir)
	engine.Stub("black", execution.Response{ExitCode: 1, Stderr: "would reformat train.py"})

	s, err := NewFormatStage(FormatArgs{CheckOnly: true})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, result.Status)
	require.Contains(t, result.Output, "would reformat")
}

func TestFormatStage_ExtraArgs(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "train.py", "x = 1\n")
	sc, engine := testContext(t, dir)

	s, err := NewFormatStage(FormatArgs{Args: []string{"--line-length", "100"}})
	require.NoError(t, err)

	_, err = s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, []string{"black --line-length 100 train.py"}, engine.CommandLines())
}
