package stages

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mlship/mlship/internal/execution"
	"github.com/mlship/mlship/internal/models"
	"github.com/mlship/mlship/internal/pipeline"
	"github.com/stretchr/testify/require"
)

// trainArtifacts writes the full artifact contract under dir.
func trainArtifacts(t *testing.T, dir string) {
	t.Helper()
	writeProjectFile(t, dir, "Results/metrics.txt", "\nAccuracy = 0.85, F1 Score = 0.82.")
	writeProjectFile(t, dir, "Results/model_results.png", "png")
	writeProjectFile(t, dir, "Model/drug_pipeline.skops", "model")
}

func TestTrainStage_Success(t *testing.T) {
	dir := t.TempDir()
	trainArtifacts(t, dir)
	sc, engine := testContext(t, dir)

	s, err := NewTrainStage(TrainArgs{})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)
	require.Equal(t, []string{"python train.py"}, engine.CommandLines())
	require.Equal(t, []string{
		filepath.Join("Results", "metrics.txt"),
		filepath.Join("Results", "model_results.png"),
		filepath.Join("Model", "drug_pipeline.skops"),
	}, result.Artifacts)

	// Training gets its own, larger timeout.
	require.Equal(t, pipeline.DefaultTrainTimeoutSec, engine.Calls()[0].TimeoutSec)
}

func TestTrainStage_MissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "Results/metrics.txt", "Accuracy = 0.9")
	sc, _ := testContext(t, dir)

	s, err := NewTrainStage(TrainArgs{})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, result.Status)
	require.Contains(t, result.ErrorMsg, "did not produce")
	require.Contains(t, result.ErrorMsg, "model_results.png")
	require.Contains(t, result.ErrorMsg, "drug_pipeline.skops")
}

func TestTrainStage_ScriptFailure(t *testing.T) {
	sc, engine := testContext(t, t.TempDir())
	engine.Stub("python train.py", execution.Response{
		ExitCode: 2,
		Stderr:   "Traceback (most recent call last):",
	})

	s, err := NewTrainStage(TrainArgs{})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, result.Status)
	require.Equal(t, 2, result.ExitCode)
	require.Contains(t, result.Output, "Traceback")
}

func TestTrainStage_ArgsAndEnv(t *testing.T) {
	dir := t.TempDir()
	trainArtifacts(t, dir)
	sc, engine := testContext(t, dir)

	s, err := NewTrainStage(TrainArgs{
		Args: []string{"--seed", "42"},
		Env: map[string]string{
			"MLFLOW_TRACKING_URI":  "http://localhost:5000",
			"CUDA_VISIBLE_DEVICES": "0",
		},
	})
	require.NoError(t, err)

	_, err = s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, []string{"python train.py --seed 42"}, engine.CommandLines())

	// Env pairs are sorted so runs are reproducible.
	require.Equal(t, []string{
		"CUDA_VISIBLE_DEVICES=0",
		"MLFLOW_TRACKING_URI=http://localhost:5000",
	}, engine.Calls()[0].Env)
}

func TestTrainStage_CustomArtifactNames(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "Results/scores.txt", "Accuracy = 0.9")
	writeProjectFile(t, dir, "Results/confusion.png", "png")
	writeProjectFile(t, dir, "Model/clf.joblib", "model")
	sc, _ := testContext(t, dir)

	s, err := NewTrainStage(TrainArgs{
		MetricsFile: "scores.txt",
		PlotFile:    "confusion.png",
		ModelFile:   "clf.joblib",
	})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)
}

func TestTrainStage_CacheContract(t *testing.T) {
	spec := pipeline.New()

	s, err := NewTrainStage(TrainArgs{Data: []string{"drug200.csv"}})
	require.NoError(t, err)
	require.Equal(t, []string{"train.py", "requirements.txt", "drug200.csv"}, s.CacheInputs(spec))
	require.Equal(t, []string{"Results", "Model"}, s.ArtifactPaths(spec))
}
