package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mlship/mlship/internal/models"
	"github.com/mlship/mlship/internal/utils"
	"github.com/stretchr/testify/require"
)

// evalFixture writes the metrics file and plot the eval stage reads.
func evalFixture(t *testing.T, dir string) {
	t.Helper()
	writeProjectFile(t, dir, "Results/metrics.txt", "\nAccuracy = 0.85, F1 Score = 0.82.")
	writeProjectFile(t, dir, "Results/model_results.png", "png")
}

func TestEvalStage_WritesReport(t *testing.T) {
	dir := t.TempDir()
	evalFixture(t, dir)
	sc, _ := testContext(t, dir)

	s, err := NewEvalStage(EvalArgs{Comment: utils.Ptr(false)})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)
	require.Equal(t, []string{"report.md"}, result.Artifacts)
	require.Contains(t, result.Output, "Accuracy = 0.85")

	report, err := os.ReadFile(filepath.Join(dir, "report.md"))
	require.NoError(t, err)
	require.Contains(t, string(report), "## Model Metrics")
	require.Contains(t, string(report), "Accuracy = 0.85, F1 Score = 0.82.")
	require.Contains(t, string(report), "![Confusion Matrix](./Results/model_results.png)")

	require.Len(t, s.LastMetrics(), 2)
	require.Empty(t, s.LastGates())
}

func TestEvalStage_GatePasses(t *testing.T) {
	dir := t.TempDir()
	evalFixture(t, dir)
	sc, _ := testContext(t, dir)

	s, err := NewEvalStage(EvalArgs{
		Comment:    utils.Ptr(false),
		Thresholds: map[string]float64{"Accuracy": 0.8, "F1 Score": 0.8},
	})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)

	gates := s.LastGates()
	require.Len(t, gates, 2)
	for _, g := range gates {
		require.True(t, g.Passed, g.Metric)
	}

	report, err := os.ReadFile(filepath.Join(dir, "report.md"))
	require.NoError(t, err)
	require.Contains(t, string(report), "## Metric Gates")
}

func TestEvalStage_GateBreach(t *testing.T) {
	dir := t.TempDir()
	evalFixture(t, dir)
	sc, _ := testContext(t, dir)

	s, err := NewEvalStage(EvalArgs{
		Comment:    utils.Ptr(false),
		Thresholds: map[string]float64{"Accuracy": 0.9},
	})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, result.Status)
	require.Contains(t, result.ErrorMsg, "Accuracy = 0.85 is below the 0.9 threshold")

	// The report still gets written so the failure is reviewable.
	report, err := os.ReadFile(filepath.Join(dir, "report.md"))
	require.NoError(t, err)
	require.Contains(t, string(report), "❌")
}

func TestEvalStage_MissingMetricGate(t *testing.T) {
	dir := t.TempDir()
	evalFixture(t, dir)
	sc, _ := testContext(t, dir)

	s, err := NewEvalStage(EvalArgs{
		Comment:    utils.Ptr(false),
		Thresholds: map[string]float64{"Precision": 0.8},
	})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, result.Status)
	require.Contains(t, result.ErrorMsg, "metric Precision is missing")
}

func TestEvalStage_BrokenPlotLink(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "Results/metrics.txt", "Accuracy = 0.85.")
	sc, _ := testContext(t, dir)

	s, err := NewEvalStage(EvalArgs{Comment: utils.Ptr(false)})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, result.Status)
	require.Contains(t, result.ErrorMsg, "report link")
	require.Contains(t, result.ErrorMsg, "model_results.png")
}

func TestEvalStage_LinkCheckDisabled(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "Results/metrics.txt", "Accuracy = 0.85.")
	sc, _ := testContext(t, dir)

	s, err := NewEvalStage(EvalArgs{
		Comment:    utils.Ptr(false),
		CheckLinks: utils.Ptr(false),
	})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)
}

func TestEvalStage_MissingMetricsFile(t *testing.T) {
	sc, _ := testContext(t, t.TempDir())

	s, err := NewEvalStage(EvalArgs{Comment: utils.Ptr(false)})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, result.Status)
	require.Contains(t, result.ErrorMsg, filepath.Join("Results", "metrics.txt"))
}

func TestEvalStage_CommentRequiredWithoutToken(t *testing.T) {
	dir := t.TempDir()
	evalFixture(t, dir)
	sc, _ := testContext(t, dir)

	s, err := NewEvalStage(EvalArgs{Comment: utils.Ptr(true)})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, result.Status)
	require.Contains(t, result.ErrorMsg, "REPO_TOKEN")
}

func TestEvalStage_PublishesComment(t *testing.T) {
	dir := t.TempDir()
	evalFixture(t, dir)
	sc, _ := testContext(t, dir)
	sc.Creds.RepoToken = "token-under-test"
	t.Setenv("GITHUB_REPOSITORY", "acme/drug-classification")
	t.Setenv("GITHUB_SHA", "deadbeef")
	t.Setenv("GITHUB_REF", "refs/pull/7/merge")

	var posted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, "[]")
		case http.MethodPost:
			require.Equal(t, "/repos/acme/drug-classification/issues/7/comments", r.URL.Path)
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var payload map[string]string
			require.NoError(t, json.Unmarshal(body, &payload))
			posted = payload["body"]
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id": 1, "html_url": "https://example.test/comments/1"}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	s, err := NewEvalStage(EvalArgs{Comment: utils.Ptr(true)})
	require.NoError(t, err)
	s.apiBaseURL = srv.URL

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)
	require.Contains(t, posted, "## Model Metrics")
	require.Contains(t, posted, "Accuracy = 0.85")
}

func TestEvalStage_CommentSkippedWithoutTokenByDefault(t *testing.T) {
	dir := t.TempDir()
	evalFixture(t, dir)
	sc, _ := testContext(t, dir)

	// No token and no explicit comment setting: the stage passes without
	// trying to publish.
	s, err := NewEvalStage(EvalArgs{})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)
}
