package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlship/mlship/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportMarkdownLayout(t *testing.T) {
	r := &Report{
		MetricsBody: "\nAccuracy = 0.85, F1 Score = 0.82.",
		PlotPath:    "Results/model_results.png",
	}

	md := r.Markdown()

	assert.Contains(t, md, "## Model Metrics\n\nAccuracy = 0.85, F1 Score = 0.82.\n")
	assert.Contains(t, md, "## Confusion Matrix Plot\n\n![Confusion Matrix](./Results/model_results.png)\n")

	// Metrics come before the plot.
	metricsIdx := strings.Index(md, "## Model Metrics")
	plotIdx := strings.Index(md, "## Confusion Matrix Plot")
	assert.Less(t, metricsIdx, plotIdx)
}

func TestReportMarkdownTitle(t *testing.T) {
	r := &Report{Title: "Model Evaluation", MetricsBody: "Accuracy = 0.9."}
	md := r.Markdown()
	assert.True(t, strings.HasPrefix(md, "# Model Evaluation\n\n"))
}

func TestReportMarkdownEmptyMetrics(t *testing.T) {
	r := &Report{MetricsBody: "  \n "}
	md := r.Markdown()
	assert.Contains(t, md, "_No metrics were produced._")
}

func TestReportMarkdownNoPlot(t *testing.T) {
	r := &Report{MetricsBody: "Accuracy = 0.9."}
	md := r.Markdown()
	assert.NotContains(t, md, "## Confusion Matrix Plot")
}

func TestReportMarkdownCustomPlotLabel(t *testing.T) {
	r := &Report{
		MetricsBody: "Accuracy = 0.9.",
		PlotPath:    "./Results/roc.png",
		PlotLabel:   "ROC Curve",
	}
	md := r.Markdown()
	assert.Contains(t, md, "![ROC Curve](./Results/roc.png)")
}

func TestReportMarkdownGateTable(t *testing.T) {
	r := &Report{
		MetricsBody: "Accuracy = 0.85.",
		Gates: []metrics.GateResult{
			{Metric: "accuracy", Value: 0.85, Threshold: 0.8, Passed: true},
			{Metric: "f1 score", Threshold: 0.8, Missing: true},
		},
	}

	md := r.Markdown()

	assert.Contains(t, md, "## Metric Gates")
	assert.Contains(t, md, "| accuracy | 0.85 | 0.8 | ✅ |")
	assert.Contains(t, md, "| f1 score | missing | 0.8 | ❌ |")
}

func TestReportWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.md")

	r := &Report{MetricsBody: "Accuracy = 0.85."}
	require.NoError(t, r.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, r.Markdown(), string(data))
}

func TestToReportPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Results/plot.png", "./Results/plot.png"},
		{"./Results/plot.png", "./Results/plot.png"},
		{"../shared/plot.png", "../shared/plot.png"},
		{`Results\plot.png`, "./Results/plot.png"},
		{"https://example.com/plot.png", "https://example.com/plot.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toReportPath(tt.in), "input %q", tt.in)
	}
}
