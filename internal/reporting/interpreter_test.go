package reporting

import (
	"strings"
	"testing"

	"github.com/mlship/mlship/internal/metrics"
	"github.com/mlship/mlship/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestInterpretScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  string
	}{
		{"excellent high", 0.95, "Excellent (>90%)"},
		{"excellent boundary", 0.91, "Excellent (>90%)"},
		{"good high", 0.90, "Good (70-90%)"},
		{"good mid", 0.80, "Good (70-90%)"},
		{"good low", 0.70, "Good (70-90%)"},
		{"needs work high", 0.69, "Needs Work (50-70%)"},
		{"needs work low", 0.50, "Needs Work (50-70%)"},
		{"poor high", 0.49, "Poor (<50%)"},
		{"poor zero", 0.0, "Poor (<50%)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpretScore(tt.score)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpretSuccessRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want string
	}{
		{"all", 1.0, "All stages passed (100%)"},
		{"most", 0.85, "Most stages passed (85%)"},
		{"half", 0.5, "About half the stages passed (50%)"},
		{"few", 0.2, "Few stages passed (20%)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InterpretSuccessRate(tt.rate))
		})
	}
}

func TestInterpretGates(t *testing.T) {
	assert.Equal(t, "No metric gates configured.", InterpretGates(nil))

	passed := []metrics.GateResult{
		{Metric: "accuracy", Passed: true},
		{Metric: "f1", Passed: true},
	}
	assert.Equal(t, "All 2 metric gates held.", InterpretGates(passed))

	mixed := []metrics.GateResult{
		{Metric: "accuracy", Passed: true},
		{Metric: "f1"},
	}
	assert.Contains(t, InterpretGates(mixed), "1 of 2 metric gates failed")
}

func TestFormatSummaryReport(t *testing.T) {
	outcome := newTestOutcome()

	report := FormatSummaryReport(outcome)

	assert.True(t, strings.HasPrefix(report, "=== Interpretation ===\n"))
	assert.Contains(t, report, "Pipeline:  drug-classification")
	assert.Contains(t, report, "About half the stages passed (50%)")
	assert.Contains(t, report, "Breakdown: 1 passed, 1 failed, 0 errors out of 3 total")
	assert.Contains(t, report, "Accuracy:  0.85 - Good (70-90%)")
	assert.Contains(t, report, "✓ install: passed")
	assert.Contains(t, report, "✗ train: failed")
	assert.Contains(t, report, "exited with code 1")
	assert.Contains(t, report, "- eval: skipped")
}

func TestFormatSummaryReportGates(t *testing.T) {
	outcome := newTestOutcome()
	outcome.Gates = []metrics.GateResult{
		{Metric: "accuracy", Value: 0.85, Threshold: 0.8, Passed: true},
		{Metric: "f1 score", Threshold: 0.9, Missing: true},
	}

	report := FormatSummaryReport(outcome)

	assert.Contains(t, report, "Metric Gates:")
	assert.Contains(t, report, "✓ accuracy: 0.85 >= 0.8")
	assert.Contains(t, report, "✗ f1 score: missing (needs >= 0.9)")
	assert.Contains(t, report, "1 of 2 metric gates failed")
}

func TestFormatSummaryReportCacheHit(t *testing.T) {
	outcome := newTestOutcome()
	outcome.StageResults = []models.StageResult{
		{Stage: "train", Status: models.StatusPassed, Cached: true},
	}
	outcome.Finalize()

	report := FormatSummaryReport(outcome)
	assert.Contains(t, report, "✓ train: passed (cache hit)")
}
