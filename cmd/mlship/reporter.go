package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mlship/mlship/internal/metrics"
	"github.com/mlship/mlship/internal/models"
)

// formatDuration formats a duration in a consistent, human-readable way.
// This ensures stable output regardless of Go version changes.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	// Use the built-in formatting but ensure we control it
	return d.String()
}

// FormatGitHubComment formats a RunOutcome as a markdown comment for GitHub PRs
func FormatGitHubComment(outcome *models.RunOutcome) string {
	var b strings.Builder

	digest := outcome.Digest
	duration := time.Duration(digest.DurationMs) * time.Millisecond

	// Header with overall status
	b.WriteString("## 🚢 mlship Pipeline Results\n\n")

	// Overall status badge
	statusIcon := "✅ Passed"
	if digest.Failed > 0 || digest.Errors > 0 {
		statusIcon = "❌ Failed"
	}

	b.WriteString(fmt.Sprintf("**Status:** %s | **Duration:** %s\n\n",
		statusIcon, formatDuration(duration)))

	// Summary stats
	b.WriteString(fmt.Sprintf("- **Stages:** %d total, %d passed, %d failed, %d errors, %d skipped\n",
		digest.TotalStages, digest.Succeeded, digest.Failed, digest.Errors, digest.Skipped))
	b.WriteString(fmt.Sprintf("- **Success Rate:** %.1f%%\n\n", digest.SuccessRate*100))

	// Per-stage breakdown table
	b.WriteString("### Stage Results\n\n")
	b.WriteString("| Stage | Status | Duration |\n")
	b.WriteString("|-------|--------|----------|\n")

	for _, sr := range outcome.StageResults {
		statusIcon := "✅"
		switch sr.Status {
		case models.StatusPassed:
			statusIcon = "✅"
		case models.StatusSkipped:
			statusIcon = "⏭️"
		default:
			statusIcon = "❌"
		}
		status := statusIcon
		if sr.Cached {
			status += " (cached)"
		}

		b.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			sr.Stage, status, formatDuration(time.Duration(sr.DurationMs)*time.Millisecond)))
	}

	b.WriteString("\n")

	// Metrics table when the eval stage produced one
	if len(outcome.Metrics) > 0 {
		b.WriteString("### Model Metrics\n\n")
		b.WriteString("| Metric | Value |\n")
		b.WriteString("|--------|-------|\n")
		for _, m := range outcome.Metrics {
			b.WriteString(fmt.Sprintf("| %s | %s |\n", m.Name, metrics.FormatValue(m.Value)))
		}
		b.WriteString("\n")
	}

	// Gate table when thresholds were configured
	if len(outcome.Gates) > 0 {
		b.WriteString("### Metric Gates\n\n")
		b.WriteString("| Metric | Value | Threshold | Status |\n")
		b.WriteString("|--------|-------|-----------|--------|\n")
		for _, g := range outcome.Gates {
			icon := "✅"
			if !g.Passed {
				icon = "❌"
			}
			value := metrics.FormatValue(g.Value)
			if g.Missing {
				value = "-"
			}
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				g.Metric, value, metrics.FormatValue(g.Threshold), icon))
		}
		b.WriteString("\n")
	}

	// Details for failed stages
	if digest.Failed > 0 || digest.Errors > 0 {
		b.WriteString("### Failed Stage Details\n\n")
		for _, sr := range outcome.StageResults {
			if sr.Status != models.StatusFailed && sr.Status != models.StatusError {
				continue
			}
			b.WriteString(fmt.Sprintf("#### %s\n\n", sr.Stage))
			if sr.ErrorMsg != "" {
				b.WriteString(fmt.Sprintf("- ❌ %s\n", sr.ErrorMsg))
			}
			if sr.ExitCode != 0 {
				b.WriteString(fmt.Sprintf("- exit code %d\n", sr.ExitCode))
			}
			if sr.Output != "" {
				b.WriteString("\n```\n")
				b.WriteString(strings.TrimRight(sr.Output, "\n"))
				b.WriteString("\n```\n")
			}
			b.WriteString("\n")
		}
	}

	// Footer with metadata
	b.WriteString("---\n\n")
	b.WriteString(fmt.Sprintf("**Pipeline:** %s | **Python:** %s | **Run:** %s\n",
		outcome.Pipeline, outcome.Setup.Python, outcome.RunID))

	return b.String()
}
