package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/mlship/mlship/internal/metrics"
	"github.com/mlship/mlship/internal/models"
)

// InterpretScore returns a plain-language label for a headline metric (0-1).
func InterpretScore(score float64) string {
	pct := score * 100
	switch {
	case pct > 90:
		return "Excellent (>90%)"
	case pct >= 70:
		return "Good (70-90%)"
	case pct >= 50:
		return "Needs Work (50-70%)"
	default:
		return "Poor (<50%)"
	}
}

// InterpretSuccessRate returns a human-readable explanation of the stage
// success rate (0-1).
func InterpretSuccessRate(rate float64) string {
	pct := rate * 100
	switch {
	case pct >= 100:
		return fmt.Sprintf("All stages passed (%.0f%%)", pct)
	case pct >= 80:
		return fmt.Sprintf("Most stages passed (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("About half the stages passed (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Few stages passed (%.0f%%)", pct)
	}
}

// InterpretGates explains the threshold gate results in one line.
func InterpretGates(gates []metrics.GateResult) string {
	if len(gates) == 0 {
		return "No metric gates configured."
	}
	failed := 0
	for _, g := range gates {
		if !g.Passed {
			failed++
		}
	}
	if failed == 0 {
		return fmt.Sprintf("All %d metric gates held.", len(gates))
	}
	return fmt.Sprintf("%d of %d metric gates failed; the model does not meet its quality bar.", failed, len(gates))
}

// FormatSummaryReport produces a full plain-language report from a RunOutcome.
func FormatSummaryReport(outcome *models.RunOutcome) string {
	var b strings.Builder

	d := outcome.Digest
	duration := time.Duration(d.DurationMs) * time.Millisecond

	b.WriteString("=== Interpretation ===\n\n")

	b.WriteString(fmt.Sprintf("Pipeline:  %s\n", outcome.Pipeline))
	b.WriteString(fmt.Sprintf("Stages:    %s\n", InterpretSuccessRate(d.SuccessRate)))
	b.WriteString(fmt.Sprintf("Duration:  %v\n", duration))

	if d.TotalStages > 0 {
		b.WriteString(fmt.Sprintf("Breakdown: %d passed, %d failed, %d errors out of %d total\n",
			d.Succeeded, d.Failed, d.Errors, d.TotalStages))
	}

	if acc, ok := metrics.Find(outcome.Metrics, "accuracy"); ok {
		b.WriteString(fmt.Sprintf("Accuracy:  %s - %s\n", metrics.FormatValue(acc), InterpretScore(acc)))
	}

	if len(outcome.Gates) > 0 {
		b.WriteString("\nMetric Gates:\n")
		for _, g := range outcome.Gates {
			icon := "✓"
			if !g.Passed {
				icon = "✗"
			}
			if g.Missing {
				b.WriteString(fmt.Sprintf("  %s %s: missing (needs >= %s)\n",
					icon, g.Metric, metrics.FormatValue(g.Threshold)))
				continue
			}
			op := ">="
			if !g.Passed {
				op = "<"
			}
			b.WriteString(fmt.Sprintf("  %s %s: %s %s %s\n",
				icon, g.Metric, metrics.FormatValue(g.Value), op, metrics.FormatValue(g.Threshold)))
		}
		b.WriteString(fmt.Sprintf("  %s\n", InterpretGates(outcome.Gates)))
	}

	if len(outcome.StageResults) > 0 {
		b.WriteString("\nPer-Stage Interpretation:\n")
		for _, sr := range outcome.StageResults {
			icon := "✓"
			if sr.Status != models.StatusPassed {
				icon = "✗"
			}
			if sr.Status == models.StatusSkipped {
				icon = "-"
			}
			line := fmt.Sprintf("  %s %s: %s", icon, sr.Stage, sr.Status)
			if sr.Cached {
				line += " (cache hit)"
			}
			b.WriteString(line + "\n")
			if sr.Status == models.StatusFailed {
				b.WriteString(fmt.Sprintf("    exited with code %d\n", sr.ExitCode))
			}
			if sr.ErrorMsg != "" {
				b.WriteString(fmt.Sprintf("    %s\n", sr.ErrorMsg))
			}
		}
	}

	return b.String()
}
