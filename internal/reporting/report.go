// Package reporting builds the Markdown evaluation report, validates the
// links inside it, and exports run results in CI-friendly formats.
package reporting

import (
	"fmt"
	"os"
	"strings"

	"github.com/mlship/mlship/internal/metrics"
)

// DefaultPlotLabel is the alt text used for the confusion matrix image.
const DefaultPlotLabel = "Confusion Matrix"

// Report holds the pieces of the evaluation report. The rendered layout is
// the one CI reviewers already know: a metrics section followed by the
// confusion matrix plot, with an optional gate table when thresholds are
// configured.
type Report struct {
	Title       string               // optional top-level heading
	MetricsBody string               // verbatim contents of the metrics file
	PlotPath    string               // report-relative path to the plot image, "" to omit
	PlotLabel   string               // alt text for the plot image
	Gates       []metrics.GateResult // threshold results, rendered when non-empty
}

// Markdown renders the report.
func (r *Report) Markdown() string {
	var b strings.Builder

	if r.Title != "" {
		b.WriteString("# " + r.Title + "\n\n")
	}

	b.WriteString("## Model Metrics\n\n")
	body := strings.TrimSpace(r.MetricsBody)
	if body == "" {
		body = "_No metrics were produced._"
	}
	b.WriteString(body + "\n")

	if r.PlotPath != "" {
		label := r.PlotLabel
		if label == "" {
			label = DefaultPlotLabel
		}
		b.WriteString("\n## Confusion Matrix Plot\n\n")
		b.WriteString(fmt.Sprintf("![%s](%s)\n", label, toReportPath(r.PlotPath)))
	}

	if len(r.Gates) > 0 {
		b.WriteString("\n## Metric Gates\n\n")
		b.WriteString("| Metric | Value | Threshold | Status |\n")
		b.WriteString("|--------|-------|-----------|--------|\n")
		for _, g := range r.Gates {
			status := "✅"
			if !g.Passed {
				status = "❌"
			}
			value := metrics.FormatValue(g.Value)
			if g.Missing {
				value = "missing"
			}
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				g.Metric, value, metrics.FormatValue(g.Threshold), status))
		}
	}

	return b.String()
}

// Write renders the report and writes it to path.
func (r *Report) Write(path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown()), 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// toReportPath normalizes a plot path for Markdown: forward slashes, with an
// explicit ./ prefix so renderers treat it as relative to the report.
func toReportPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../") || strings.Contains(p, "://") {
		return p
	}
	return "./" + p
}
