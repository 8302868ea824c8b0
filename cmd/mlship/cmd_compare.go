package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mlship/mlship/internal/metrics"
	"github.com/mlship/mlship/internal/models"
	"github.com/spf13/cobra"
)

var compareOutputFormat = "table"

func newCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <before.json> <after.json> [more.json...]",
		Short: "Compare metrics between saved run outcomes",
		Long: `Compare two or more run outcome files produced with 'mlship run --output'.

Shows how the model metrics moved between the first and the last run, along
with per-stage duration changes. Useful for judging whether a training
change actually improved the model.`,
		Args: cobra.MinimumNArgs(2),
		RunE: compareCommandE,
	}

	cmd.Flags().StringVarP(&compareOutputFormat, "format", "f", "table", "Output format: table | json")

	return cmd
}

// comparisonReport is the compare command's output model. Deltas run from
// the first file to the last.
type comparisonReport struct {
	Files        []string         `json:"files"`
	Runs         []runSummaryJSON `json:"runs"`
	MetricDeltas []metrics.Delta  `json:"metric_deltas"`
	StageDeltas  []stageDeltaJSON `json:"stage_deltas"`
}

type runSummaryJSON struct {
	File        string  `json:"file"`
	Pipeline    string  `json:"pipeline"`
	Passed      bool    `json:"passed"`
	SuccessRate float64 `json:"success_rate"`
	DurationMs  int64   `json:"duration_ms"`
}

type stageDeltaJSON struct {
	Stage        string        `json:"stage"`
	BeforeStatus models.Status `json:"before_status"`
	AfterStatus  models.Status `json:"after_status"`
	BeforeMs     int64         `json:"before_ms"`
	AfterMs      int64         `json:"after_ms"`
	DeltaMs      int64         `json:"delta_ms"`
}

func compareCommandE(cmd *cobra.Command, args []string) error {
	if compareOutputFormat != "table" && compareOutputFormat != "json" {
		return fmt.Errorf("unsupported format: %s (expected table or json)", compareOutputFormat)
	}

	outcomes := make([]*models.RunOutcome, 0, len(args))
	for _, path := range args {
		outcome, err := loadOutcomeFile(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		outcomes = append(outcomes, outcome)
	}

	report := buildComparisonReport(args, outcomes)

	if compareOutputFormat == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data)) //nolint:errcheck
		return nil
	}

	printComparisonTable(cmd.OutOrStdout(), report)
	return nil
}

func loadOutcomeFile(path string) (*models.RunOutcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var outcome models.RunOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

func buildComparisonReport(files []string, outcomes []*models.RunOutcome) *comparisonReport {
	report := &comparisonReport{Files: files}

	for i, o := range outcomes {
		report.Runs = append(report.Runs, runSummaryJSON{
			File:        files[i],
			Pipeline:    o.Pipeline,
			Passed:      o.Passed(),
			SuccessRate: o.Digest.SuccessRate,
			DurationMs:  o.Digest.DurationMs,
		})
	}

	first := outcomes[0]
	last := outcomes[len(outcomes)-1]

	report.MetricDeltas = metrics.Diff(
		metrics.NewSet(first.Metrics),
		metrics.NewSet(last.Metrics),
	)
	report.StageDeltas = stageDeltas(first, last)

	return report
}

// stageDeltas pairs stage results between two runs. Order follows the
// "after" run, with stages that disappeared appended at the end.
func stageDeltas(before, after *models.RunOutcome) []stageDeltaJSON {
	byStage := map[string]*models.StageResult{}
	for i := range before.StageResults {
		sr := &before.StageResults[i]
		byStage[sr.Stage] = sr
	}

	var deltas []stageDeltaJSON
	seen := map[string]bool{}
	for _, sr := range after.StageResults {
		seen[sr.Stage] = true
		d := stageDeltaJSON{
			Stage:       sr.Stage,
			AfterStatus: sr.Status,
			AfterMs:     sr.DurationMs,
		}
		if prev, ok := byStage[sr.Stage]; ok {
			d.BeforeStatus = prev.Status
			d.BeforeMs = prev.DurationMs
			d.DeltaMs = sr.DurationMs - prev.DurationMs
		} else {
			d.BeforeStatus = models.StatusNA
		}
		deltas = append(deltas, d)
	}
	for _, sr := range before.StageResults {
		if !seen[sr.Stage] {
			deltas = append(deltas, stageDeltaJSON{
				Stage:        sr.Stage,
				BeforeStatus: sr.Status,
				AfterStatus:  models.StatusNA,
				BeforeMs:     sr.DurationMs,
			})
		}
	}
	return deltas
}

//nolint:errcheck
func printComparisonTable(w writer, report *comparisonReport) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("═", 72))
	fmt.Fprintln(w, " RUN COMPARISON")
	fmt.Fprintln(w, strings.Repeat("═", 72))
	fmt.Fprintln(w)

	fileWidth := len("File")
	for _, r := range report.Runs {
		if len(r.File) > fileWidth {
			fileWidth = len(r.File)
		}
	}
	if fileWidth > 32 {
		fileWidth = 32
	}

	fmt.Fprintf(w, "%s  %-8s  %-9s  %s\n", padRight("File", fileWidth), "Passed", "Success", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", 72))
	for _, r := range report.Runs {
		passed := "✗"
		if r.Passed {
			passed = "✓"
		}
		fmt.Fprintf(w, "%s  %-8s  %-9s  %s\n",
			padRight(truncateName(r.File, fileWidth), fileWidth),
			passed,
			fmt.Sprintf("%.1f%%", r.SuccessRate*100),
			formatDuration(time.Duration(r.DurationMs)*time.Millisecond))
	}
	fmt.Fprintln(w)

	firstFile := report.Files[0]
	lastFile := report.Files[len(report.Files)-1]

	if len(report.MetricDeltas) > 0 {
		fmt.Fprintf(w, "Metric deltas (%s vs %s):\n", firstFile, lastFile)
		fmt.Fprintf(w, "  %-16s  %-10s  %-10s  %s\n", "Metric", "Before", "After", "Delta")
		for _, d := range report.MetricDeltas {
			switch {
			case d.OnlyAfter:
				fmt.Fprintf(w, "  %-16s  %-10s  %-10s  %s\n",
					d.Name, "-", metrics.FormatValue(d.After), "(new)")
			case d.OnlyBefore:
				fmt.Fprintf(w, "  %-16s  %-10s  %-10s  %s\n",
					d.Name, metrics.FormatValue(d.Before), "-", "(gone)")
			default:
				fmt.Fprintf(w, "  %-16s  %-10s  %-10s  %s\n",
					d.Name, metrics.FormatValue(d.Before), metrics.FormatValue(d.After), deltaIcon(d.Diff))
			}
		}
		fmt.Fprintln(w)
	}

	if len(report.StageDeltas) > 0 {
		fmt.Fprintln(w, "Stage durations:")
		fmt.Fprintf(w, "  %-16s  %-10s  %-10s  %s\n", "Stage", "Before", "After", "Delta")
		for _, d := range report.StageDeltas {
			before := "-"
			if d.BeforeStatus != models.StatusNA {
				before = formatDuration(time.Duration(d.BeforeMs) * time.Millisecond)
			}
			after := "-"
			if d.AfterStatus != models.StatusNA {
				after = formatDuration(time.Duration(d.AfterMs) * time.Millisecond)
			}
			delta := ""
			if d.BeforeStatus != models.StatusNA && d.AfterStatus != models.StatusNA {
				delta = deltaDuration(d.DeltaMs)
			}
			fmt.Fprintf(w, "  %-16s  %-10s  %-10s  %s\n", d.Stage, before, after, delta)
		}
		fmt.Fprintln(w)
	}
}

// deltaIcon renders a signed metric change with a direction arrow.
func deltaIcon(diff float64) string {
	switch {
	case diff > 0:
		return fmt.Sprintf("↑ +%s", metrics.FormatValue(diff))
	case diff < 0:
		return fmt.Sprintf("↓ %s", metrics.FormatValue(diff))
	default:
		return "="
	}
}

// deltaDuration renders a signed duration change.
func deltaDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	switch {
	case ms > 0:
		return fmt.Sprintf("↑ +%s", formatDuration(d))
	case ms < 0:
		return fmt.Sprintf("↓ -%s", formatDuration(-d))
	default:
		return "="
	}
}
