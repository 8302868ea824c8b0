package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mlship/mlship/internal/comment"
	"github.com/mlship/mlship/internal/metrics"
	"github.com/mlship/mlship/internal/models"
	"github.com/mlship/mlship/internal/pipeline"
	"github.com/mlship/mlship/internal/reporting"
)

// EvalArgs holds the options for the eval stage.
type EvalArgs struct {
	// MetricsFile is the metrics file to read from the results dir.
	MetricsFile string `mapstructure:"metrics_file"`

	// PlotFile is the plot to embed from the results dir.
	PlotFile string `mapstructure:"plot_file"`

	// ReportFile is the Markdown report written to the project dir.
	ReportFile string `mapstructure:"report_file"`

	// Title is an optional heading for the report.
	Title string `mapstructure:"title"`

	// Thresholds maps metric names to the minimum value each must reach.
	// Any breach fails the stage.
	Thresholds map[string]float64 `mapstructure:"thresholds"`

	// Comment controls posting the report as a CI comment. Unset means
	// post when a token and a CI target are available, true means the
	// comment is required, false disables it.
	Comment *bool `mapstructure:"comment"`

	// CheckLinks validates the report's links before publishing. On
	// unless disabled.
	CheckLinks *bool `mapstructure:"check_links"`
}

type evalStage struct {
	metricsFile string
	plotFile    string
	reportFile  string
	title       string
	thresholds  []metrics.Threshold
	comment     *bool
	checkLinks  bool

	// apiBaseURL overrides the forge endpoint, for tests.
	apiBaseURL string

	lastMetrics []metrics.Metric
	lastGates   []metrics.GateResult
}

// NewEvalStage creates a stage that turns the training metrics into a
// Markdown report, applies the metric gates, and posts the report as a CI
// comment.
func NewEvalStage(args EvalArgs) (*evalStage, error) {
	if args.MetricsFile == "" {
		args.MetricsFile = pipeline.DefaultMetricsFile
	}
	if args.PlotFile == "" {
		args.PlotFile = pipeline.DefaultPlotFile
	}
	if args.ReportFile == "" {
		args.ReportFile = pipeline.DefaultReportFile
	}
	checkLinks := true
	if args.CheckLinks != nil {
		checkLinks = *args.CheckLinks
	}
	return &evalStage{
		metricsFile: args.MetricsFile,
		plotFile:    args.PlotFile,
		reportFile:  args.ReportFile,
		title:       args.Title,
		thresholds:  sortedThresholds(args.Thresholds),
		comment:     args.Comment,
		checkLinks:  checkLinks,
	}, nil
}

func (s *evalStage) Name() string {
	return pipeline.StageEval
}

func (s *evalStage) Run(ctx context.Context, sc *Context) (*models.StageResult, error) {
	return measureStage(func() (*models.StageResult, error) {
		metricsRel := filepath.Join(sc.Spec.Paths.Results, s.metricsFile)
		raw, err := os.ReadFile(filepath.Join(sc.Spec.Dir, metricsRel))
		if err != nil {
			return failure(pipeline.StageEval, fmt.Sprintf("reading %s: %v", metricsRel, err)), nil
		}
		set, err := metrics.Parse(string(raw))
		if err != nil {
			return failure(pipeline.StageEval, fmt.Sprintf("parsing %s: %v", metricsRel, err)), nil
		}

		gates := metrics.Evaluate(set, s.thresholds)
		s.lastMetrics = set.All()
		s.lastGates = gates

		report := &reporting.Report{
			Title:       s.title,
			MetricsBody: string(raw),
			PlotPath:    filepath.ToSlash(filepath.Join(sc.Spec.Paths.Results, s.plotFile)),
			Gates:       gates,
		}
		reportPath := filepath.Join(sc.Spec.Dir, s.reportFile)
		if err := report.Write(reportPath); err != nil {
			return nil, err
		}

		var problems []string

		if s.checkLinks {
			checker := &reporting.LinkChecker{ProjectDir: sc.Spec.Dir}
			linkResult, err := checker.CheckFile(reportPath)
			if err != nil {
				return nil, err
			}
			if !linkResult.Passed() {
				for _, issue := range linkResult.Issues() {
					problems = append(problems, fmt.Sprintf("report link %s: %s", issue.Target, issue.Reason))
				}
			}
		}

		problems = append(problems, gateFailures(gates)...)

		if msg := s.publishComment(ctx, sc, report.Markdown()); msg != "" {
			problems = append(problems, msg)
		}

		result := &models.StageResult{
			Stage:     pipeline.StageEval,
			Status:    models.StatusPassed,
			Output:    set.Format(),
			Artifacts: []string{s.reportFile},
		}
		if len(problems) > 0 {
			result.Status = models.StatusFailed
			result.ErrorMsg = strings.Join(problems, "; ")
		}
		return result, nil
	})
}

// publishComment posts the report to the CI forge when configured to. A
// non-empty return is a failure message for the stage result.
func (s *evalStage) publishComment(ctx context.Context, sc *Context, body string) string {
	if s.comment != nil && !*s.comment {
		return ""
	}
	required := s.comment != nil && *s.comment

	token := sc.Creds.CommentToken()
	if token == "" {
		if required {
			return "posting the CI comment requires REPO_TOKEN or GITHUB_TOKEN"
		}
		slog.Debug("skipping CI comment, no token configured")
		return ""
	}
	target, err := comment.TargetFromEnv()
	if err != nil {
		if required {
			return fmt.Sprintf("resolving CI comment target: %v", err)
		}
		slog.Debug("skipping CI comment", "reason", err)
		return ""
	}

	res, err := comment.New(s.apiBaseURL, token).Publish(ctx, target, body)
	if err != nil {
		return fmt.Sprintf("publishing CI comment: %v", err)
	}
	slog.Info("posted CI comment", "url", res.URL, "updated", res.Updated)
	return ""
}

// LastMetrics implements MetricsReporter.
func (s *evalStage) LastMetrics() []metrics.Metric {
	return s.lastMetrics
}

// LastGates implements MetricsReporter.
func (s *evalStage) LastGates() []metrics.GateResult {
	return s.lastGates
}

// sortedThresholds turns the config map into a deterministic gate list.
func sortedThresholds(m map[string]float64) []metrics.Threshold {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	thresholds := make([]metrics.Threshold, 0, len(names))
	for _, name := range names {
		thresholds = append(thresholds, metrics.Threshold{Metric: name, Min: m[name]})
	}
	return thresholds
}

// gateFailures renders failed gates as stage failure messages.
func gateFailures(gates []metrics.GateResult) []string {
	var msgs []string
	for _, g := range gates {
		if g.Passed {
			continue
		}
		if g.Missing {
			msgs = append(msgs, fmt.Sprintf("metric %s is missing from the metrics file", g.Metric))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("metric %s = %s is below the %s threshold",
			g.Metric, metrics.FormatValue(g.Value), metrics.FormatValue(g.Threshold)))
	}
	return msgs
}
