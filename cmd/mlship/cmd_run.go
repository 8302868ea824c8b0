package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mlship/mlship/internal/cache"
	"github.com/mlship/mlship/internal/credentials"
	"github.com/mlship/mlship/internal/execution"
	"github.com/mlship/mlship/internal/metrics"
	"github.com/mlship/mlship/internal/models"
	"github.com/mlship/mlship/internal/orchestration"
	"github.com/mlship/mlship/internal/pipeline"
	"github.com/mlship/mlship/internal/reporting"
	"github.com/mlship/mlship/internal/spinner"
	"github.com/mlship/mlship/internal/stages"
	"github.com/spf13/cobra"
)

var (
	outputPath   string
	verbose      bool
	stageFilters []string
	fromStage    string
	interpret    bool
	format       string
	enableCache  bool
	disableCache bool
	runCacheDir  string
	archiveURL   string
	junitPath    string
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [mlship.yaml]",
		Short: "Run the ML pipeline",
		Long: `Run the project pipeline from its config file.

Without an argument the nearest mlship.yaml is used, searching upward from
the working directory. A project without a config runs the default stage
list against the conventional layout (train.py, requirements.txt, Results/,
Model/).`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for the run outcome")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with detailed progress")
	cmd.Flags().StringArrayVar(&stageFilters, "stage", nil, "Filter stages by name glob pattern (can be repeated)")
	cmd.Flags().StringVar(&fromStage, "from", "", "Start the pipeline at the named stage")
	cmd.Flags().BoolVar(&interpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().StringVar(&format, "format", "default", "Output format: default, github-comment")
	cmd.Flags().BoolVar(&enableCache, "cache", false, "Enable stage result caching (default: false)")
	cmd.Flags().BoolVar(&disableCache, "no-cache", false, "Disable stage result caching (default)")
	cmd.Flags().StringVar(&runCacheDir, "cache-dir", pipeline.DefaultCacheDir, "Cache directory for storing stage results")
	cmd.Flags().StringVar(&archiveURL, "archive", "", "Mirror results and model dirs to an object store URL after a passing run")
	cmd.Flags().StringVar(&junitPath, "junit", "", "Write a JUnit XML report of the stage results")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	spec, err := resolveSpec(args)
	if err != nil {
		return err
	}
	return executePipeline(cmd, spec)
}

// executePipeline runs the spec's stage list and handles output, archival
// and exit-code mapping. Single-stage commands reuse it with a narrowed
// pipeline.
func executePipeline(cmd *cobra.Command, spec *pipeline.Spec) error {
	creds, err := credentials.FromEnv()
	if err != nil {
		return fmt.Errorf("reading credentials: %w", err)
	}

	// Setup cache if enabled
	var stageCache *cache.Cache
	if enableCache && !disableCache {
		absCacheDir, err := filepath.Abs(runCacheDir)
		if err != nil {
			return fmt.Errorf("resolving cache directory: %w", err)
		}
		stageCache = cache.New(absCacheDir)
		if verbose {
			fmt.Printf("Cache enabled: %s\n", absCacheDir)
		}
	}

	// Create engine based on spec
	var engine execution.Engine
	switch spec.Config.Engine {
	case "", pipeline.DefaultEngine:
		engine = execution.NewShellEngine()
	case "mock":
		engine = execution.NewMockEngine()
	default:
		return fmt.Errorf("unknown engine type: %s", spec.Config.Engine)
	}

	runnerOpts := []orchestration.RunnerOption{
		orchestration.WithStageFilters(stageFilters...),
		orchestration.WithVerbose(verbose),
	}
	if fromStage != "" {
		runnerOpts = append(runnerOpts, orchestration.WithFromStage(fromStage))
	}
	if stageCache != nil {
		runnerOpts = append(runnerOpts, orchestration.WithCache(stageCache))
	}
	runner := orchestration.NewRunner(spec, engine, creds, runnerOpts...)

	// Add progress listener
	if verbose {
		runner.OnProgress(verboseProgressListener)
	} else {
		runner.OnProgress(simpleProgressListener)
	}

	ctx := context.Background()

	fmt.Printf("Running pipeline: %s\n", spec.Name)
	fmt.Printf("Project dir: %s\n", spec.Dir)
	fmt.Printf("Python: %s\n", spec.Project.Python)
	fmt.Printf("Stages: %s\n", strings.Join(spec.Pipeline, ", "))
	fmt.Println()

	outcome, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	// Print results based on format
	switch format {
	case "github-comment":
		fmt.Print(FormatGitHubComment(outcome))
	case "default":
		printSummary(outcome)

		if interpret {
			fmt.Println()
			fmt.Print(reporting.FormatSummaryReport(outcome))
		}
	default:
		return fmt.Errorf("unknown output format: %s (supported: default, github-comment)", format)
	}

	if outputPath != "" {
		if err := saveOutcome(outcome, outputPath); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Printf("\nResults saved to: %s\n", outputPath)
	}

	if junitPath != "" {
		if err := reporting.WriteJUnitXML(outcome, junitPath); err != nil {
			return fmt.Errorf("failed to write JUnit report: %w", err)
		}
		fmt.Printf("JUnit report saved to: %s\n", junitPath)
	}

	// Return stage failure as error so main can map it to exit code 1
	if outcome.Digest.Failed > 0 || outcome.Digest.Errors > 0 {
		return &StageFailureError{
			Message: fmt.Sprintf("pipeline completed with %d failed and %d error stage(s)", outcome.Digest.Failed, outcome.Digest.Errors),
		}
	}

	// Archive only passing runs; a broken run should not overwrite the
	// last good artifacts in the store.
	if archiveURL != "" {
		stopSpinner := spinner.Start(cmd.ErrOrStderr(), "Archiving artifacts...")
		err := stages.ArchiveArtifacts(ctx, spec, creds, archiveURL)
		stopSpinner()
		if err != nil {
			return fmt.Errorf("failed to archive artifacts: %w", err)
		}
		fmt.Printf("Artifacts archived to: %s\n", archiveURL)
	}

	return nil
}

func verboseProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventPipelineStart:
		fmt.Printf("Starting pipeline with %d stage(s)...\n\n", event.TotalStages)
	case orchestration.EventStageStart:
		fmt.Printf("[%d/%d] Running stage: %s\n", event.StageNum, event.TotalStages, event.Stage)
	case orchestration.EventStageCached:
		fmt.Printf("[%d/%d] Stage: %s [cached]\n\n", event.StageNum, event.TotalStages, event.Stage)
	case orchestration.EventStageComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("  Stage %s: %s (%v)\n\n", event.Stage, event.Status, duration)
	case orchestration.EventStageSkipped:
		fmt.Printf("[%d/%d] Stage: %s [skipped]\n\n", event.StageNum, event.TotalStages, event.Stage)
	case orchestration.EventPipelineComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("Pipeline completed in %v\n\n", duration)
	}
}

func simpleProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventStageCached:
		fmt.Printf("✓ [%d/%d] %s [cached]\n", event.StageNum, event.TotalStages, event.Stage)
	case orchestration.EventStageSkipped:
		fmt.Printf("- [%d/%d] %s [skipped]\n", event.StageNum, event.TotalStages, event.Stage)
	case orchestration.EventStageComplete:
		status := "✓"
		if event.Status != models.StatusPassed {
			status = "✗"
		}
		fmt.Printf("%s [%d/%d] %s\n", status, event.StageNum, event.TotalStages, event.Stage)
	}
}

func printSummary(outcome *models.RunOutcome) {
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" PIPELINE RESULTS")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	digest := outcome.Digest

	fmt.Printf("Total Stages:   %d\n", digest.TotalStages)
	fmt.Printf("Succeeded:      %d\n", digest.Succeeded)
	fmt.Printf("Failed:         %d\n", digest.Failed)
	fmt.Printf("Errors:         %d\n", digest.Errors)
	fmt.Printf("Skipped:        %d\n", digest.Skipped)
	fmt.Printf("Success Rate:   %.1f%%\n", digest.SuccessRate*100)

	duration := time.Duration(digest.DurationMs) * time.Millisecond
	fmt.Printf("Duration:       %v\n", duration)
	fmt.Println()

	// Per-stage breakdown
	fmt.Println("-" + strings.Repeat("-", 50))
	fmt.Println(" STAGE BREAKDOWN")
	fmt.Println("-" + strings.Repeat("-", 50))
	for _, sr := range outcome.StageResults {
		icon := "✓"
		if sr.Status != models.StatusPassed {
			icon = "✗"
		}
		if sr.Status == models.StatusSkipped {
			icon = "-"
		}
		marker := ""
		if sr.Cached {
			marker = " [cached]"
		}
		fmt.Printf("  %s %s [%s]%s %s\n", icon, sr.Stage, sr.Status, marker,
			formatDuration(time.Duration(sr.DurationMs)*time.Millisecond))
	}
	fmt.Println()

	// Show metrics when the eval stage produced them
	if len(outcome.Metrics) > 0 {
		fmt.Println("Metrics:")
		for _, m := range outcome.Metrics {
			fmt.Printf("  %s = %s\n", m.Name, metrics.FormatValue(m.Value))
		}
		fmt.Println()
	}

	if len(outcome.Gates) > 0 {
		fmt.Println("Metric Gates:")
		for _, g := range outcome.Gates {
			icon := "✓"
			if !g.Passed {
				icon = "✗"
			}
			if g.Missing {
				fmt.Printf("  %s %s: not found in metrics file (threshold %s)\n", icon, g.Metric, metrics.FormatValue(g.Threshold))
				continue
			}
			fmt.Printf("  %s %s: %s (threshold %s)\n", icon, g.Metric, metrics.FormatValue(g.Value), metrics.FormatValue(g.Threshold))
		}
		fmt.Println()
	}

	// Show failed stages
	if digest.Failed > 0 || digest.Errors > 0 {
		fmt.Println("Failed Stages:")
		for _, sr := range outcome.StageResults {
			if sr.Status != models.StatusFailed && sr.Status != models.StatusError {
				continue
			}
			fmt.Printf("  - %s (%s)\n", sr.Stage, sr.Status)
			if sr.ErrorMsg != "" {
				fmt.Printf("    • %s\n", sr.ErrorMsg)
			}
			if sr.ExitCode != 0 {
				fmt.Printf("    • exit code %d\n", sr.ExitCode)
			}
		}
		fmt.Println()
	}
}

func saveOutcome(outcome *models.RunOutcome, path string) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
