// Package orchestration runs the configured pipeline: stage selection,
// lifecycle hooks, cache replay for cacheable stages and outcome assembly.
package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mlship/mlship/internal/cache"
	"github.com/mlship/mlship/internal/credentials"
	"github.com/mlship/mlship/internal/execution"
	"github.com/mlship/mlship/internal/hooks"
	"github.com/mlship/mlship/internal/models"
	"github.com/mlship/mlship/internal/pipeline"
	"github.com/mlship/mlship/internal/stages"
)

// Runner orchestrates the execution of pipeline stages
type Runner struct {
	spec    *pipeline.Spec
	engine  execution.Engine
	creds   *credentials.Credentials
	verbose bool

	// Stage filtering
	stageFilters []string
	fromStage    string

	// Result caching
	cache *cache.Cache

	// Engine label recorded on the outcome
	engineType string

	// Lifecycle hooks
	hookRunner *hooks.Runner

	// Progress tracking
	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventPipelineStart    EventType = "pipeline_start"
	EventPipelineComplete EventType = "pipeline_complete"
	EventStageStart       EventType = "stage_start"
	EventStageComplete    EventType = "stage_complete"
	EventStageCached      EventType = "stage_cached"
	EventStageSkipped     EventType = "stage_skipped"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType   EventType
	Stage       string
	StageNum    int
	TotalStages int
	Status      models.Status
	DurationMs  int64
	Details     map[string]any
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStageFilters sets glob patterns used to filter stages by name.
func WithStageFilters(patterns ...string) RunnerOption {
	return func(r *Runner) {
		r.stageFilters = patterns
	}
}

// WithFromStage starts the pipeline at the named stage.
func WithFromStage(stage string) RunnerOption {
	return func(r *Runner) {
		r.fromStage = stage
	}
}

// WithCache enables result caching for cacheable stages.
func WithCache(c *cache.Cache) RunnerOption {
	return func(r *Runner) {
		r.cache = c
	}
}

// WithVerbose enables verbose hook output.
func WithVerbose(v bool) RunnerOption {
	return func(r *Runner) {
		r.verbose = v
	}
}

// NewRunner creates a pipeline runner.
func NewRunner(spec *pipeline.Spec, engine execution.Engine, creds *credentials.Credentials, opts ...RunnerOption) *Runner {
	r := &Runner{
		spec:       spec,
		engine:     engine,
		creds:      creds,
		engineType: pipeline.DefaultEngine,
		listeners:  []ProgressListener{},
	}
	if spec.Config.Engine != "" {
		r.engineType = spec.Config.Engine
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run executes the pipeline and returns the assembled outcome. An error
// return means the run could not take place at all (bad filters, bad stage
// options, engine init); stage failures are reported on the outcome.
func (r *Runner) Run(ctx context.Context) (*models.RunOutcome, error) {
	startTime := time.Now()

	stageNames, err := SelectStages(r.spec.Pipeline, r.stageFilters, r.fromStage)
	if err != nil {
		return nil, err
	}
	if len(stageNames) == 0 {
		return nil, fmt.Errorf("no stages matched the filters (pipeline: %v)", r.spec.Pipeline)
	}

	// Build every stage up front so option errors surface before anything
	// runs.
	stageList := make([]stages.Stage, 0, len(stageNames))
	for _, name := range stageNames {
		st, err := stages.Create(name, r.spec)
		if err != nil {
			return nil, err
		}
		stageList = append(stageList, st)
	}

	if err := r.engine.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer func() {
		if err := r.engine.Shutdown(ctx); err != nil {
			slog.Warn("engine shutdown failed", "error", err)
		}
	}()

	r.hookRunner = &hooks.Runner{Dir: r.spec.Dir, Verbose: r.verbose}

	// after_run hooks fire on exit, even when a stage failed
	defer func() {
		if len(r.spec.Hooks.AfterRun) > 0 {
			if err := r.hookRunner.Execute(ctx, "after_run", r.spec.Hooks.AfterRun); err != nil {
				slog.Warn("after_run hook error", "error", err)
			}
		}
	}()
	if len(r.spec.Hooks.BeforeRun) > 0 {
		if err := r.hookRunner.Execute(ctx, "before_run", r.spec.Hooks.BeforeRun); err != nil {
			return nil, fmt.Errorf("before_run hook failed: %w", err)
		}
	}

	outcome := &models.RunOutcome{
		RunID:     uuid.NewString(),
		Pipeline:  r.spec.Name,
		Timestamp: startTime.UTC(),
		Setup: models.RunSetup{
			EngineType: r.engineType,
			Python:     r.spec.Project.Python,
			Stages:     stageNames,
			TimeoutSec: r.spec.Config.TimeoutSec,
		},
	}

	r.notifyProgress(ProgressEvent{
		EventType:   EventPipelineStart,
		TotalStages: len(stageList),
	})

	sc := &stages.Context{Spec: r.spec, Engine: r.engine, Creds: r.creds}

	failed := false
	for i, st := range stageList {
		if failed && r.spec.FailFast() {
			outcome.StageResults = append(outcome.StageResults, models.StageResult{
				Stage:  st.Name(),
				Status: models.StatusSkipped,
			})
			r.notifyProgress(ProgressEvent{
				EventType:   EventStageSkipped,
				Stage:       st.Name(),
				StageNum:    i + 1,
				TotalStages: len(stageList),
				Status:      models.StatusSkipped,
			})
			continue
		}

		stageHooks := r.spec.Hooks.ForStage(st.Name())
		if len(stageHooks.Before) > 0 {
			if err := r.hookRunner.Execute(ctx, "before:"+st.Name(), stageHooks.Before); err != nil {
				result := models.StageResult{
					Stage:    st.Name(),
					Status:   models.StatusFailed,
					ErrorMsg: fmt.Sprintf("before hook: %v", err),
				}
				outcome.StageResults = append(outcome.StageResults, result)
				failed = true
				r.notifyProgress(ProgressEvent{
					EventType:   EventStageComplete,
					Stage:       st.Name(),
					StageNum:    i + 1,
					TotalStages: len(stageList),
					Status:      models.StatusFailed,
				})
				continue
			}
		}

		r.notifyProgress(ProgressEvent{
			EventType:   EventStageStart,
			Stage:       st.Name(),
			StageNum:    i + 1,
			TotalStages: len(stageList),
		})

		result, wasCached := r.runStage(ctx, sc, st)

		// The eval stage carries the parsed metrics; lift them onto the
		// outcome so reports and compare work from the saved file.
		if mr, ok := st.(stages.MetricsReporter); ok {
			if m := mr.LastMetrics(); len(m) > 0 {
				outcome.Metrics = m
			}
			if g := mr.LastGates(); len(g) > 0 {
				outcome.Gates = g
			}
		}

		outcome.StageResults = append(outcome.StageResults, *result)
		if result.Status != models.StatusPassed {
			failed = true
		}

		if len(stageHooks.After) > 0 {
			if err := r.hookRunner.Execute(ctx, "after:"+st.Name(), stageHooks.After); err != nil {
				slog.Warn("after hook error", "stage", st.Name(), "error", err)
			}
		}

		eventType := EventStageComplete
		if wasCached {
			eventType = EventStageCached
		}
		r.notifyProgress(ProgressEvent{
			EventType:   eventType,
			Stage:       st.Name(),
			StageNum:    i + 1,
			TotalStages: len(stageList),
			Status:      result.Status,
			DurationMs:  result.DurationMs,
			Details:     stageDetails(result),
		})
	}

	outcome.Digest.DurationMs = time.Since(startTime).Milliseconds()
	outcome.Finalize()

	r.notifyProgress(ProgressEvent{
		EventType:  EventPipelineComplete,
		DurationMs: outcome.Digest.DurationMs,
	})

	return outcome, nil
}

// stageDetails extracts the fields listeners render for a finished stage.
func stageDetails(result *models.StageResult) map[string]any {
	details := map[string]any{
		"exit_code": result.ExitCode,
	}
	if result.ErrorMsg != "" {
		details["error"] = result.ErrorMsg
	}
	return details
}

// runStage executes one stage, replaying a cached result when possible.
func (r *Runner) runStage(ctx context.Context, sc *stages.Context, st stages.Stage) (*models.StageResult, bool) {
	cacheable, ok := st.(stages.Cacheable)
	if r.cache == nil || !ok {
		return r.executeStage(ctx, sc, st), false
	}

	key, err := cache.StageKey(r.spec, st.Name(), cacheable.CacheInputs(r.spec))
	if err != nil {
		slog.Warn("cache key generation failed, running stage", "stage", st.Name(), "error", err)
		return r.executeStage(ctx, sc, st), false
	}

	if cached, found := r.cache.Get(key); found {
		if err := r.cache.RestoreArtifacts(key, r.spec.Dir); err != nil {
			slog.Warn("cache artifact restore failed, re-running stage", "stage", st.Name(), "error", err)
		} else {
			replay := *cached
			replay.Cached = true
			return &replay, true
		}
	}

	result := r.executeStage(ctx, sc, st)

	// Only successful runs are worth replaying.
	if result.Status == models.StatusPassed {
		if err := r.cache.Put(key, result); err != nil {
			slog.Warn("cache write failed", "stage", st.Name(), "error", err)
		} else if err := r.cache.PutArtifacts(key, r.spec.Dir, cacheable.ArtifactPaths(r.spec)); err != nil {
			slog.Warn("cache artifact write failed", "stage", st.Name(), "error", err)
		}
	}
	return result, false
}

// executeStage runs the stage and converts an internal error into an error
// result so one broken stage cannot lose the rest of the outcome.
func (r *Runner) executeStage(ctx context.Context, sc *stages.Context, st stages.Stage) *models.StageResult {
	start := time.Now()
	result, err := st.Run(ctx, sc)
	if err != nil {
		return &models.StageResult{
			Stage:      st.Name(),
			Status:     models.StatusError,
			DurationMs: time.Since(start).Milliseconds(),
			ErrorMsg:   err.Error(),
		}
	}
	return result
}
