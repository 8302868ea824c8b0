// Package stages holds the built-in pipeline stages. Each stage wraps one
// step of the delivery flow (pip install, black, train.py, report + comment,
// results branch, hub deploy) behind a common interface so the runner can
// execute any configured sequence.
package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mlship/mlship/internal/credentials"
	"github.com/mlship/mlship/internal/execution"
	"github.com/mlship/mlship/internal/metrics"
	"github.com/mlship/mlship/internal/models"
	"github.com/mlship/mlship/internal/pipeline"
)

// outputTailBytes caps the command output kept on a stage result.
const outputTailBytes = 4096

// Stage is the interface for all pipeline stages.
type Stage interface {
	// Name returns the stage name as used in the pipeline list
	Name() string

	// Run executes the stage and returns its result
	Run(ctx context.Context, sc *Context) (*models.StageResult, error)
}

// Cacheable is implemented by stages whose outcome is a pure function of
// their inputs, letting the runner replay a cached result instead of
// executing the stage again.
type Cacheable interface {
	// CacheInputs returns the input files (relative to the project dir)
	// whose content feeds the cache key.
	CacheInputs(spec *pipeline.Spec) []string

	// ArtifactPaths returns the paths (relative to the project dir) the
	// stage produces, for archiving and restoring.
	ArtifactPaths(spec *pipeline.Spec) []string
}

// MetricsReporter is implemented by stages that produce model metrics, so
// the runner can lift them onto the run outcome.
type MetricsReporter interface {
	LastMetrics() []metrics.Metric
	LastGates() []metrics.GateResult
}

// Context provides the project state a stage runs against.
type Context struct {
	Spec   *pipeline.Spec
	Engine execution.Engine
	Creds  *credentials.Credentials
}

// Create builds a stage by name from its option block in the spec.
func Create(name string, spec *pipeline.Spec) (Stage, error) {
	params := spec.OptionsFor(name)

	switch name {
	case pipeline.StageInstall:
		var v InstallArgs
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, fmt.Errorf("install options: %w", err)
		}
		return NewInstallStage(v)
	case pipeline.StageFormat:
		var v FormatArgs
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, fmt.Errorf("format options: %w", err)
		}
		return NewFormatStage(v)
	case pipeline.StageTrain:
		var v TrainArgs
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, fmt.Errorf("train options: %w", err)
		}
		return NewTrainStage(v)
	case pipeline.StageEval:
		var v EvalArgs
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, fmt.Errorf("eval options: %w", err)
		}
		return NewEvalStage(v)
	case pipeline.StageUpdateBranch:
		var v UpdateBranchArgs
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, fmt.Errorf("update-branch options: %w", err)
		}
		return NewUpdateBranchStage(v)
	case pipeline.StageDeploy:
		var v DeployArgs
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, fmt.Errorf("deploy options: %w", err)
		}
		return NewDeployStage(v)
	default:
		return nil, fmt.Errorf("'%s' is not a valid stage name", name)
	}
}

// measureStage is a helper to measure stage duration
func measureStage(fn func() (*models.StageResult, error)) (*models.StageResult, error) {
	start := time.Now()
	result, err := fn()

	if result != nil {
		result.DurationMs = time.Since(start).Milliseconds()
	}

	return result, err
}

// runCommand executes argv through the engine with the stage's defaults
// applied: working dir from the spec, run timeout unless overridden, output
// streaming per config.
func runCommand(ctx context.Context, sc *Context, stage string, argv, extraEnv []string, timeoutSec int) (*execution.Response, error) {
	if timeoutSec <= 0 {
		timeoutSec = sc.Spec.Config.TimeoutSec
	}
	return sc.Engine.Execute(ctx, &execution.Request{
		Stage:      stage,
		Argv:       argv,
		Dir:        sc.Spec.Dir,
		Env:        extraEnv,
		TimeoutSec: timeoutSec,
		Stream:     sc.Spec.StreamOutput(),
	})
}

// resultFromResponse maps a command response onto a stage result.
func resultFromResponse(stage string, resp *execution.Response) *models.StageResult {
	result := &models.StageResult{
		Stage:    stage,
		Status:   models.StatusPassed,
		ExitCode: resp.ExitCode,
		Output:   resp.Tail(outputTailBytes),
	}
	if !resp.Success {
		result.Status = models.StatusFailed
		result.ErrorMsg = resp.ErrorMsg
		if result.ErrorMsg == "" {
			result.ErrorMsg = fmt.Sprintf("%s exited with code %d", stage, resp.ExitCode)
		}
	}
	return result
}

// failure builds a failed stage result for conditions detected natively,
// without a command having run.
func failure(stage, msg string) *models.StageResult {
	return &models.StageResult{
		Stage:    stage,
		Status:   models.StatusFailed,
		ErrorMsg: msg,
	}
}
