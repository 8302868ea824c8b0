package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mlship/mlship/internal/models"
	"github.com/mlship/mlship/internal/pipeline"
)

// TrainArgs holds the options for the train stage.
type TrainArgs struct {
	// Script is the training entry point. Defaults to train.py.
	Script string `mapstructure:"script"`

	// Args are extra arguments passed to the script.
	Args []string `mapstructure:"args"`

	// Env sets extra environment variables for the training process.
	Env map[string]string `mapstructure:"env"`

	// TimeoutSec bounds the training run. Training gets a larger default
	// than other stages.
	TimeoutSec int `mapstructure:"timeout_seconds"`

	// Data lists input files (relative to the project dir) that feed the
	// training cache key alongside the script and requirements.
	Data []string `mapstructure:"data"`

	// ModelFile is the serialized model the script must produce in the
	// model dir.
	ModelFile string `mapstructure:"model_file"`

	// MetricsFile is the metrics file the script must produce in the
	// results dir.
	MetricsFile string `mapstructure:"metrics_file"`

	// PlotFile is the plot the script must produce in the results dir.
	PlotFile string `mapstructure:"plot_file"`
}

type trainStage struct {
	script      string
	args        []string
	env         map[string]string
	timeoutSec  int
	data        []string
	modelFile   string
	metricsFile string
	plotFile    string
}

// NewTrainStage creates a stage that runs the training script and verifies
// it produced the expected artifacts.
func NewTrainStage(args TrainArgs) (*trainStage, error) {
	if args.Script == "" {
		args.Script = pipeline.DefaultTrainScript
	}
	if args.TimeoutSec <= 0 {
		args.TimeoutSec = pipeline.DefaultTrainTimeoutSec
	}
	if args.ModelFile == "" {
		args.ModelFile = pipeline.DefaultModelFile
	}
	if args.MetricsFile == "" {
		args.MetricsFile = pipeline.DefaultMetricsFile
	}
	if args.PlotFile == "" {
		args.PlotFile = pipeline.DefaultPlotFile
	}
	return &trainStage{
		script:      args.Script,
		args:        args.Args,
		env:         args.Env,
		timeoutSec:  args.TimeoutSec,
		data:        args.Data,
		modelFile:   args.ModelFile,
		metricsFile: args.MetricsFile,
		plotFile:    args.PlotFile,
	}, nil
}

func (s *trainStage) Name() string {
	return pipeline.StageTrain
}

func (s *trainStage) Run(ctx context.Context, sc *Context) (*models.StageResult, error) {
	return measureStage(func() (*models.StageResult, error) {
		argv := append([]string{sc.Spec.Project.Python, s.script}, s.args...)

		resp, err := runCommand(ctx, sc, pipeline.StageTrain, argv, flattenEnv(s.env), s.timeoutSec)
		if err != nil {
			return nil, err
		}
		result := resultFromResponse(pipeline.StageTrain, resp)
		if result.Status != models.StatusPassed {
			return result, nil
		}

		// The script exiting zero is not enough; downstream stages need
		// the artifacts on disk.
		expected := s.expectedArtifacts(sc.Spec)
		var missing []string
		for _, rel := range expected {
			if _, err := os.Stat(filepath.Join(sc.Spec.Dir, rel)); err != nil {
				missing = append(missing, rel)
			}
		}
		if len(missing) > 0 {
			result.Status = models.StatusFailed
			result.ErrorMsg = fmt.Sprintf("training completed but did not produce: %s", strings.Join(missing, ", "))
			return result, nil
		}

		result.Artifacts = expected
		return result, nil
	})
}

// expectedArtifacts returns the artifact contract as paths relative to the
// project dir.
func (s *trainStage) expectedArtifacts(spec *pipeline.Spec) []string {
	return []string{
		filepath.Join(spec.Paths.Results, s.metricsFile),
		filepath.Join(spec.Paths.Results, s.plotFile),
		filepath.Join(spec.Paths.Model, s.modelFile),
	}
}

// CacheInputs implements Cacheable. A training run is replayable when the
// script, the dependency set, and the declared data files are unchanged.
func (s *trainStage) CacheInputs(spec *pipeline.Spec) []string {
	inputs := []string{s.script, spec.Project.Requirements}
	return append(inputs, s.data...)
}

// ArtifactPaths implements Cacheable.
func (s *trainStage) ArtifactPaths(spec *pipeline.Spec) []string {
	return []string{spec.Paths.Results, spec.Paths.Model}
}

// flattenEnv renders an env map as KEY=VALUE pairs in a stable order.
func flattenEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+env[k])
	}
	return pairs
}
