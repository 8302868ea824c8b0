// Package pipeline provides the Spec struct and loader for mlship.yaml
// project configuration files.
package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mlship/mlship/internal/hooks"
)

// Stage names. The pipeline runs these in the order listed in the config;
// anything else in the `pipeline:` list is rejected at load time.
const (
	StageInstall      = "install"
	StageFormat       = "format"
	StageTrain        = "train"
	StageEval         = "eval"
	StageUpdateBranch = "update-branch"
	StageDeploy       = "deploy"
)

// KnownStages lists every built-in stage in canonical order.
var KnownStages = []string{
	StageInstall,
	StageFormat,
	StageTrain,
	StageEval,
	StageUpdateBranch,
	StageDeploy,
}

// Default values for pipeline configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultPython       = "python"
	DefaultRequirements = "requirements.txt"

	DefaultResultsDir = "Results"
	DefaultModelDir   = "Model"
	DefaultAppDir     = "App"

	DefaultTrainScript  = "train.py"
	DefaultModelFile    = "drug_pipeline.skops"
	DefaultFormatter    = "black"
	DefaultFormatTarget = "*.py"

	DefaultMetricsFile = "metrics.txt"
	DefaultPlotFile    = "model_results.png"
	DefaultReportFile  = "report.md"

	DefaultBranch        = "update"
	DefaultRemote        = "origin"
	DefaultCommitMessage = "Update with new results"

	DefaultTimeoutSec      = 600
	DefaultTrainTimeoutSec = 3600

	DefaultEngine = "shell"

	DefaultCacheDir = ".mlship-cache"

	DefaultDeployWorkers = 4
)

// DefaultPipeline is the stage sequence run by `mlship run` when the config
// does not declare one. Deploy is deliberately absent: continuous delivery
// triggers it separately once the results branch is updated.
var DefaultPipeline = []string{
	StageInstall,
	StageFormat,
	StageTrain,
	StageEval,
	StageUpdateBranch,
}

// Identity names the project.
type Identity struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ProjectConfig holds the Python toolchain settings.
type ProjectConfig struct {
	Python       string `yaml:"python,omitempty" json:"python,omitempty"`
	Requirements string `yaml:"requirements,omitempty" json:"requirements,omitempty"`
}

// PathsConfig holds the artifact directory layout.
type PathsConfig struct {
	Results string `yaml:"results,omitempty" json:"results,omitempty"`
	Model   string `yaml:"model,omitempty" json:"model,omitempty"`
	App     string `yaml:"app,omitempty" json:"app,omitempty"`
}

// RunConfig controls execution behavior.
type RunConfig struct {
	// Engine names the command executor. "shell" runs commands on the
	// host; "mock" is a no-op executor used in tests.
	Engine       string `yaml:"engine,omitempty" json:"engine,omitempty"`
	TimeoutSec   int    `yaml:"timeout_seconds,omitempty" json:"timeout_sec,omitempty"`
	StreamOutput *bool  `yaml:"stream_output,omitempty" json:"stream_output,omitempty"`
	FailFast     *bool  `yaml:"fail_fast,omitempty" json:"fail_fast,omitempty"`
}

// StageOptions is the raw option block for one stage. Each stage decodes
// its own options into a typed struct.
type StageOptions map[string]any

// Spec is the top-level configuration loaded from mlship.yaml.
type Spec struct {
	Identity `yaml:",inline"`
	Project  ProjectConfig           `yaml:"project,omitempty"`
	Paths    PathsConfig             `yaml:"paths,omitempty"`
	Config   RunConfig               `yaml:"config,omitempty"`
	Pipeline []string                `yaml:"pipeline,omitempty"`
	Stages   map[string]StageOptions `yaml:"stages,omitempty"`
	Hooks    hooks.Config            `yaml:"hooks,omitempty"`

	// Dir is the directory the config file was found in (or the start
	// directory when running on pure defaults). Artifact paths resolve
	// against it.
	Dir string `yaml:"-"`
}

// New returns a Spec with all hard-coded defaults populated.
func New() *Spec {
	return &Spec{
		Project: ProjectConfig{
			Python:       DefaultPython,
			Requirements: DefaultRequirements,
		},
		Paths: PathsConfig{
			Results: DefaultResultsDir,
			Model:   DefaultModelDir,
			App:     DefaultAppDir,
		},
		Config: RunConfig{
			Engine:       DefaultEngine,
			TimeoutSec:   DefaultTimeoutSec,
			StreamOutput: boolPtr(true),
			FailFast:     boolPtr(true),
		},
		Pipeline: append([]string(nil), DefaultPipeline...),
		Stages:   map[string]StageOptions{},
	}
}

// Validate checks that the spec is internally consistent.
func (s *Spec) Validate() error {
	for _, name := range s.Pipeline {
		if !IsKnownStage(name) {
			return fmt.Errorf("unknown stage %q in pipeline (valid stages: %s)",
				name, strings.Join(KnownStages, ", "))
		}
	}
	for name := range s.Stages {
		if !IsKnownStage(name) {
			return fmt.Errorf("options given for unknown stage %q", name)
		}
	}
	if s.Config.TimeoutSec < 1 {
		return fmt.Errorf("timeout_seconds must be at least 1, got %d", s.Config.TimeoutSec)
	}
	return nil
}

// IsKnownStage reports whether name is a built-in stage.
func IsKnownStage(name string) bool {
	for _, s := range KnownStages {
		if s == name {
			return true
		}
	}
	return false
}

// OptionsFor returns the raw option block for a stage, never nil.
func (s *Spec) OptionsFor(stage string) StageOptions {
	if opts, ok := s.Stages[stage]; ok {
		return opts
	}
	return StageOptions{}
}

// ResultsDir returns the absolute results directory.
func (s *Spec) ResultsDir() string { return s.resolve(s.Paths.Results) }

// ModelDir returns the absolute model directory.
func (s *Spec) ModelDir() string { return s.resolve(s.Paths.Model) }

// AppDir returns the absolute app directory.
func (s *Spec) AppDir() string { return s.resolve(s.Paths.App) }

// StreamOutput reports whether stage output should be echoed live.
func (s *Spec) StreamOutput() bool {
	return s.Config.StreamOutput == nil || *s.Config.StreamOutput
}

// FailFast reports whether the pipeline stops at the first failed stage.
func (s *Spec) FailFast() bool {
	return s.Config.FailFast == nil || *s.Config.FailFast
}

func (s *Spec) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.Dir, path)
}

func boolPtr(b bool) *bool {
	return &b
}
