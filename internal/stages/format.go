package stages

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mlship/mlship/internal/models"
	"github.com/mlship/mlship/internal/pipeline"
)

// FormatArgs holds the options for the format stage.
type FormatArgs struct {
	// Formatter is the command to run. Defaults to black.
	Formatter string `mapstructure:"formatter"`

	// Targets are the file patterns to format, relative to the project
	// dir. Defaults to all Python files at the top level.
	Targets []string `mapstructure:"targets"`

	// CheckOnly reports formatting violations without rewriting files.
	CheckOnly bool `mapstructure:"check_only"`

	// Args are extra arguments passed to the formatter.
	Args []string `mapstructure:"args"`
}

type formatStage struct {
	formatter string
	targets   []string
	checkOnly bool
	extraArgs []string
}

// NewFormatStage creates a stage that formats the project's source files.
func NewFormatStage(args FormatArgs) (*formatStage, error) {
	if args.Formatter == "" {
		args.Formatter = pipeline.DefaultFormatter
	}
	if len(args.Targets) == 0 {
		args.Targets = []string{pipeline.DefaultFormatTarget}
	}
	return &formatStage{
		formatter: args.Formatter,
		targets:   args.Targets,
		checkOnly: args.CheckOnly,
		extraArgs: args.Args,
	}, nil
}

func (s *formatStage) Name() string {
	return pipeline.StageFormat
}

func (s *formatStage) Run(ctx context.Context, sc *Context) (*models.StageResult, error) {
	return measureStage(func() (*models.StageResult, error) {
		// Commands run without a shell, so glob patterns in the targets
		// are expanded here rather than by /bin/sh.
		files, err := expandTargets(sc.Spec.Dir, s.targets)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return &models.StageResult{
				Stage:  pipeline.StageFormat,
				Status: models.StatusPassed,
				Output: "no files matched the format targets " + strings.Join(s.targets, " "),
			}, nil
		}

		argv := []string{s.formatter}
		if s.checkOnly {
			argv = append(argv, "--check")
		}
		argv = append(argv, s.extraArgs...)
		argv = append(argv, files...)

		resp, err := runCommand(ctx, sc, pipeline.StageFormat, argv, nil, 0)
		if err != nil {
			return nil, err
		}
		return resultFromResponse(pipeline.StageFormat, resp), nil
	})
}

// expandTargets resolves glob patterns against dir and returns paths
// relative to it. Targets without glob characters pass through untouched so
// the formatter itself reports missing files.
func expandTargets(dir string, targets []string) ([]string, error) {
	var files []string
	for _, target := range targets {
		if !strings.ContainsAny(target, "*?[") {
			files = append(files, target)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(dir, target))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			rel, err := filepath.Rel(dir, m)
			if err != nil {
				rel = m
			}
			files = append(files, rel)
		}
	}
	sort.Strings(files)
	return files, nil
}
