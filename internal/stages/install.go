package stages

import (
	"context"

	"github.com/mlship/mlship/internal/execution"
	"github.com/mlship/mlship/internal/models"
	"github.com/mlship/mlship/internal/pipeline"
	"github.com/mlship/mlship/internal/utils"
)

// InstallArgs holds the options for the install stage.
type InstallArgs struct {
	// UpgradePip upgrades pip itself before installing the requirements.
	// On unless disabled.
	UpgradePip *bool `mapstructure:"upgrade_pip"`

	// Requirements overrides the project requirements file.
	Requirements string `mapstructure:"requirements"`

	// Packages are extra packages installed after the requirements file.
	Packages []string `mapstructure:"packages"`
}

type installStage struct {
	upgradePip   bool
	requirements string
	packages     []string
}

// NewInstallStage creates a stage that installs the project's Python
// dependencies with pip.
func NewInstallStage(args InstallArgs) (*installStage, error) {
	if args.UpgradePip == nil {
		args.UpgradePip = utils.Ptr(true)
	}
	return &installStage{
		upgradePip:   *args.UpgradePip,
		requirements: args.Requirements,
		packages:     args.Packages,
	}, nil
}

func (s *installStage) Name() string {
	return pipeline.StageInstall
}

func (s *installStage) Run(ctx context.Context, sc *Context) (*models.StageResult, error) {
	return measureStage(func() (*models.StageResult, error) {
		python := sc.Spec.Project.Python
		requirements := s.requirements
		if requirements == "" {
			requirements = sc.Spec.Project.Requirements
		}

		// pip is invoked through the configured interpreter so the
		// packages land in that interpreter's environment even when
		// several Pythons are on PATH.
		var steps [][]string
		if s.upgradePip {
			steps = append(steps, []string{python, "-m", "pip", "install", "--upgrade", "pip"})
		}
		steps = append(steps, []string{python, "-m", "pip", "install", "-r", requirements})
		if len(s.packages) > 0 {
			steps = append(steps, append([]string{python, "-m", "pip", "install"}, s.packages...))
		}

		var last *execution.Response
		for _, argv := range steps {
			resp, err := runCommand(ctx, sc, pipeline.StageInstall, argv, nil, 0)
			if err != nil {
				return nil, err
			}
			if !resp.Success {
				return resultFromResponse(pipeline.StageInstall, resp), nil
			}
			last = resp
		}
		return resultFromResponse(pipeline.StageInstall, last), nil
	})
}
