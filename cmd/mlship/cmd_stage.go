package main

import (
	"github.com/mlship/mlship/internal/pipeline"
	"github.com/spf13/cobra"
)

var deploySpace string

// stageDoc describes one single-stage subcommand.
type stageDoc struct {
	stage string
	short string
	long  string
}

var stageDocs = []stageDoc{
	{
		stage: pipeline.StageInstall,
		short: "Install project dependencies",
		long: `Install the project's Python dependencies.

Upgrades pip and installs the requirements file with the configured Python
interpreter.`,
	},
	{
		stage: pipeline.StageFormat,
		short: "Format the training code",
		long:  `Run the configured formatter over the project's Python sources.`,
	},
	{
		stage: pipeline.StageTrain,
		short: "Run the training script",
		long: `Run the project's training script.

The script is expected to write its metrics file and plot into the results
directory and the serialized model into the model directory.`,
	},
	{
		stage: pipeline.StageEval,
		short: "Build the model report and check metric gates",
		long: `Assemble the Markdown model report from the training results, post it
as a CI comment when running inside CI, and evaluate any configured metric
thresholds.`,
	},
	{
		stage: pipeline.StageUpdateBranch,
		short: "Commit and push artifacts to the results branch",
		long: `Commit the generated artifacts and force-push them to the results
branch, where the deployment workflow picks them up.`,
	},
	{
		stage: pipeline.StageDeploy,
		short: "Upload the app, model and results to the hub space",
		long: `Log in to the hub with the configured token and upload the app folder
to the space root, the model folder under Model and the results folder
under Metrics.`,
	},
}

// newStageCommands builds one thin subcommand per pipeline stage. Each runs
// the shared pipeline path with the stage list narrowed to that stage, so
// caching, hooks, output and exit codes behave exactly as in a full run.
func newStageCommands() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(stageDocs))
	for _, doc := range stageDocs {
		cmds = append(cmds, newSingleStageCommand(doc))
	}
	return cmds
}

func newSingleStageCommand(doc stageDoc) *cobra.Command {
	stage := doc.stage
	cmd := &cobra.Command{
		Use:   stage + " [mlship.yaml]",
		Short: doc.short,
		Long:  doc.long,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := resolveSpec(args)
			if err != nil {
				return err
			}
			applyStageOverrides(spec, stage)
			// Narrow the pipeline to the one stage, whether or not the
			// config lists it. Deploy in particular is absent from the
			// default list and still runnable directly.
			spec.Pipeline = []string{stage}
			return executePipeline(cmd, spec)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for the run outcome")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with detailed progress")
	cmd.Flags().StringVar(&format, "format", "default", "Output format: default, github-comment")

	if stage == pipeline.StageDeploy {
		cmd.Flags().StringVar(&deploySpace, "space", "", "Target space as owner/name (overrides the config)")
	}

	return cmd
}

// applyStageOverrides folds command-line overrides into the stage options.
func applyStageOverrides(spec *pipeline.Spec, stage string) {
	if stage != pipeline.StageDeploy || deploySpace == "" {
		return
	}
	if spec.Stages == nil {
		spec.Stages = map[string]pipeline.StageOptions{}
	}
	opts := spec.Stages[stage]
	if opts == nil {
		opts = pipeline.StageOptions{}
	}
	opts["space"] = deploySpace
	spec.Stages[stage] = opts
}
