package stages

import (
	"context"
	"fmt"

	"github.com/mlship/mlship/internal/gitops"
	"github.com/mlship/mlship/internal/models"
	"github.com/mlship/mlship/internal/pipeline"
)

// UpdateBranchArgs holds the options for the update-branch stage.
type UpdateBranchArgs struct {
	// Branch is the results branch the artifacts are force-pushed to.
	Branch string `mapstructure:"branch"`

	// Remote is the git remote to push to.
	Remote string `mapstructure:"remote"`

	// Message is the commit message for the results commit.
	Message string `mapstructure:"message"`
}

type updateBranchStage struct {
	branch  string
	remote  string
	message string
}

// NewUpdateBranchStage creates a stage that commits the run's artifacts and
// force-pushes them to the results branch.
func NewUpdateBranchStage(args UpdateBranchArgs) (*updateBranchStage, error) {
	if args.Branch == "" {
		args.Branch = pipeline.DefaultBranch
	}
	if args.Remote == "" {
		args.Remote = pipeline.DefaultRemote
	}
	if args.Message == "" {
		args.Message = pipeline.DefaultCommitMessage
	}
	return &updateBranchStage{
		branch:  args.Branch,
		remote:  args.Remote,
		message: args.Message,
	}, nil
}

func (s *updateBranchStage) Name() string {
	return pipeline.StageUpdateBranch
}

func (s *updateBranchStage) Run(ctx context.Context, sc *Context) (*models.StageResult, error) {
	return measureStage(func() (*models.StageResult, error) {
		git := gitops.NewClient(sc.Engine, sc.Spec.Dir, pipeline.StageUpdateBranch)

		if !git.IsInRepo(ctx) {
			return failure(pipeline.StageUpdateBranch, "project dir is not inside a git repository"), nil
		}

		name, email, ok := sc.Creds.GitIdentity()
		if !ok {
			return failure(pipeline.StageUpdateBranch, "USER_NAME and USER_EMAIL must be set to commit results"), nil
		}
		if err := git.SetLocalIdentity(ctx, name, email); err != nil {
			return failure(pipeline.StageUpdateBranch, err.Error()), nil
		}

		committed, err := git.CommitAll(ctx, s.message)
		if err != nil {
			return failure(pipeline.StageUpdateBranch, err.Error()), nil
		}
		if err := git.ForcePush(ctx, s.remote, s.branch); err != nil {
			return failure(pipeline.StageUpdateBranch, err.Error()), nil
		}

		output := fmt.Sprintf("pushed new results commit to %s %s", s.remote, s.branch)
		if !committed {
			output = fmt.Sprintf("working tree clean, pushed current HEAD to %s %s", s.remote, s.branch)
		}
		return &models.StageResult{
			Stage:  pipeline.StageUpdateBranch,
			Status: models.StatusPassed,
			Output: output,
		}, nil
	})
}
