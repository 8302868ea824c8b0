package main

import (
	"fmt"
	"os"

	"github.com/mlship/mlship/internal/pipeline"
	"github.com/mlship/mlship/internal/workspace"
)

// resolveSpec loads the pipeline spec for a command invocation.
// Behavior:
//   - Explicit path to a config file → loaded directly
//   - Project name + multi-project workspace → that project's config
//   - No args → nearest mlship.yaml walking up from the working directory,
//     falling back to pure defaults rooted there when none exists
func resolveSpec(args []string) (*pipeline.Spec, error) {
	if len(args) > 0 {
		arg := args[0]
		if workspace.LooksLikePath(arg) {
			spec, err := pipeline.LoadFile(arg)
			if err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
			return spec, nil
		}

		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		wsCtx, err := workspace.DetectContext(wd)
		if err != nil {
			return nil, fmt.Errorf("detecting workspace: %w", err)
		}
		if wsCtx.Type == workspace.ContextNone {
			return nil, fmt.Errorf("no project detected and %q is not a file path", arg)
		}
		pi, err := workspace.FindProject(wsCtx, arg)
		if err != nil {
			return nil, err
		}
		spec, err := pipeline.LoadFile(pi.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config for project %s: %w", pi.Name, err)
		}
		return spec, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	spec, err := pipeline.Load(wd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return spec, nil
}
