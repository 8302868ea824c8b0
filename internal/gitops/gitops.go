// Package gitops wraps the git operations the pipeline needs. Commands run
// through an execution.Engine so stage logic stays testable without a real
// repository.
package gitops

import (
	"context"
	"fmt"
	"strings"

	"github.com/mlship/mlship/internal/execution"
)

// Client runs git against one repository directory.
type Client struct {
	engine execution.Engine
	dir    string
	stage  string
}

// NewClient creates a git client for dir. stage labels the requests for
// logging and error context.
func NewClient(engine execution.Engine, dir, stage string) *Client {
	return &Client{engine: engine, dir: dir, stage: stage}
}

func (c *Client) run(ctx context.Context, args ...string) (*execution.Response, error) {
	return c.engine.Execute(ctx, &execution.Request{
		Stage: c.stage,
		Argv:  append([]string{"git"}, args...),
		Dir:   c.dir,
	})
}

// git runs a command and converts a non-zero exit into an error carrying
// the trailing output.
func (c *Client) git(ctx context.Context, args ...string) (*execution.Response, error) {
	resp, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return resp, fmt.Errorf("git %s: %s: %s", args[0], resp.ErrorMsg, resp.Tail(400))
	}
	return resp, nil
}

// IsInRepo returns true if the directory is inside a git repository.
func (c *Client) IsInRepo(ctx context.Context) bool {
	resp, err := c.run(ctx, "rev-parse", "--git-dir")
	return err == nil && resp.Success
}

// CurrentBranch returns the checked-out branch name.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	resp, err := c.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Stdout), nil
}

// RefExists returns true if the given git ref can be resolved.
func (c *Client) RefExists(ctx context.Context, ref string) bool {
	resp, err := c.run(ctx, "rev-parse", "--verify", "--quiet", ref)
	return err == nil && resp.Success
}

// SetLocalIdentity sets user.name and user.email in the repository's own
// config. The scope is intentionally local: CI images are shared, and a
// --global write would leak the identity into every later step.
func (c *Client) SetLocalIdentity(ctx context.Context, name, email string) error {
	if _, err := c.git(ctx, "config", "user.name", name); err != nil {
		return fmt.Errorf("setting user.name: %w", err)
	}
	if _, err := c.git(ctx, "config", "user.email", email); err != nil {
		return fmt.Errorf("setting user.email: %w", err)
	}
	return nil
}

// CommitAll commits every tracked change (git commit -am). A clean working
// tree is not an error; committed reports whether a commit was created.
func (c *Client) CommitAll(ctx context.Context, message string) (committed bool, err error) {
	resp, err := c.run(ctx, "commit", "-am", message)
	if err != nil {
		return false, err
	}
	if resp.Success {
		return true, nil
	}
	if resp.ContainsText("nothing to commit") || resp.ContainsText("working tree clean") {
		return false, nil
	}
	return false, fmt.Errorf("git commit: %s: %s", resp.ErrorMsg, resp.Tail(400))
}

// ForcePush pushes HEAD to remote/branch with --force, the results-branch
// contract: the branch always mirrors the latest run.
func (c *Client) ForcePush(ctx context.Context, remote, branch string) error {
	if _, err := c.git(ctx, "push", "--force", remote, "HEAD:"+branch); err != nil {
		return err
	}
	return nil
}

// Pull fetches and merges remote/branch, tolerating a branch that does not
// exist remotely yet (first pipeline run).
func (c *Client) Pull(ctx context.Context, remote, branch string) error {
	resp, err := c.run(ctx, "pull", remote, branch)
	if err != nil {
		return err
	}
	if !resp.Success {
		if resp.ContainsText("couldn't find remote ref") {
			return nil
		}
		return fmt.Errorf("git pull: %s: %s", resp.ErrorMsg, resp.Tail(400))
	}
	return nil
}

// Switch checks out the branch, creating it when it does not exist yet.
func (c *Client) Switch(ctx context.Context, branch string) error {
	resp, err := c.run(ctx, "switch", branch)
	if err != nil {
		return err
	}
	if resp.Success {
		return nil
	}
	if _, err := c.git(ctx, "switch", "-c", branch); err != nil {
		return fmt.Errorf("switching to %q: %w", branch, err)
	}
	return nil
}
