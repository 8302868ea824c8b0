// Package comment publishes the evaluation report as a comment on the
// forge: on the pull request when the run belongs to one, otherwise on the
// commit. Each comment carries a hidden watermark so a rerun updates the
// existing comment instead of stacking a new one.
package comment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-resty/resty/v2"

	"github.com/mlship/mlship/internal/utils"
)

// DefaultBaseURL is the public GitHub API endpoint.
const DefaultBaseURL = "https://api.github.com"

// DefaultWatermark identifies comments owned by this tool.
const DefaultWatermark = "mlship-report"

// Target identifies where the comment lands.
type Target struct {
	Repo     string // "owner/name"
	Commit   string // commit SHA, used when PRNumber is zero
	PRNumber int    // pull request number, takes precedence when set
}

func (t Target) validate() error {
	if t.Repo == "" || !strings.Contains(t.Repo, "/") {
		return fmt.Errorf("comment target needs a repository as owner/name, got %q", t.Repo)
	}
	if t.PRNumber <= 0 && t.Commit == "" {
		return fmt.Errorf("comment target needs a pull request number or a commit SHA")
	}
	return nil
}

type ciEnv struct {
	Repository string `env:"GITHUB_REPOSITORY"`
	SHA        string `env:"GITHUB_SHA"`
	Ref        string `env:"GITHUB_REF"`
}

// TargetFromEnv discovers the comment target from the CI runner's
// environment.
func TargetFromEnv() (Target, error) {
	var ce ciEnv
	if err := env.Parse(&ce); err != nil {
		return Target{}, fmt.Errorf("reading CI environment: %w", err)
	}

	t := Target{
		Repo:     ce.Repository,
		Commit:   ce.SHA,
		PRNumber: prNumberFromRef(ce.Ref),
	}
	if err := t.validate(); err != nil {
		return Target{}, fmt.Errorf("not running under CI? %w", err)
	}
	return t, nil
}

// prNumberFromRef extracts the PR number from refs like "refs/pull/42/merge".
func prNumberFromRef(ref string) int {
	parts := strings.Split(ref, "/")
	if len(parts) >= 3 && parts[0] == "refs" && parts[1] == "pull" {
		if n, err := strconv.Atoi(parts[2]); err == nil {
			return n
		}
	}
	return 0
}

// Result describes the published comment.
type Result struct {
	URL     string
	Updated bool
}

// Client talks to the forge's comment API.
type Client struct {
	client    *resty.Client
	watermark string
}

// New builds a Client. An empty baseURL means the public endpoint.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("Authorization", "Bearer "+token)

	return &Client{client: rc, watermark: DefaultWatermark}
}

// SetWatermark overrides the marker that identifies this tool's comments.
// Distinct watermarks let two pipelines comment on the same PR.
func (c *Client) SetWatermark(mark string) *Client {
	if mark != "" {
		c.watermark = mark
	}
	return c
}

func (c *Client) marker() string {
	return fmt.Sprintf("<!-- %s -->", c.watermark)
}

type apiComment struct {
	ID      int64  `json:"id"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
}

// Publish creates the report comment, or updates the previous one when a
// comment with this client's watermark already exists on the target.
func (c *Client) Publish(ctx context.Context, t Target, body string) (*Result, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	marked := body
	if !strings.Contains(marked, c.marker()) {
		marked = strings.TrimRight(marked, "\n") + "\n\n" + c.marker() + "\n"
	}

	existing, err := c.findExisting(ctx, t)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		url, err := c.update(ctx, t, existing.ID, marked)
		if err != nil {
			return nil, err
		}
		slog.Debug("updated existing comment", "repo", t.Repo, "comment_id", existing.ID)
		return &Result{URL: url, Updated: true}, nil
	}

	url, err := c.create(ctx, t, marked)
	if err != nil {
		return nil, err
	}
	return &Result{URL: url, Updated: false}, nil
}

func (c *Client) findExisting(ctx context.Context, t Target) (*apiComment, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("per_page", "100").
		Get(commentsPath(t))
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	if !res.IsSuccess() {
		return nil, apiError("listing comments", res)
	}

	var comments []apiComment
	if err := json.Unmarshal(res.Body(), &comments); err != nil {
		return nil, fmt.Errorf("parsing comment list: %w", err)
	}

	for i := range comments {
		if strings.Contains(comments[i].Body, c.marker()) {
			return &comments[i], nil
		}
	}
	return nil, nil
}

func (c *Client) create(ctx context.Context, t Target, body string) (string, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"body": body}).
		Post(commentsPath(t))
	if err != nil {
		return "", fmt.Errorf("creating comment: %w", err)
	}
	if !res.IsSuccess() {
		return "", apiError("creating comment", res)
	}

	var created apiComment
	if err := json.Unmarshal(res.Body(), &created); err != nil {
		return "", fmt.Errorf("parsing created comment: %w", err)
	}
	return created.HTMLURL, nil
}

func (c *Client) update(ctx context.Context, t Target, id int64, body string) (string, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"body": body}).
		Patch(updatePath(t, id))
	if err != nil {
		return "", fmt.Errorf("updating comment: %w", err)
	}
	if !res.IsSuccess() {
		return "", apiError("updating comment", res)
	}

	var updated apiComment
	if err := json.Unmarshal(res.Body(), &updated); err != nil {
		return "", fmt.Errorf("parsing updated comment: %w", err)
	}
	return updated.HTMLURL, nil
}

// commentsPath returns the list/create path: PR comments live under the
// issues API, commit comments under the commit itself.
func commentsPath(t Target) string {
	if t.PRNumber > 0 {
		return fmt.Sprintf("/repos/%s/issues/%d/comments", t.Repo, t.PRNumber)
	}
	return fmt.Sprintf("/repos/%s/commits/%s/comments", t.Repo, t.Commit)
}

func updatePath(t Target, id int64) string {
	if t.PRNumber > 0 {
		return fmt.Sprintf("/repos/%s/issues/comments/%d", t.Repo, id)
	}
	return fmt.Sprintf("/repos/%s/comments/%d", t.Repo, id)
}

func apiError(op string, res *resty.Response) error {
	return fmt.Errorf("%s: forge returned %d: %s", op, res.StatusCode(), utils.Truncate(res.String(), 400))
}
