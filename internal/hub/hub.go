// Package hub is a client for the hosted model hub: token validation, repo
// creation, and file commits against a space, model or dataset repo. Only
// the pieces the deploy stage needs are implemented.
package hub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mlship/mlship/internal/utils"
)

// DefaultBaseURL is the public hub endpoint.
const DefaultBaseURL = "https://huggingface.co"

// DefaultRevision is the branch commits land on when none is given.
const DefaultRevision = "main"

// Repo types.
const (
	TypeSpace   = "space"
	TypeModel   = "model"
	TypeDataset = "dataset"
)

// Repo names a hub repository.
type Repo struct {
	Type string // space, model or dataset
	ID   string // "owner/name"
}

func (r Repo) validate() error {
	switch r.Type {
	case TypeSpace, TypeModel, TypeDataset:
	default:
		return fmt.Errorf("unknown hub repo type %q", r.Type)
	}
	if !strings.Contains(r.ID, "/") {
		return fmt.Errorf("hub repo id must be owner/name, got %q", r.ID)
	}
	return nil
}

// plural returns the API path segment for the repo type.
func (r Repo) plural() string {
	return r.Type + "s"
}

// resolvePrefix returns the site path prefix for raw file access. Models
// resolve at the root; spaces and datasets under their own segment.
func (r Repo) resolvePrefix() string {
	if r.Type == TypeModel {
		return ""
	}
	return "/" + r.plural()
}

// Account is the identity behind a token.
type Account struct {
	Name     string `json:"name"`
	Fullname string `json:"fullname,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Client talks to the hub API.
type Client struct {
	client *resty.Client
}

// New builds a Client. An empty baseURL means the public hub.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Minute).
		SetHeader("Authorization", "Bearer "+token)

	return &Client{client: rc}
}

// WhoAmI validates the token and returns the account behind it. This is the
// login step: a deploy with a bad token fails here, before any upload.
func (c *Client) WhoAmI(ctx context.Context) (*Account, error) {
	res, err := c.client.R().
		SetContext(ctx).
		Get("/api/whoami-v2")
	if err != nil {
		return nil, fmt.Errorf("reaching hub: %w", err)
	}
	if res.StatusCode() == http.StatusUnauthorized {
		return nil, fmt.Errorf("hub rejected the token (set HF_TOKEN): %s", utils.Truncate(res.String(), 200))
	}
	if !res.IsSuccess() {
		return nil, apiError("validating token", res)
	}

	var account Account
	if err := json.Unmarshal(res.Body(), &account); err != nil {
		return nil, fmt.Errorf("parsing whoami response: %w", err)
	}
	return &account, nil
}

// EnsureRepo creates the repo when it does not exist yet. Returns true when
// it was created by this call.
func (c *Client) EnsureRepo(ctx context.Context, repo Repo, sdk string) (bool, error) {
	if err := repo.validate(); err != nil {
		return false, err
	}

	res, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/api/%s/%s", repo.plural(), repo.ID))
	if err != nil {
		return false, fmt.Errorf("checking repo %s: %w", repo.ID, err)
	}
	if res.IsSuccess() {
		return false, nil
	}
	if res.StatusCode() != http.StatusNotFound {
		return false, apiError("checking repo "+repo.ID, res)
	}

	owner, name, _ := strings.Cut(repo.ID, "/")
	body := map[string]any{
		"type":         repo.Type,
		"name":         name,
		"organization": owner,
		"private":      false,
	}
	if repo.Type == TypeSpace && sdk != "" {
		body["sdk"] = sdk
	}

	res, err = c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/api/repos/create")
	if err != nil {
		return false, fmt.Errorf("creating repo %s: %w", repo.ID, err)
	}
	if res.StatusCode() == http.StatusConflict {
		// Lost a race with another runner; the repo exists now.
		return false, nil
	}
	if !res.IsSuccess() {
		return false, apiError("creating repo "+repo.ID, res)
	}
	return true, nil
}

// FileExists reports whether path exists in the repo at revision.
func (c *Client) FileExists(ctx context.Context, repo Repo, revision, path string) (bool, error) {
	if err := repo.validate(); err != nil {
		return false, err
	}
	if revision == "" {
		revision = DefaultRevision
	}

	res, err := c.client.R().
		SetContext(ctx).
		Head(fmt.Sprintf("%s/%s/resolve/%s/%s", repo.resolvePrefix(), repo.ID, revision, path))
	if err != nil {
		return false, fmt.Errorf("checking %s in %s: %w", path, repo.ID, err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if !res.IsSuccess() {
		return false, apiError("checking "+path, res)
	}
	return true, nil
}

// CommitFile is one file in a commit.
type CommitFile struct {
	Path    string // destination path inside the repo
	Content []byte
}

// CommitFiles writes the files to the repo in a single commit. The payload
// is the hub's NDJSON commit format: a header line with the message, then
// one base64 file line per file.
func (c *Client) CommitFiles(ctx context.Context, repo Repo, revision, message string, files []CommitFile) error {
	if err := repo.validate(); err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	if revision == "" {
		revision = DefaultRevision
	}
	if message == "" {
		message = "Upload with mlship"
	}

	var b strings.Builder
	if err := writeNDJSONLine(&b, "header", map[string]any{"summary": message}); err != nil {
		return err
	}
	for _, f := range files {
		err := writeNDJSONLine(&b, "file", map[string]any{
			"path":     f.Path,
			"content":  base64.StdEncoding.EncodeToString(f.Content),
			"encoding": "base64",
		})
		if err != nil {
			return err
		}
	}

	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-ndjson").
		SetBody(b.String()).
		Post(fmt.Sprintf("/api/%s/%s/commit/%s", repo.plural(), repo.ID, revision))
	if err != nil {
		return fmt.Errorf("committing to %s: %w", repo.ID, err)
	}
	if !res.IsSuccess() {
		return apiError("committing to "+repo.ID, res)
	}
	return nil
}

func writeNDJSONLine(b *strings.Builder, key string, value map[string]any) error {
	line, err := json.Marshal(map[string]any{"key": key, "value": value})
	if err != nil {
		return fmt.Errorf("encoding commit payload: %w", err)
	}
	b.Write(line)
	b.WriteByte('\n')
	return nil
}

func apiError(op string, res *resty.Response) error {
	return fmt.Errorf("%s: hub returned %d: %s", op, res.StatusCode(), utils.Truncate(res.String(), 400))
}
