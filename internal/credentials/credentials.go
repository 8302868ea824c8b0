// Package credentials reads the secrets and identity the pipeline stages
// need from the environment. Values are parsed once and handed to stages;
// nothing here ever logs a secret.
package credentials

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Credentials is the full environment surface of the pipeline. Every field
// is optional at parse time; stages that need a value check for it and fail
// with a pointed error instead (a train-only run should not demand a hub
// token).
type Credentials struct {
	// Commit-comment token for the CI forge. REPO_TOKEN is the original
	// pipeline's name; GITHUB_TOKEN is what Actions provides for free.
	RepoToken   string `env:"REPO_TOKEN"`
	GitHubToken string `env:"GITHUB_TOKEN"`

	// Author identity for results-branch commits.
	UserName  string `env:"USER_NAME"`
	UserEmail string `env:"USER_EMAIL"`

	// Hub token for the model space. HF is the legacy single-letter secret
	// name the original pipeline used; HF_TOKEN wins when both are set.
	HubToken       string `env:"HF_TOKEN"`
	HubTokenLegacy string `env:"HF"`

	// Archive store settings. The cloud SDKs can discover most of these on
	// their own; they are parsed here so explicit values win and so
	// `mlship check` can report presence.
	AWSAccessKeyID      string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion           string `env:"AWS_REGION"`
	AWSEndpointURL      string `env:"AWS_ENDPOINT_URL"`
	AzureStorageAccount string `env:"AZURE_STORAGE_ACCOUNT"`
	AzureStorageKey     string `env:"AZURE_STORAGE_KEY"`
}

// FromEnv parses credentials from the process environment.
func FromEnv() (*Credentials, error) {
	var creds Credentials
	if err := env.Parse(&creds); err != nil {
		return nil, fmt.Errorf("parsing credentials from environment: %w", err)
	}
	return &creds, nil
}

// LoadEnvFile loads a dotenv file into the process environment before
// FromEnv runs. An empty path is a no-op so callers can pass the flag
// value through unchecked.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %q: %w", path, err)
	}
	return nil
}

// CommentToken returns the token to use for CI comments, preferring the
// pipeline-specific REPO_TOKEN over the ambient GITHUB_TOKEN.
func (c *Credentials) CommentToken() string {
	if c.RepoToken != "" {
		return c.RepoToken
	}
	return c.GitHubToken
}

// HubAccessToken returns the model-space token, honoring the legacy HF
// secret name when HF_TOKEN is unset.
func (c *Credentials) HubAccessToken() string {
	if c.HubToken != "" {
		return c.HubToken
	}
	return c.HubTokenLegacy
}

// GitIdentity returns the commit author identity. ok is false when either
// half is missing.
func (c *Credentials) GitIdentity() (name, email string, ok bool) {
	return c.UserName, c.UserEmail, c.UserName != "" && c.UserEmail != ""
}

// Presence describes one credential for diagnostics output. The value
// itself is never included.
type Presence struct {
	EnvVar  string
	Purpose string
	Set     bool
}

// Report lists every credential the pipeline understands and whether it is
// set. Order is stable for table rendering.
func (c *Credentials) Report() []Presence {
	return []Presence{
		{EnvVar: "REPO_TOKEN", Purpose: "CI comment (eval)", Set: c.RepoToken != ""},
		{EnvVar: "GITHUB_TOKEN", Purpose: "CI comment fallback (eval)", Set: c.GitHubToken != ""},
		{EnvVar: "USER_NAME", Purpose: "commit author (update-branch)", Set: c.UserName != ""},
		{EnvVar: "USER_EMAIL", Purpose: "commit email (update-branch)", Set: c.UserEmail != ""},
		{EnvVar: "HF_TOKEN", Purpose: "model space login (deploy)", Set: c.HubToken != ""},
		{EnvVar: "HF", Purpose: "model space login, legacy name (deploy)", Set: c.HubTokenLegacy != ""},
		{EnvVar: "AWS_ACCESS_KEY_ID", Purpose: "s3:// archive remote", Set: c.AWSAccessKeyID != ""},
		{EnvVar: "AWS_SECRET_ACCESS_KEY", Purpose: "s3:// archive remote", Set: c.AWSSecretAccessKey != ""},
		{EnvVar: "AZURE_STORAGE_ACCOUNT", Purpose: "azblob:// archive remote", Set: c.AzureStorageAccount != ""},
		{EnvVar: "AZURE_STORAGE_KEY", Purpose: "azblob:// shared-key auth", Set: c.AzureStorageKey != ""},
	}
}
