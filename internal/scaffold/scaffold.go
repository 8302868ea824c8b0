// Package scaffold provides the template functions behind mlship init:
// starter config, env file, CI workflows and the space card for a new
// project.
package scaffold

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mlship/mlship/internal/modelcard"
	"github.com/mlship/mlship/internal/pipeline"
)

var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidateName rejects empty names and anything outside the lowercase
// kebab-case shape the config schema enforces.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("project name must not be empty")
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("project name %q must be lowercase letters, digits and hyphens", name)
	}
	return nil
}

// ValidateSpace checks an owner/name space id. Empty is allowed: deploy is
// optional until a space is configured.
func ValidateSpace(space string) error {
	if space == "" {
		return nil
	}
	owner, repo, ok := strings.Cut(space, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return fmt.Errorf("space id %q must be owner/name", space)
	}
	return nil
}

// TitleCase converts a kebab-case name to Title Case.
func TitleCase(s string) string {
	words := strings.Split(s, "-")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Options selects what the generated files describe. Zero values fall back
// to the pipeline defaults.
type Options struct {
	Name        string
	Description string
	Python      string
	Space       string
	Branch      string
}

func (o Options) withDefaults() Options {
	if o.Python == "" {
		o.Python = pipeline.DefaultPython
	}
	if o.Branch == "" {
		o.Branch = pipeline.DefaultBranch
	}
	return o
}

// Files returns every starter file for a new project, keyed by path
// relative to the project root. Callers decide where and whether to write
// them.
func Files(opts Options) (map[string]string, error) {
	if err := ValidateName(opts.Name); err != nil {
		return nil, err
	}
	if err := ValidateSpace(opts.Space); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	card, err := spaceCard(opts)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"mlship.yaml":               ConfigYAML(opts),
		".env.example":              EnvExample(),
		".github/workflows/ci.yaml": CIWorkflow(),
		".github/workflows/cd.yaml": CDWorkflow(opts),
		"App/README.md":             card,
	}, nil
}

// ConfigYAML returns a starter mlship.yaml for the given options.
func ConfigYAML(opts Options) string {
	opts = opts.withDefaults()

	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", opts.Name)
	if opts.Description != "" {
		fmt.Fprintf(&b, "description: %s\n", opts.Description)
	}
	fmt.Fprintf(&b, `
project:
  python: %s
  requirements: requirements.txt

pipeline:
  - install
  - format
  - train
  - eval
  - update-branch

stages:
  eval:
    thresholds:
      accuracy: 0.7
  update-branch:
    branch: %s
`, opts.Python, opts.Branch)

	if opts.Space != "" {
		fmt.Fprintf(&b, "  deploy:\n    space: %s\n", opts.Space)
	}
	return b.String()
}

// EnvExample returns a .env.example documenting every credential the
// pipeline reads. Values stay empty so the file is safe to commit.
func EnvExample() string {
	return `# Copy to .env and fill in for local runs; CI injects these as secrets.

# Forge API token for posting the evaluation comment (eval stage).
REPO_TOKEN=

# Git identity used for the results commit (update-branch stage).
USER_NAME=
USER_EMAIL=

# Model hub token for deploying to the space (deploy stage).
HF_TOKEN=

# Optional: object store credentials for --archive targets.
AWS_ACCESS_KEY_ID=
AWS_SECRET_ACCESS_KEY=
AWS_REGION=
AZURE_STORAGE_ACCOUNT=
`
}

// CIWorkflow returns the continuous-integration workflow: train, evaluate,
// comment and push the results branch on every change.
func CIWorkflow() string {
	return `name: Continuous Integration
on:
  push:
    branches: [main]
  pull_request:
    branches: [main]
  workflow_dispatch:

permissions:
  contents: write
  pull-requests: write

jobs:
  pipeline:
    name: Train and Evaluate
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4

      - uses: actions/setup-python@v5
        with:
          python-version: "3.11"

      - uses: actions/setup-go@v5
        with:
          go-version: stable

      - name: Install mlship
        run: go install github.com/mlship/mlship/cmd/mlship@latest

      - name: Run pipeline
        env:
          REPO_TOKEN: ${{ secrets.GITHUB_TOKEN }}
          USER_NAME: ${{ github.actor }}
          USER_EMAIL: ${{ github.actor }}@users.noreply.github.com
        run: mlship run --output results.json
`
}

// CDWorkflow returns the continuous-delivery workflow. It fires off the CI
// run rather than the branch push: pushes made with the workflow token do
// not trigger workflows, so watching the results branch directly would
// never deploy.
func CDWorkflow(opts Options) string {
	opts = opts.withDefaults()
	return fmt.Sprintf(`name: Continuous Deployment
on:
  workflow_run:
    workflows: [Continuous Integration]
    types: [completed]
  workflow_dispatch:

permissions:
  contents: read

jobs:
  deploy:
    name: Deploy to Space
    runs-on: ubuntu-latest
    if: ${{ github.event_name == 'workflow_dispatch' || github.event.workflow_run.conclusion == 'success' }}
    steps:
      - uses: actions/checkout@v4
        with:
          ref: %s

      - uses: actions/setup-go@v5
        with:
          go-version: stable

      - name: Install mlship
        run: go install github.com/mlship/mlship/cmd/mlship@latest

      - name: Deploy
        env:
          HF_TOKEN: ${{ secrets.HF_TOKEN }}
        run: mlship deploy
`, opts.Branch)
}

// spaceCard renders the starter space README. It lands in App/ so the
// deploy stage syncs it to the space root.
func spaceCard(opts Options) (string, error) {
	card := modelcard.Default(TitleCase(opts.Name), "app.py")
	text, err := card.MarshalText()
	if err != nil {
		return "", fmt.Errorf("rendering space card: %w", err)
	}
	return string(text), nil
}
