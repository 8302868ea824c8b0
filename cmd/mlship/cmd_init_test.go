package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scaffoldedFiles = []string{
	"mlship.yaml",
	".env.example",
	".github/workflows/ci.yaml",
	".github/workflows/cd.yaml",
	"App/README.md",
}

// runInit executes the init command against dir with extra flags and
// returns its combined output.
func runInit(t *testing.T, dir string, flags ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newInitCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(flags, dir))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func readScaffolded(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestInitCommand_CreatesProjectStructure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-project")

	out := runInit(t, dir)
	assert.Contains(t, out, "create")
	assert.Contains(t, out, "Next steps:")

	for _, rel := range scaffoldedFiles {
		assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(rel)), "expected %s", rel)
	}

	cfg := readScaffolded(t, dir, "mlship.yaml")
	assert.Contains(t, cfg, "name: my-project")
	assert.Contains(t, cfg, "- update-branch")
	assert.Contains(t, cfg, "thresholds:")
}

func TestInitCommand_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")

	runInit(t, dir)

	// A second run skips everything instead of overwriting.
	out := runInit(t, dir)
	assert.Contains(t, out, "skip")
	assert.NotContains(t, out, "  create")
}

func TestInitCommand_NeverOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")
	runInit(t, dir)

	custom := "name: proj\npipeline:\n  - train\n"
	cfgPath := filepath.Join(dir, "mlship.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(custom), 0o644))

	runInit(t, dir)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, custom, string(data), "existing files must survive re-init")
}

func TestInitCommand_DefaultsToCurrentDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	var out bytes.Buffer
	cmd := newInitCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.FileExists(t, filepath.Join(dir, "mlship.yaml"))
}

func TestInitCommand_NameFlag(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Whatever Dir")

	runInit(t, dir, "--name", "custom-name")

	cfg := readScaffolded(t, dir, "mlship.yaml")
	assert.Contains(t, cfg, "name: custom-name")
}

func TestInitCommand_InvalidName(t *testing.T) {
	cmd := newInitCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--name", "Bad Name!", t.TempDir()})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project name")
}

func TestInitCommand_SpaceFlag(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")

	runInit(t, dir, "--space", "acme/demo")

	cfg := readScaffolded(t, dir, "mlship.yaml")
	assert.Contains(t, cfg, "deploy:")
	assert.Contains(t, cfg, "space: acme/demo")
}

func TestInitCommand_InvalidSpace(t *testing.T) {
	cmd := newInitCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--space", "no-slash", t.TempDir()})
	assert.Error(t, cmd.Execute())
}

func TestInitCommand_TooManyArgs(t *testing.T) {
	cmd := newInitCommand()
	cmd.SetArgs([]string{"a", "b"})
	assert.Error(t, cmd.Execute())
}

func TestInitCommand_WorkflowContents(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")
	runInit(t, dir)

	ci := readScaffolded(t, dir, ".github/workflows/ci.yaml")
	assert.Contains(t, ci, "mlship run --output results.json")
	assert.Contains(t, ci, "REPO_TOKEN")

	// CD watches the CI workflow instead of the results branch: pushes made
	// with the workflow token never trigger branch workflows.
	cd := readScaffolded(t, dir, ".github/workflows/cd.yaml")
	assert.Contains(t, cd, "workflow_run")
	assert.Contains(t, cd, "mlship deploy")
	assert.Contains(t, cd, "HF_TOKEN")
}

func TestInitCommand_EnvExampleListsCredentials(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")
	runInit(t, dir)

	env := readScaffolded(t, dir, ".env.example")
	for _, v := range []string{"REPO_TOKEN=", "USER_NAME=", "USER_EMAIL=", "HF_TOKEN="} {
		assert.Contains(t, env, v)
	}
}

func TestSanitizeProjectName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"my-project", "my-project"},
		{"My Project", "my-project"},
		{"data_science", "data-science"},
		{"UPPER", "upper"},
		{"---", "ml-project"},
		{"", "ml-project"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeProjectName(tt.in))
		})
	}
}

func TestRootCommand_HasInitSubcommand(t *testing.T) {
	root := newRootCommand()
	found := false
	for _, c := range root.Commands() {
		if c.Name() == "init" {
			found = true
			break
		}
	}
	assert.True(t, found, "root command should have 'init' subcommand")
}
