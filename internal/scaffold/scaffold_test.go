package scaffold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		errMsg  string
	}{
		{"valid kebab-case", "drug-classification", false, ""},
		{"valid simple", "mlproject", false, ""},
		{"valid with digits", "model-v2", false, ""},
		{"empty", "", true, "must not be empty"},
		{"uppercase", "DrugApp", true, "lowercase"},
		{"leading hyphen", "-app", true, "lowercase"},
		{"trailing hyphen", "app-", true, "lowercase"},
		{"path traversal", "../evil", true, "lowercase"},
		{"forward slash", "a/b", true, "lowercase"},
		{"spaces", "my app", true, "lowercase"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateName(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				if tc.errMsg != "" {
					assert.Contains(t, err.Error(), tc.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSpace(t *testing.T) {
	assert.NoError(t, ValidateSpace(""))
	assert.NoError(t, ValidateSpace("acme/drug-app"))
	assert.Error(t, ValidateSpace("drug-app"))
	assert.Error(t, ValidateSpace("/drug-app"))
	assert.Error(t, ValidateSpace("acme/"))
	assert.Error(t, ValidateSpace("acme/a/b"))
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"drug-classification", "Drug Classification"},
		{"mlship", "Mlship"},
		{"a-b-c", "A B C"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, TitleCase(tc.input))
		})
	}
}

func TestConfigYAML(t *testing.T) {
	content := ConfigYAML(Options{
		Name:        "drug-classification",
		Description: "Drug classification pipeline.",
		Space:       "acme/drug-app",
	})

	assert.Contains(t, content, "name: drug-classification")
	assert.Contains(t, content, "description: Drug classification pipeline.")
	assert.Contains(t, content, "python: python")
	assert.Contains(t, content, "- update-branch")
	assert.Contains(t, content, "branch: update")
	assert.Contains(t, content, "space: acme/drug-app")
	assert.NotContains(t, content, "- deploy")
}

func TestConfigYAML_NoSpace(t *testing.T) {
	content := ConfigYAML(Options{Name: "demo"})
	assert.NotContains(t, content, "deploy:")
}

func TestConfigYAML_CustomPythonAndBranch(t *testing.T) {
	content := ConfigYAML(Options{Name: "demo", Python: "python3.11", Branch: "results"})
	assert.Contains(t, content, "python: python3.11")
	assert.Contains(t, content, "branch: results")
}

func TestEnvExample(t *testing.T) {
	content := EnvExample()

	for _, name := range []string{"REPO_TOKEN=", "USER_NAME=", "USER_EMAIL=", "HF_TOKEN="} {
		assert.Contains(t, content, name)
	}
	// Placeholders only: no line carries a value.
	assert.NotContains(t, content, "TOKEN=ghp")
}

func TestWorkflows(t *testing.T) {
	ci := CIWorkflow()
	assert.Contains(t, ci, "name: Continuous Integration")
	assert.Contains(t, ci, "mlship run")
	assert.Contains(t, ci, "REPO_TOKEN: ${{ secrets.GITHUB_TOKEN }}")
	assert.Contains(t, ci, "USER_NAME: ${{ github.actor }}")

	cd := CDWorkflow(Options{Name: "demo", Branch: "results"})
	assert.Contains(t, cd, "name: Continuous Deployment")
	assert.Contains(t, cd, "workflows: [Continuous Integration]")
	assert.Contains(t, cd, "ref: results")
	assert.Contains(t, cd, "mlship deploy")
	assert.Contains(t, cd, "HF_TOKEN: ${{ secrets.HF_TOKEN }}")
}

func TestFiles(t *testing.T) {
	files, err := Files(Options{Name: "drug-classification", Space: "acme/drug-app"})
	require.NoError(t, err)

	for _, path := range []string{
		"mlship.yaml",
		".env.example",
		".github/workflows/ci.yaml",
		".github/workflows/cd.yaml",
		"App/README.md",
	} {
		assert.Contains(t, files, path)
	}
	assert.Len(t, files, 5)

	card := files["App/README.md"]
	assert.Contains(t, card, "title: Drug Classification")
	assert.Contains(t, card, "sdk: gradio")
	assert.Contains(t, card, "app_file: app.py")
}

func TestFiles_InvalidName(t *testing.T) {
	_, err := Files(Options{Name: "Bad Name"})
	require.Error(t, err)

	_, err = Files(Options{Name: "demo", Space: "not-a-space"})
	require.Error(t, err)
}
