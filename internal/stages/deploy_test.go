package stages

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mlship/mlship/internal/models"
	"github.com/stretchr/testify/require"
)

// commitRecord is one decoded hub commit: the message plus the committed
// paths and contents.
type commitRecord struct {
	message string
	files   map[string]string
}

func parseCommitBody(t *testing.T, r io.Reader) commitRecord {
	t.Helper()
	rec := commitRecord{files: map[string]string{}}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		}
		require.NoError(t, json.Unmarshal(line, &entry))
		switch entry.Key {
		case "header":
			var h struct {
				Summary string `json:"summary"`
			}
			require.NoError(t, json.Unmarshal(entry.Value, &h))
			rec.message = h.Summary
		case "file":
			var f struct {
				Path    string `json:"path"`
				Content string `json:"content"`
			}
			require.NoError(t, json.Unmarshal(entry.Value, &f))
			content, err := base64.StdEncoding.DecodeString(f.Content)
			require.NoError(t, err)
			rec.files[f.Path] = string(content)
		}
	}
	require.NoError(t, scanner.Err())
	return rec
}

// hubState scripts the fake hub and records what the deploy did to it.
type hubState struct {
	spaceExists  bool
	readmeExists bool

	created bool
	commits []commitRecord
}

func newHubServer(t *testing.T, state *hubState) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/whoami-v2":
			fmt.Fprint(w, `{"name": "abid"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/spaces/acme/drug-app":
			if !state.spaceExists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprint(w, `{}`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/repos/create":
			state.created = true
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{}`)
		case r.Method == http.MethodHead && r.URL.Path == "/spaces/acme/drug-app/resolve/main/README.md":
			if !state.readmeExists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		case r.Method == http.MethodPost && r.URL.Path == "/api/spaces/acme/drug-app/commit/main":
			state.commits = append(state.commits, parseCommitBody(t, r.Body))
			fmt.Fprint(w, `{}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

// deployProject writes an app, a model and results under dir.
func deployProject(t *testing.T, dir string) {
	t.Helper()
	writeProjectFile(t, dir, "App/drug_app.py", "import gradio as gr\n")
	writeProjectFile(t, dir, "Model/drug_pipeline.skops", "model-bytes")
	writeProjectFile(t, dir, "Results/metrics.txt", "Accuracy = 0.85.")
}

func TestDeployStage_UploadsAllFolders(t *testing.T) {
	dir := t.TempDir()
	deployProject(t, dir)
	sc, _ := testContext(t, dir)
	sc.Creds.HubToken = "hf_test"

	state := &hubState{spaceExists: true, readmeExists: true}
	srv := newHubServer(t, state)
	defer srv.Close()

	s, err := NewDeployStage(DeployArgs{Space: "acme/drug-app"})
	require.NoError(t, err)
	s.hubBaseURL = srv.URL

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)
	require.Contains(t, result.Output, "uploaded 3 files to acme/drug-app")

	require.False(t, state.created)
	require.Len(t, state.commits, 3)
	require.Equal(t, "Sync App", state.commits[0].message)
	require.Contains(t, state.commits[0].files, "drug_app.py")
	require.Equal(t, "Sync Model", state.commits[1].message)
	require.Contains(t, state.commits[1].files, "Model/drug_pipeline.skops")
	require.Equal(t, "Sync Results", state.commits[2].message)
	require.Contains(t, state.commits[2].files, "Metrics/metrics.txt")
}

func TestDeployStage_CreatesSpaceWithCard(t *testing.T) {
	dir := t.TempDir()
	deployProject(t, dir)
	sc, _ := testContext(t, dir)
	sc.Creds.HubToken = "hf_test"

	state := &hubState{}
	srv := newHubServer(t, state)
	defer srv.Close()

	s, err := NewDeployStage(DeployArgs{Space: "acme/drug-app"})
	require.NoError(t, err)
	s.hubBaseURL = srv.URL

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)
	require.True(t, state.created)

	// The first commit is the starter card.
	require.Len(t, state.commits, 4)
	require.Equal(t, "Add space configuration", state.commits[0].message)
	card := state.commits[0].files["README.md"]
	require.Contains(t, card, "title: Drug Classification")
	require.Contains(t, card, "sdk: gradio")
	require.Contains(t, card, "app_file: drug_app.py")
}

func TestDeployStage_MissingToken(t *testing.T) {
	dir := t.TempDir()
	deployProject(t, dir)
	sc, _ := testContext(t, dir)

	s, err := NewDeployStage(DeployArgs{Space: "acme/drug-app"})
	require.NoError(t, err)

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, result.Status)
	require.Contains(t, result.ErrorMsg, "HF")
}

func TestDeployStage_BadToken(t *testing.T) {
	dir := t.TempDir()
	deployProject(t, dir)
	sc, _ := testContext(t, dir)
	sc.Creds.HubToken = "hf_wrong"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s, err := NewDeployStage(DeployArgs{Space: "acme/drug-app"})
	require.NoError(t, err)
	s.hubBaseURL = srv.URL

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, result.Status)
	require.Contains(t, result.ErrorMsg, "HF_TOKEN")
}

func TestDeployStage_SkipsMissingFolders(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "App/drug_app.py", "import gradio as gr\n")
	sc, _ := testContext(t, dir)
	sc.Creds.HubToken = "hf_test"

	state := &hubState{spaceExists: true, readmeExists: true}
	srv := newHubServer(t, state)
	defer srv.Close()

	s, err := NewDeployStage(DeployArgs{Space: "acme/drug-app"})
	require.NoError(t, err)
	s.hubBaseURL = srv.URL

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)
	require.Len(t, state.commits, 1)
	require.Equal(t, "Sync App", state.commits[0].message)
}

func TestDeployStage_CustomSyncAndMessage(t *testing.T) {
	dir := t.TempDir()
	deployProject(t, dir)
	sc, _ := testContext(t, dir)
	sc.Creds.HubToken = "hf_test"

	state := &hubState{spaceExists: true, readmeExists: true}
	srv := newHubServer(t, state)
	defer srv.Close()

	s, err := NewDeployStage(DeployArgs{
		Space:   "acme/drug-app",
		Message: "Deploy latest run",
		Sync:    []SyncPair{{From: "Results", To: "/Metrics"}},
	})
	require.NoError(t, err)
	s.hubBaseURL = srv.URL

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)
	require.Len(t, state.commits, 1)
	require.Equal(t, "Deploy latest run", state.commits[0].message)
	require.Contains(t, state.commits[0].files, "Metrics/metrics.txt")
}

func TestDeployStage_ArchivesArtifacts(t *testing.T) {
	dir := t.TempDir()
	deployProject(t, dir)
	sc, _ := testContext(t, dir)
	sc.Creds.HubToken = "hf_test"

	state := &hubState{spaceExists: true, readmeExists: true}
	srv := newHubServer(t, state)
	defer srv.Close()

	archiveDir := filepath.Join(t.TempDir(), "archive")
	s, err := NewDeployStage(DeployArgs{
		Space:   "acme/drug-app",
		Archive: archiveDir,
	})
	require.NoError(t, err)
	s.hubBaseURL = srv.URL

	result, err := s.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, result.Status)

	data, err := os.ReadFile(filepath.Join(archiveDir, "Results", "metrics.txt"))
	require.NoError(t, err)
	require.Equal(t, "Accuracy = 0.85.", string(data))
	_, err = os.Stat(filepath.Join(archiveDir, "Model", "drug_pipeline.skops"))
	require.NoError(t, err)
}

func TestNewDeployStage_Validation(t *testing.T) {
	t.Run("requires a space", func(t *testing.T) {
		_, err := NewDeployStage(DeployArgs{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "space")
	})

	t.Run("space must be owner/name", func(t *testing.T) {
		_, err := NewDeployStage(DeployArgs{Space: "drug-app"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "owner/name")
	})
}
