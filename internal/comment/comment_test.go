package comment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetFromEnvPullRequest(t *testing.T) {
	t.Setenv("GITHUB_REPOSITORY", "acme/drugs")
	t.Setenv("GITHUB_SHA", "abc123")
	t.Setenv("GITHUB_REF", "refs/pull/42/merge")

	target, err := TargetFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "acme/drugs", target.Repo)
	assert.Equal(t, "abc123", target.Commit)
	assert.Equal(t, 42, target.PRNumber)
}

func TestTargetFromEnvBranchPush(t *testing.T) {
	t.Setenv("GITHUB_REPOSITORY", "acme/drugs")
	t.Setenv("GITHUB_SHA", "abc123")
	t.Setenv("GITHUB_REF", "refs/heads/main")

	target, err := TargetFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 0, target.PRNumber)
	assert.Equal(t, "abc123", target.Commit)
}

func TestTargetFromEnvMissingRepo(t *testing.T) {
	t.Setenv("GITHUB_REPOSITORY", "")
	t.Setenv("GITHUB_SHA", "abc123")
	t.Setenv("GITHUB_REF", "refs/heads/main")

	_, err := TargetFromEnv()
	assert.Error(t, err)
}

func TestPRNumberFromRef(t *testing.T) {
	tests := []struct {
		ref  string
		want int
	}{
		{"refs/pull/42/merge", 42},
		{"refs/pull/7/head", 7},
		{"refs/heads/main", 0},
		{"refs/tags/v1.0.0", 0},
		{"", 0},
		{"refs/pull/abc/merge", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, prNumberFromRef(tt.ref), "ref %q", tt.ref)
	}
}

// recordedRequest captures one request the fake forge saw.
type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

func newFakeForge(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = append(seen, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestPublishCreatesCommitComment(t *testing.T) {
	srv, seen := newFakeForge(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[]`))
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 1, "html_url": "https://example.com/c/1"}`))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	c := New(srv.URL, "tok")
	target := Target{Repo: "acme/drugs", Commit: "abc123"}

	res, err := c.Publish(context.Background(), target, "## Model Metrics\n\nAccuracy = 0.85.")
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.Equal(t, "https://example.com/c/1", res.URL)

	require.Len(t, *seen, 2)
	assert.Equal(t, "/repos/acme/drugs/commits/abc123/comments", (*seen)[0].Path)

	post := (*seen)[1]
	assert.Equal(t, http.MethodPost, post.Method)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(post.Body), &payload))
	assert.Contains(t, payload["body"], "<!-- mlship-report -->")
	assert.Contains(t, payload["body"], "## Model Metrics")
}

func TestPublishUpdatesExistingComment(t *testing.T) {
	srv, seen := newFakeForge(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[
				{"id": 5, "body": "unrelated"},
				{"id": 9, "body": "old report\n\n<!-- mlship-report -->\n", "html_url": "https://example.com/c/9"}
			]`))
		case http.MethodPatch:
			_, _ = w.Write([]byte(`{"id": 9, "html_url": "https://example.com/c/9"}`))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	c := New(srv.URL, "tok")
	target := Target{Repo: "acme/drugs", PRNumber: 42}

	res, err := c.Publish(context.Background(), target, "new report")
	require.NoError(t, err)
	assert.True(t, res.Updated)

	require.Len(t, *seen, 2)
	assert.Equal(t, "/repos/acme/drugs/issues/42/comments", (*seen)[0].Path)
	patch := (*seen)[1]
	assert.Equal(t, http.MethodPatch, patch.Method)
	assert.Equal(t, "/repos/acme/drugs/issues/comments/9", patch.Path)
	assert.Contains(t, patch.Body, "new report")
}

func TestPublishCustomWatermark(t *testing.T) {
	srv, seen := newFakeForge(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 1, "html_url": "u"}`))
		}
	})

	c := New(srv.URL, "tok").SetWatermark("mlship-nightly")
	_, err := c.Publish(context.Background(), Target{Repo: "acme/drugs", Commit: "abc"}, "report")
	require.NoError(t, err)

	assert.Contains(t, (*seen)[1].Body, "<!-- mlship-nightly -->")
}

func TestPublishServerError(t *testing.T) {
	srv, _ := newFakeForge(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message": "Resource not accessible by integration"}`))
	})

	c := New(srv.URL, "tok")
	_, err := c.Publish(context.Background(), Target{Repo: "acme/drugs", Commit: "abc"}, "report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "Resource not accessible")
}

func TestPublishInvalidTarget(t *testing.T) {
	c := New("http://unused.invalid", "tok")

	_, err := c.Publish(context.Background(), Target{Repo: "no-slash"}, "report")
	assert.Error(t, err)

	_, err = c.Publish(context.Background(), Target{Repo: "acme/drugs"}, "report")
	assert.Error(t, err)
}
