package backup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTestArtifact(t *testing.T) *Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harbor-2026-01-02.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tables":{"users":[]}}`), 0o600))
	return &Artifact{Path: path, Timestamp: time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC), SizeBytes: 24}
}

func TestGitHubSinkCreatesNewFile(t *testing.T) {
	artifact := writeTestArtifact(t)
	var putBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/chat-backups/contents/backups/harbor-2026-01-02.json", r.URL.Path)
		require.Equal(t, "Bearer ghp_testtoken", r.Header.Get("Authorization"))
		require.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))

		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&putBody))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"commit":{"sha":"deadbeef"}}`))
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	sink := NewGitHubSink("acme", "chat-backups", "backups", "ghp_testtoken").WithBaseURL(server.URL)

	ref, err := sink.Store(context.Background(), artifact)
	require.NoError(t, err)
	require.Equal(t, "deadbeef", ref)

	// New file: no sha field in the commit payload.
	_, hasSHA := putBody["sha"]
	require.False(t, hasSHA)
	require.Equal(t, "backup 2026-01-02T03:00:00Z", putBody["message"])
	decoded, err := base64.StdEncoding.DecodeString(putBody["content"])
	require.NoError(t, err)
	require.JSONEq(t, `{"tables":{"users":[]}}`, string(decoded))
}

func TestGitHubSinkUpdatesExistingFile(t *testing.T) {
	artifact := writeTestArtifact(t)
	var putBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"sha":"oldblobsha"}`))
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&putBody))
			_, _ = w.Write([]byte(`{"commit":{"sha":"cafef00d"}}`))
		}
	}))
	defer server.Close()

	sink := NewGitHubSink("acme", "chat-backups", "backups", "ghp_testtoken").WithBaseURL(server.URL)

	ref, err := sink.Store(context.Background(), artifact)
	require.NoError(t, err)
	require.Equal(t, "cafef00d", ref)
	require.Equal(t, "oldblobsha", putBody["sha"])
}

func TestGitHubSinkSurfacesAPIErrors(t *testing.T) {
	artifact := writeTestArtifact(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Invalid request"}`))
	}))
	defer server.Close()

	sink := NewGitHubSink("acme", "chat-backups", "backups", "ghp_testtoken").WithBaseURL(server.URL)

	_, err := sink.Store(context.Background(), artifact)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 422")
}

func TestGitHubSinkLookupFailureAborts(t *testing.T) {
	artifact := writeTestArtifact(t)
	putCalled := false

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			putCalled = true
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := NewGitHubSink("acme", "chat-backups", "backups", "ghp_testtoken").WithBaseURL(server.URL)

	_, err := sink.Store(context.Background(), artifact)
	require.Error(t, err)
	require.False(t, putCalled)
}
