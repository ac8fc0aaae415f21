package backup

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"time"
)

// GitHubSink commits artifacts to a repository through the contents API with
// create-or-update semantics: an existing file at the same path is overwritten.
type GitHubSink struct {
	baseURL    string
	owner      string
	repo       string
	dir        string
	token      string
	httpClient *http.Client
}

// NewGitHubSink constructs a sink committing under dir in owner/repo.
func NewGitHubSink(owner, repo, dir, token string) *GitHubSink {
	return &GitHubSink{
		baseURL: "https://api.github.com",
		owner:   owner,
		repo:    repo,
		dir:     dir,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithBaseURL points the sink at a different API host; used by tests.
func (g *GitHubSink) WithBaseURL(baseURL string) *GitHubSink {
	g.baseURL = baseURL
	return g
}

// Name implements Sink.
func (g *GitHubSink) Name() string { return "github" }

// Store commits the artifact file and returns the commit sha.
func (g *GitHubSink) Store(ctx context.Context, artifact *Artifact) (string, error) {
	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		return "", fmt.Errorf("backup: read artifact: %w", err)
	}
	filePath := path.Join(g.dir, path.Base(artifact.Path))

	body := map[string]string{
		"message": fmt.Sprintf("backup %s", artifact.Timestamp.Format(time.RFC3339)),
		"content": base64.StdEncoding.EncodeToString(data),
	}
	if sha, err := g.existingSHA(ctx, filePath); err != nil {
		return "", err
	} else if sha != "" {
		body["sha"] = sha
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("backup: marshal commit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, g.contentsURL(filePath), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	g.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("backup: github put: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("backup: github put returned status %d: %s", resp.StatusCode, detail)
	}

	var result struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("backup: decode github response: %w", err)
	}
	return result.Commit.SHA, nil
}

// existingSHA looks up the blob sha of a previous backup at the same path.
// A missing file is not an error; it means plain create semantics.
func (g *GitHubSink) existingSHA(ctx context.Context, filePath string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.contentsURL(filePath), nil)
	if err != nil {
		return "", err
	}
	g.authorize(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("backup: github get: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("backup: github get returned status %d", resp.StatusCode)
	}
	var result struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("backup: decode github response: %w", err)
	}
	return result.SHA, nil
}

func (g *GitHubSink) contentsURL(filePath string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.baseURL, g.owner, g.repo, filePath)
}

func (g *GitHubSink) authorize(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
}
