package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink is one external delivery target for backup artifacts. Store returns a
// remote identifier (object key, commit sha) on success. Sink failures are
// recorded by the orchestrator, never raised past it.
type Sink interface {
	Name() string
	Store(ctx context.Context, artifact *Artifact) (string, error)
}

// ObjectUploader is the slice of the object-store client the S3 sink needs.
type ObjectUploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// S3Sink delivers artifacts to object storage under a fixed prefix.
type S3Sink struct {
	store  ObjectUploader
	prefix string
}

// NewS3Sink constructs an S3Sink. An empty prefix defaults to "backups".
func NewS3Sink(store ObjectUploader, prefix string) *S3Sink {
	if prefix == "" {
		prefix = "backups"
	}
	return &S3Sink{store: store, prefix: prefix}
}

// Name implements Sink.
func (s *S3Sink) Name() string { return "s3" }

// Store uploads the artifact file.
func (s *S3Sink) Store(ctx context.Context, artifact *Artifact) (string, error) {
	file, err := os.Open(artifact.Path)
	if err != nil {
		return "", fmt.Errorf("backup: open artifact: %w", err)
	}
	defer func() { _ = file.Close() }()
	key := s.prefix + "/" + filepath.Base(artifact.Path)
	return s.store.Upload(ctx, key, "application/json", file)
}
