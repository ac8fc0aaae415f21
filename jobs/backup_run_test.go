package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/harborchat/harbor/internal/backup"
)

type stubSnapshotter struct {
	dir string
}

func (s stubSnapshotter) Snapshot(ctx context.Context) (*backup.Artifact, error) {
	path := filepath.Join(s.dir, "snapshot.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o600); err != nil {
		return nil, err
	}
	return &backup.Artifact{Path: path, Timestamp: time.Now().UTC()}, nil
}

type stubSink struct {
	name  string
	err   error
	calls int
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Store(ctx context.Context, artifact *backup.Artifact) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "ref-" + s.name, nil
}

func testBackupJob(t *testing.T, s3, github *stubSink) (*BackupJob, *stubSink, *stubSink) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orchestrator := backup.NewOrchestrator(stubSnapshotter{dir: t.TempDir()}, s3, github, nil, logger)
	return NewBackupJob(orchestrator, logger, nil), s3, github
}

func TestBackupJobHandleDefaultsToBothSinks(t *testing.T) {
	job, s3, github := testBackupJob(t, &stubSink{name: "s3"}, &stubSink{name: "github"})

	task := asynq.NewTask(TaskBackupRun, []byte(`{}`))
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, s3.calls)
	require.Equal(t, 1, github.calls)
}

func TestBackupJobHandleSingleMethod(t *testing.T) {
	job, s3, github := testBackupJob(t, &stubSink{name: "s3"}, &stubSink{name: "github"})

	task, err := NewBackupRunTask(BackupRunPayload{Method: string(backup.MethodS3), MaxRetries: 1})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, s3.calls)
	require.Zero(t, github.calls)
}

func TestBackupJobHandleMalformedPayloadSkipsRetry(t *testing.T) {
	job, _, _ := testBackupJob(t, &stubSink{name: "s3"}, &stubSink{name: "github"})

	task := asynq.NewTask(TaskBackupRun, []byte(`{not json`))
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestBackupJobHandleReturnsErrorOnTotalFailure(t *testing.T) {
	job, s3, _ := testBackupJob(t,
		&stubSink{name: "s3", err: errors.New("bucket gone")},
		&stubSink{name: "github", err: errors.New("token revoked")})

	task, err := NewBackupRunTask(BackupRunPayload{Method: string(backup.MethodBoth), MaxRetries: 1})
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, s3.calls)
}

func TestBackupJobHandleUnconfigured(t *testing.T) {
	job := &BackupJob{}
	task := asynq.NewTask(TaskBackupRun, []byte(`{}`))
	require.Error(t, job.Handle(context.Background(), task))
}

type stubEnqueuer struct {
	payload BackupRunPayload
	err     error
	called  bool
}

func (e *stubEnqueuer) EnqueueBackupRun(ctx context.Context, payload BackupRunPayload) (*asynq.TaskInfo, error) {
	e.called = true
	e.payload = payload
	if e.err != nil {
		return nil, e.err
	}
	return &asynq.TaskInfo{ID: "task-123", Queue: QueueDefault}, nil
}

func adminBackupRouter(enqueuer *stubEnqueuer) *chi.Mux {
	handler := NewAdminBackupHandler(enqueuer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := chi.NewRouter()
	handler.MountRoutes(router)
	return router
}

func TestAdminBackupTriggerAccepted(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	router := adminBackupRouter(enqueuer)

	req := httptest.NewRequest(http.MethodPost, "/backup", strings.NewReader(`{"method":"s3","max_retries":5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.True(t, enqueuer.called)
	require.Equal(t, "s3", enqueuer.payload.Method)
	require.Equal(t, 5, enqueuer.payload.MaxRetries)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "task-123", body["task_id"])
	require.Equal(t, QueueDefault, body["queue"])
}

func TestAdminBackupTriggerDefaultsMethod(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	router := adminBackupRouter(enqueuer)

	req := httptest.NewRequest(http.MethodPost, "/backup", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, string(backup.MethodBoth), enqueuer.payload.Method)
}

func TestAdminBackupTriggerRejectsUnknownMethod(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	router := adminBackupRouter(enqueuer)

	req := httptest.NewRequest(http.MethodPost, "/backup", strings.NewReader(`{"method":"tape"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, enqueuer.called)
}

func TestAdminBackupTriggerEnqueueFailure(t *testing.T) {
	enqueuer := &stubEnqueuer{err: errors.New("redis down")}
	router := adminBackupRouter(enqueuer)

	req := httptest.NewRequest(http.MethodPost, "/backup", strings.NewReader(`{"method":"both"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
