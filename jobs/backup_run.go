package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/harborchat/harbor/internal/backup"
	jobmetrics "github.com/harborchat/harbor/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const defaultBackupRetries = 3

// BackupJob runs database backups against the configured sinks.
type BackupJob struct {
	Orchestrator *backup.Orchestrator
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
}

// NewBackupJob wires dependencies for the backup handler.
func NewBackupJob(orchestrator *backup.Orchestrator, logger *slog.Logger, metrics *jobmetrics.Metrics) *BackupJob {
	return &BackupJob{Orchestrator: orchestrator, Logger: logger, Metrics: metrics}
}

// Handle processes backup:run tasks.
func (j *BackupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Orchestrator == nil {
		return errors.New("backup run: handler not configured")
	}
	var payload BackupRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Method == "" {
		payload.Method = string(backup.MethodBoth)
	}
	if payload.MaxRetries <= 0 {
		payload.MaxRetries = defaultBackupRetries
	}

	tracker := j.metrics().Track(TaskBackupRun)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("method", payload.Method))
	logger.Info("starting backup run")

	outcome := j.Orchestrator.PerformWithRetry(ctx, backup.Method(payload.Method), payload.MaxRetries)
	for _, result := range outcome.SinkResults {
		if !result.Success {
			j.metrics().AddSinkFailure(result.Sink)
		}
	}
	if !outcome.Success {
		reason := outcome.Error
		if reason == "" {
			reason = "no sink accepted the backup"
		}
		resultErr = errors.New(reason)
		logger.Error("backup run failed",
			slog.String("error", reason),
			slog.Int("attempts", outcome.Attempts))
		return resultErr
	}

	logger.Info("completed backup run",
		slog.Int("attempts", outcome.Attempts),
		slog.Duration("duration", outcome.Duration))
	return resultErr
}

func (j *BackupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBackupRun))
	}
	return slog.Default().With(slog.String("job", TaskBackupRun))
}

func (j *BackupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
