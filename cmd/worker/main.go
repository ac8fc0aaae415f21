package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/harborchat/harbor/internal/app"
	"github.com/harborchat/harbor/internal/backup"
	"github.com/harborchat/harbor/internal/platform/db"
	"github.com/harborchat/harbor/internal/platform/objstore"
	"github.com/harborchat/harbor/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	snapshotter := backup.NewStoreSnapshotter(pool, cfg.BackupDir)

	var s3Sink backup.Sink
	if cfg.S3Bucket != "" {
		store, err := objstore.New(ctx, objstore.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			logger.Error("init object store", slog.Any("error", err))
			os.Exit(1)
		}
		s3Sink = backup.NewS3Sink(store, cfg.S3BackupPrefix)
	}

	var githubSink backup.Sink
	if cfg.GitHubToken != "" && cfg.GitHubRepo != "" {
		owner, repo, ok := strings.Cut(cfg.GitHubRepo, "/")
		if !ok {
			logger.Error("github repo must be owner/repo", slog.String("value", cfg.GitHubRepo))
			os.Exit(1)
		}
		githubSink = backup.NewGitHubSink(owner, repo, cfg.GitHubBasePath, cfg.GitHubToken)
	}

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	orchestrator := backup.NewOrchestrator(
		snapshotter,
		s3Sink,
		githubSink,
		jobs.QueueNotifier{Client: jobsClient, Logger: logger},
		logger,
	)
	backupJob := jobs.NewBackupJob(orchestrator, logger, nil)
	notifyJob := &jobs.NotifyJob{Logger: logger}

	backupTask, err := jobs.NewBackupRunTask(jobs.BackupRunPayload{
		Method:     cfg.BackupMethod,
		MaxRetries: cfg.BackupMaxRetries,
	})
	if err != nil {
		logger.Error("build backup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBackupRun, Handler: backupJob.Handle},
			{Type: jobs.TaskNotify, Handler: notifyJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.BackupCron, Task: backupTask, Options: []asynq.Option{asynq.MaxRetry(0)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
