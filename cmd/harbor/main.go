package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/harborchat/harbor/internal/app"
	"github.com/harborchat/harbor/internal/auth"
	"github.com/harborchat/harbor/internal/channels"
	"github.com/harborchat/harbor/internal/files"
	"github.com/harborchat/harbor/internal/messages"
	"github.com/harborchat/harbor/internal/observability"
	"github.com/harborchat/harbor/internal/platform/cache"
	"github.com/harborchat/harbor/internal/platform/db"
	"github.com/harborchat/harbor/internal/platform/objstore"
	"github.com/harborchat/harbor/internal/rbac"
	"github.com/harborchat/harbor/internal/realtime"
	"github.com/harborchat/harbor/internal/shared"
	"github.com/harborchat/harbor/internal/users"
	"github.com/harborchat/harbor/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionTTL)

	roleStore := rbac.NewStore(dbpool)
	rbacMiddleware := rbac.Middleware{Roles: roleStore, Logger: logger}
	rolesHandler := rbac.NewHandler(logger, roleStore, rbacMiddleware)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, roleStore, sessionManager)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	authService := auth.NewService(usersRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	hub := realtime.NewHub(redisClient, logger)

	channelsRepo := channels.NewRepository(dbpool)
	channelsService := channels.NewService(channelsRepo)
	channelsHandler := channels.NewHandler(logger, channelsService, rbacMiddleware, hub)

	messagesRepo := messages.NewRepository(dbpool)
	messagesService := messages.NewService(messagesRepo, channelsService, roleStore, hub, logger)
	messagesHandler := messages.NewHandler(logger, messagesService)

	var store *objstore.Client
	if cfg.S3Bucket != "" {
		store, err = objstore.New(ctx, objstore.Config{
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
	}

	var filesHandler *files.Handler
	if store != nil {
		filesRepo := files.NewRepository(dbpool)
		filesService := files.NewService(filesRepo, store, messagesRepo, channelsService, cfg.UploadMaxBytes)
		filesHandler = files.NewHandler(logger, filesService)
	} else {
		logger.Warn("object store not configured, file attachments disabled")
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

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
	backupHandler := jobs.NewAdminBackupHandler(jobsClient, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		Users:           usersRepo,
		AuthHandler:     authHandler,
		UsersHandler:    usersHandler,
		RolesHandler:    rolesHandler,
		ChannelsHandler: channelsHandler,
		MessagesHandler: messagesHandler,
		FilesHandler:    filesHandler,
		JobHandler:      jobHandler,
		BackupHandler:   backupHandler,
		RBACMiddleware:  rbacMiddleware,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
