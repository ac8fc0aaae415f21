package jobs

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/harborchat/harbor/internal/backup"
	"github.com/harborchat/harbor/internal/platform/httpx"
)

// BackupEnqueuer submits backup runs to the queue.
type BackupEnqueuer interface {
	EnqueueBackupRun(ctx context.Context, payload BackupRunPayload) (*asynq.TaskInfo, error)
}

// AdminBackupHandler lets operators trigger backup runs on demand.
type AdminBackupHandler struct {
	enqueuer BackupEnqueuer
	logger   *slog.Logger
}

// NewAdminBackupHandler constructs the admin backup handler.
func NewAdminBackupHandler(enqueuer BackupEnqueuer, logger *slog.Logger) *AdminBackupHandler {
	return &AdminBackupHandler{enqueuer: enqueuer, logger: logger}
}

// MountRoutes attaches admin backup routes.
func (h *AdminBackupHandler) MountRoutes(r chi.Router) {
	r.Post("/backup", h.trigger)
}

type triggerBackupPayload struct {
	Method     string `json:"method"`
	MaxRetries int    `json:"max_retries"`
}

func (h *AdminBackupHandler) trigger(w http.ResponseWriter, r *http.Request) {
	var payload triggerBackupPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if payload.Method == "" {
		payload.Method = string(backup.MethodBoth)
	}
	if !backup.Method(payload.Method).Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "method must be s3, github or both")
		return
	}

	info, err := h.enqueuer.EnqueueBackupRun(r.Context(), BackupRunPayload{
		Method:     payload.Method,
		MaxRetries: payload.MaxRetries,
	})
	if err != nil {
		h.logger.Error("enqueue backup", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not enqueue backup")
		return
	}

	httpx.JSON(w, http.StatusAccepted, map[string]string{
		"task_id": info.ID,
		"queue":   info.Queue,
		"method":  payload.Method,
	})
}
