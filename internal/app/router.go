package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/harborchat/harbor/internal/auth"
	"github.com/harborchat/harbor/internal/channels"
	"github.com/harborchat/harbor/internal/files"
	"github.com/harborchat/harbor/internal/messages"
	"github.com/harborchat/harbor/internal/observability"
	"github.com/harborchat/harbor/internal/rbac"
	"github.com/harborchat/harbor/internal/shared"
	"github.com/harborchat/harbor/internal/users"
	"github.com/harborchat/harbor/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Users          PrincipalSource

	AuthHandler     *auth.Handler
	UsersHandler    *users.Handler
	RolesHandler    *rbac.Handler
	ChannelsHandler *channels.Handler
	MessagesHandler *messages.Handler
	FilesHandler    *files.Handler
	JobHandler      *jobs.Handler
	BackupHandler   *jobs.AdminBackupHandler
	RBACMiddleware  rbac.Middleware

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Harbor defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Users:          params.Users,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)

		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.ChannelsHandler != nil {
			r.Route("/channels", func(r chi.Router) {
				params.ChannelsHandler.MountRoutes(r)
				if params.MessagesHandler != nil {
					r.Route("/{id}/messages", params.MessagesHandler.MountChannelRoutes)
				}
			})
		}
		if params.MessagesHandler != nil {
			r.Route("/messages", params.MessagesHandler.MountRoutes)
		}
		if params.FilesHandler != nil {
			r.Route("/files", params.FilesHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
		if params.BackupHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAll(shared.PermAdminBackup))
				params.BackupHandler.MountRoutes(r)
			})
		}
	})

	return r
}
