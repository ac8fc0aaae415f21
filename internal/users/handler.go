package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harborchat/harbor/internal/platform/httpx"
	"github.com/harborchat/harbor/internal/rbac"
	"github.com/harborchat/harbor/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	mw      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermUsersView))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll(shared.PermUsersEdit))
		r.Post("/", h.createUser)
		r.Put("/{id}/roles", h.updateRoles)
		r.Post("/{id}/deactivate", h.deactivate)
		r.Post("/{id}/reactivate", h.reactivate)
	})
}

type userResponse struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Roles       []string  `json:"roles"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toUserResponse(u *User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Roles:       u.Roles,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.respondError(w, err, "list users")
		return
	}
	out := make([]userResponse, 0, len(list))
	for i := range list {
		out = append(out, toUserResponse(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": out})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get user")
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(user))
}

type createUserPayload struct {
	Username    string   `json:"username" validate:"required,min=2,max=64"`
	DisplayName string   `json:"display_name" validate:"max=128"`
	Password    string   `json:"password" validate:"required,min=8"`
	Roles       []string `json:"roles" validate:"required,min=1"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var payload createUserPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := httpx.Validate(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.CreateUser(r.Context(), payload.Username, payload.DisplayName, payload.Password, payload.Roles)
	if err != nil {
		h.respondError(w, err, "create user")
		return
	}
	httpx.JSON(w, http.StatusCreated, toUserResponse(user))
}

type updateRolesPayload struct {
	Roles []string `json:"roles" validate:"required,min=1"`
}

func (h *Handler) updateRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload updateRolesPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := httpx.Validate(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.UpdateRoles(r.Context(), id, payload.Roles)
	if err != nil {
		h.respondError(w, err, "update roles")
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(shared.ErrForbidden))
		return
	}
	user, err := h.service.Deactivate(r.Context(), id, principal.UserID)
	if err != nil {
		h.respondError(w, err, "deactivate user")
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Reactivate(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "reactivate user")
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
	case errors.Is(err, ErrInvariant):
		// Invariant violations surface the specific reason.
		httpx.Problem(w, http.StatusBadRequest, "Invariant Violation", err.Error())
	case errors.Is(err, ErrDuplicateUsername):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "username already exists")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
		return 0, false
	}
	return id, true
}
