package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harborchat/harbor/internal/platform/httpx"
	"github.com/harborchat/harbor/internal/shared"
)

// Handler manages role administration endpoints.
type Handler struct {
	logger *slog.Logger
	store  *Store
	mw     Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, store *Store, mw Middleware) *Handler {
	return &Handler{logger: logger, store: store, mw: mw}
}

// MountRoutes registers role administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermRolesView))
		r.Get("/", h.listRoles)
		r.Get("/{name}", h.getRole)
		r.Get("/permissions", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll(shared.PermRolesEdit))
		r.Post("/", h.createRole)
		r.Put("/{name}", h.updateRole)
		r.Delete("/{name}", h.deleteRole)
	})
}

type rolePayload struct {
	Name               string                       `json:"name" validate:"required,min=2,max=64"`
	GlobalPermissions  map[string]bool              `json:"global_permissions"`
	ChannelPermissions map[string]ChannelPermission `json:"channel_permissions"`
}

type roleResponse struct {
	ID                 int64                        `json:"id"`
	Name               string                       `json:"name"`
	GlobalPermissions  map[string]bool              `json:"global_permissions"`
	ChannelPermissions map[string]ChannelPermission `json:"channel_permissions"`
	CreatedAt          time.Time                    `json:"created_at"`
	UpdatedAt          time.Time                    `json:"updated_at"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:                 role.ID,
		Name:               role.Name,
		GlobalPermissions:  role.GlobalPermissions,
		ChannelPermissions: role.ChannelPermissions,
		CreatedAt:          role.CreatedAt,
		UpdatedAt:          role.UpdatedAt,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.store.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.respondError(w, err, "get role")
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": shared.CoreScopes()})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var payload rolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := httpx.Validate(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.store.Create(r.Context(), Role{
		Name:               payload.Name,
		GlobalPermissions:  payload.GlobalPermissions,
		ChannelPermissions: payload.ChannelPermissions,
	})
	if err != nil {
		h.respondError(w, err, "create role")
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var payload rolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	role, err := h.store.Update(r.Context(), Role{
		Name:               chi.URLParam(r, "name"),
		GlobalPermissions:  payload.GlobalPermissions,
		ChannelPermissions: payload.ChannelPermissions,
	})
	if err != nil {
		h.respondError(w, err, "update role")
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == shared.RoleAdmin {
		httpx.Problem(w, http.StatusBadRequest, "Invariant Violation", "the admin role cannot be deleted")
		return
	}
	if err := h.store.Delete(r.Context(), name); err != nil {
		h.respondError(w, err, "delete role")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "role not found")
	case errors.Is(err, ErrDuplicateName):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "role name already exists")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
