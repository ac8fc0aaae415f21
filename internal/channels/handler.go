package channels

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harborchat/harbor/internal/platform/httpx"
	"github.com/harborchat/harbor/internal/rbac"
	"github.com/harborchat/harbor/internal/realtime"
	"github.com/harborchat/harbor/internal/shared"
)

// Handler manages channel endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	mw        rbac.Middleware
	broadcast realtime.Broadcaster
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware, broadcast realtime.Broadcaster) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, broadcast: broadcast}
}

// MountRoutes registers channel routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listChannels)
	r.Get("/{id}", h.getChannel)
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll(shared.PermChannelsManage))
		r.Post("/", h.createChannel)
		r.Put("/{id}", h.updateChannel)
		r.Delete("/{id}", h.deleteChannel)
	})
}

type channelResponse struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Topic        string     `json:"topic,omitempty"`
	Visibility   Visibility `json:"visibility"`
	AllowedRoles []string   `json:"allowed_roles"`
	CreatedBy    int64      `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toChannelResponse(ch *Channel) channelResponse {
	return channelResponse{
		ID:           ch.ID,
		Name:         ch.Name,
		Topic:        ch.Topic,
		Visibility:   ch.Visibility,
		AllowedRoles: ch.AllowedRoles,
		CreatedBy:    ch.CreatedBy,
		CreatedAt:    ch.CreatedAt,
		UpdatedAt:    ch.UpdatedAt,
	}
}

func (h *Handler) listChannels(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	list, err := h.service.List(r.Context(), principal.Roles)
	if err != nil {
		h.logger.Error("list channels", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]channelResponse, 0, len(list))
	for i := range list {
		out = append(out, toChannelResponse(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"channels": out})
}

func (h *Handler) getChannel(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ch, err := h.service.Get(r.Context(), id, principal.Roles)
	if err != nil {
		h.respondError(w, err, "get channel")
		return
	}
	httpx.JSON(w, http.StatusOK, toChannelResponse(ch))
}

type channelPayload struct {
	Name         string     `json:"name" validate:"required,min=2,max=80"`
	Topic        string     `json:"topic" validate:"max=250"`
	Visibility   Visibility `json:"visibility" validate:"required,oneof=public private"`
	AllowedRoles []string   `json:"allowed_roles" validate:"required,min=1"`
}

func (h *Handler) createChannel(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	var payload channelPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := httpx.Validate(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ch, err := h.service.Create(r.Context(), payload.Name, payload.Topic, payload.Visibility, payload.AllowedRoles, principal.UserID)
	if err != nil {
		h.respondError(w, err, "create channel")
		return
	}
	h.notify(r, ch.ID, realtime.EventChannelUpdated)
	httpx.JSON(w, http.StatusCreated, toChannelResponse(ch))
}

func (h *Handler) updateChannel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload channelPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	ch, err := h.service.Update(r.Context(), id, payload.Topic, payload.Visibility, payload.AllowedRoles)
	if err != nil {
		h.respondError(w, err, "update channel")
		return
	}
	h.notify(r, ch.ID, realtime.EventChannelUpdated)
	httpx.JSON(w, http.StatusOK, toChannelResponse(ch))
}

func (h *Handler) deleteChannel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err, "delete channel")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) notify(r *http.Request, channelID int64, kind string) {
	if h.broadcast == nil {
		return
	}
	if err := h.broadcast.Broadcast(r.Context(), channelID, realtime.Event{Kind: kind}); err != nil {
		h.logger.Warn("broadcast channel event", slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "channel not found")
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(shared.ErrForbidden))
	case errors.Is(err, ErrDuplicateName):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "channel name already exists")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		// Malformed channel ids are treated as not-found.
		httpx.Problem(w, http.StatusNotFound, "Not Found", "channel not found")
		return 0, false
	}
	return id, true
}
