package messages

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harborchat/harbor/internal/platform/httpx"
	"github.com/harborchat/harbor/internal/shared"
)

// Handler manages message endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountChannelRoutes registers the channel-scoped message routes under
// /channels/{id}/messages.
func (h *Handler) MountChannelRoutes(r chi.Router) {
	r.Get("/", h.listChannel)
	r.Post("/", h.post)
}

// MountRoutes registers the message-scoped routes under /messages.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Put("/{id}", h.edit)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/thread", h.thread)
	r.Get("/{id}/reactions", h.listReactions)
	r.Post("/{id}/reactions", h.react)
	r.Delete("/{id}/reactions/{emoji}", h.unreact)
}

type messageResponse struct {
	ID        int64     `json:"id"`
	ChannelID int64     `json:"channel_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Mentions  []string  `json:"mentions,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toMessageResponse(m *Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		AuthorID:  m.AuthorID,
		Body:      m.Body,
		ParentID:  m.ParentID,
		Mentions:  m.Mentions,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toMessageResponses(list []Message) []messageResponse {
	out := make([]messageResponse, 0, len(list))
	for i := range list {
		out = append(out, toMessageResponse(&list[i]))
	}
	return out
}

type postPayload struct {
	Body     string `json:"body" validate:"required,max=4000"`
	ParentID *int64 `json:"parent_id"`
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathInt64(w, r, "id", "channel not found")
	if !ok {
		return
	}
	var payload postPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := httpx.Validate(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	msg, err := h.service.Post(r.Context(), shared.PrincipalFromContext(r.Context()), channelID, payload.Body, payload.ParentID)
	if err != nil {
		h.respondError(w, err, "post message")
		return
	}
	httpx.JSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *Handler) listChannel(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathInt64(w, r, "id", "channel not found")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	list, pagination, err := h.service.ListChannel(r.Context(), shared.PrincipalFromContext(r.Context()), channelID, page, perPage)
	if err != nil {
		h.respondError(w, err, "list messages")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"messages": toMessageResponses(list),
		"pagination": map[string]int{
			"page":        pagination.Page,
			"per_page":    pagination.PerPage,
			"total":       pagination.Total,
			"total_pages": pagination.TotalPages,
		},
	})
}

type editPayload struct {
	Body string `json:"body" validate:"required,max=4000"`
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id", "message not found")
	if !ok {
		return
	}
	var payload editPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := httpx.Validate(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	msg, err := h.service.Edit(r.Context(), shared.PrincipalFromContext(r.Context()), id, payload.Body)
	if err != nil {
		h.respondError(w, err, "edit message")
		return
	}
	httpx.JSON(w, http.StatusOK, toMessageResponse(msg))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id", "message not found")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), shared.PrincipalFromContext(r.Context()), id); err != nil {
		h.respondError(w, err, "delete message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) thread(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id", "message not found")
	if !ok {
		return
	}
	root, replies, err := h.service.ListThread(r.Context(), shared.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err, "list thread")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"root":    toMessageResponse(root),
		"replies": toMessageResponses(replies),
	})
}

type reactionPayload struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

type reactionResponse struct {
	MessageID int64     `json:"message_id"`
	UserID    int64     `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

func toReactionResponses(list []Reaction) []reactionResponse {
	out := make([]reactionResponse, 0, len(list))
	for _, re := range list {
		out = append(out, reactionResponse{
			MessageID: re.MessageID,
			UserID:    re.UserID,
			Emoji:     re.Emoji,
			CreatedAt: re.CreatedAt,
		})
	}
	return out
}

func (h *Handler) react(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id", "message not found")
	if !ok {
		return
	}
	var payload reactionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := httpx.Validate(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.React(r.Context(), shared.PrincipalFromContext(r.Context()), id, payload.Emoji); err != nil {
		h.respondError(w, err, "add reaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unreact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id", "message not found")
	if !ok {
		return
	}
	emoji := chi.URLParam(r, "emoji")
	if err := h.service.Unreact(r.Context(), shared.PrincipalFromContext(r.Context()), id, emoji); err != nil {
		h.respondError(w, err, "remove reaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listReactions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id", "message not found")
	if !ok {
		return
	}
	reactions, err := h.service.Reactions(r.Context(), shared.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err, "list reactions")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reactions": toReactionResponses(reactions)})
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "resource not found")
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(shared.ErrForbidden))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathInt64(w http.ResponseWriter, r *http.Request, name, notFound string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", notFound)
		return 0, false
	}
	return id, true
}
