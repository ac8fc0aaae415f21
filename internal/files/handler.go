package files

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harborchat/harbor/internal/platform/httpx"
	"github.com/harborchat/harbor/internal/shared"
)

// Handler manages attachment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers attachment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/messages/{id}", h.upload)
	r.Get("/messages/{id}", h.listByMessage)
	r.Get("/{id}", h.download)
}

type attachmentResponse struct {
	ID          int64     `json:"id"`
	MessageID   int64     `json:"message_id"`
	Name        string    `json:"name"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentType string    `json:"content_type"`
	UploadedBy  int64     `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAttachmentResponse(att *Attachment) attachmentResponse {
	return attachmentResponse{
		ID:          att.ID,
		MessageID:   att.MessageID,
		Name:        att.Name,
		SizeBytes:   att.SizeBytes,
		ContentType: att.ContentType,
		UploadedBy:  att.UploadedBy,
		CreatedAt:   att.CreatedAt,
	}
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	messageID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "multipart field 'file' required")
		return
	}
	defer func() { _ = file.Close() }()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	att, err := h.service.Upload(r.Context(), shared.PrincipalFromContext(r.Context()),
		messageID, header.Filename, contentType, header.Size, file)
	if err != nil {
		h.respondError(w, err, "upload attachment")
		return
	}
	httpx.JSON(w, http.StatusCreated, toAttachmentResponse(att))
}

func (h *Handler) listByMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListByMessage(r.Context(), shared.PrincipalFromContext(r.Context()), messageID)
	if err != nil {
		h.respondError(w, err, "list attachments")
		return
	}
	out := make([]attachmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAttachmentResponse(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"attachments": out})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	att, body, err := h.service.Open(r.Context(), shared.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err, "download attachment")
		return
	}
	defer func() { _ = body.Close() }()
	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+att.Name+`"`)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream attachment", slog.Any("error", err))
	}
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

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "resource not found")
		return 0, false
	}
	return id, true
}
