package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dogcoloringbooks/coloringbook/internal/bulk"
	"github.com/dogcoloringbooks/coloringbook/internal/imagedata"
	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"github.com/dogcoloringbooks/coloringbook/internal/shell"
	"github.com/dogcoloringbooks/coloringbook/internal/single"
	"github.com/dogcoloringbooks/coloringbook/internal/templates"
	"github.com/dogcoloringbooks/coloringbook/internal/webhook"
)

type Handler struct {
	shell *shell.Shell
}

func New(s *shell.Shell) *Handler {
	return &Handler{shell: s}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/templates", h.HandleTemplates)
	mux.HandleFunc("GET /api/templates/{id}", h.HandleTemplate)
	mux.HandleFunc("POST /api/templates/{id}/validate", h.HandleValidateTemplate)
	mux.HandleFunc("GET /api/templates/{id}/form", h.HandleTemplateForm)

	mux.HandleFunc("POST /api/single", h.HandleCreateSession)
	mux.HandleFunc("GET /api/single/{id}", h.HandleSessionDetail)
	mux.HandleFunc("DELETE /api/single/{id}", h.HandleDeleteSession)
	mux.HandleFunc("POST /api/single/{id}/coloring", h.HandleSingleColoring)
	mux.HandleFunc("POST /api/single/{id}/continue", h.HandleSingleContinue)
	mux.HandleFunc("POST /api/single/{id}/template", h.HandleSingleTemplate)
	mux.HandleFunc("POST /api/single/{id}/composite", h.HandleSingleComposite)
	mux.HandleFunc("GET /api/single/{id}/composite", h.HandleCompositeDownload)
	mux.HandleFunc("POST /api/single/{id}/post", h.HandleSinglePost)
	mux.HandleFunc("POST /api/single/{id}/retry", h.HandleSingleRetry)
	mux.HandleFunc("POST /api/single/{id}/dismiss", h.HandleSingleDismiss)
	mux.HandleFunc("POST /api/single/{id}/reset", h.HandleSingleReset)

	mux.HandleFunc("GET /api/bulk", h.HandleBulk)
	mux.HandleFunc("POST /api/bulk/dogs", h.HandleBulkDogs)
	mux.HandleFunc("POST /api/bulk/photos", h.HandleBulkPhotos)
	mux.HandleFunc("POST /api/bulk/auto", h.HandleBulkAuto)
	mux.HandleFunc("POST /api/bulk/coloring", h.HandleBulkColoring)
	mux.HandleFunc("POST /api/bulk/composites", h.HandleBulkComposites)
	mux.HandleFunc("POST /api/bulk/approve", h.HandleBulkApprove)
	mux.HandleFunc("POST /api/bulk/schedule", h.HandleBulkSchedule)
	mux.HandleFunc("POST /api/bulk/template", h.HandleBulkTemplate)
	mux.HandleFunc("PUT /api/bulk/items/{id}/caption", h.HandleBulkCaption)
	mux.HandleFunc("POST /api/bulk/items/{id}/retry", h.HandleBulkRetry)
	mux.HandleFunc("POST /api/bulk/items/{id}/approve", h.HandleBulkApproveItem)
	mux.HandleFunc("POST /api/bulk/items/{id}/reject", h.HandleBulkRejectItem)
	mux.HandleFunc("DELETE /api/bulk/items/{id}", h.HandleBulkRemove)

	mux.HandleFunc("GET /api/shell", h.HandleShell)
	mux.HandleFunc("PUT /api/shell/tab", h.HandleShellTab)
	mux.HandleFunc("PUT /api/shell/dark-mode", h.HandleShellDarkMode)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// writeErr maps a domain error to its HTTP status.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	h.writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	var whErr *webhook.Error
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, shell.ErrUnknownTab),
		errors.Is(err, imagedata.ErrEmpty),
		errors.Is(err, imagedata.ErrNotImage):
		return http.StatusBadRequest
	case errors.Is(err, imagedata.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, templates.ErrNotFound),
		errors.Is(err, bulk.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, single.ErrBusy),
		errors.Is(err, single.ErrWrongStep),
		errors.Is(err, single.ErrReset),
		errors.Is(err, single.ErrNothingToRetry),
		errors.Is(err, bulk.ErrPassRunning),
		errors.Is(err, bulk.ErrTransition),
		errors.Is(err, bulk.ErrNotRetryable):
		return http.StatusConflict
	case errors.As(err, &whErr):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*single.Controller, bool) {
	session, exists := h.shell.Single(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}
