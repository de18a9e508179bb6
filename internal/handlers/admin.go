package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/galleryprints/catalog-api/internal/platform/httpx"
	"github.com/galleryprints/catalog-api/internal/services"
)

const maxAdminRequestBody = 1 << 20

// AdminHandlers exposes operational endpoints such as bulk re-tagging.
type AdminHandlers struct {
	retag services.RetagService
}

// NewAdminHandlers constructs the admin endpoint handlers.
func NewAdminHandlers(retag services.RetagService) *AdminHandlers {
	return &AdminHandlers{retag: retag}
}

// Routes registers the admin endpoints on the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/works:retag", h.handleRetag)
}

type retagRequest struct {
	WorkIDs []string `json:"workIds"`
}

func (h *AdminHandlers) handleRetag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.retag == nil {
		httpx.WriteError(ctx, w, httpx.NewError("retag_unavailable", "retag dispatch is unavailable", http.StatusServiceUnavailable))
		return
	}

	// An empty body means "retag everything active".
	var req retagRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminRequestBody))
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	ids := make([]string, 0, len(req.WorkIDs))
	for _, id := range req.WorkIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}

	batches, err := h.retag.Dispatch(ctx, ids, r.Header.Get("Idempotency-Key"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("retag_failed", "retag dispatch failed", http.StatusBadGateway))
		return
	}

	writeJSONResponse(w, http.StatusAccepted, map[string]any{
		"message": fmt.Sprintf("Queued %d retag batches", batches),
		"batches": batches,
	})
}
