package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/galleryprints/catalog-api/internal/domain"
	"github.com/galleryprints/catalog-api/internal/platform/httpx"
	"github.com/galleryprints/catalog-api/internal/services"
)

const maxImportRequestBody = 1 << 20

// MuseumHandlers exposes per-source search and import endpoints.
type MuseumHandlers struct {
	search   services.SearchService
	importer services.ImportService
}

// NewMuseumHandlers constructs the museum endpoint handlers.
func NewMuseumHandlers(search services.SearchService, importer services.ImportService) *MuseumHandlers {
	return &MuseumHandlers{search: search, importer: importer}
}

// Routes registers the museum endpoints on the provided router.
func (h *MuseumHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{source}/search", h.handleSearch)
	r.Post("/{source}/import", h.handleImport)
}

func (h *MuseumHandlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.search == nil {
		httpx.WriteError(ctx, w, httpx.NewError("search_unavailable", "search service is unavailable", http.StatusServiceUnavailable))
		return
	}

	source, ok := domain.ParseSourceType(chi.URLParam(r, "source"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unknown_source", fmt.Sprintf("unknown source %q", chi.URLParam(r, "source")), http.StatusNotFound))
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_page", "page must be a positive integer", http.StatusBadRequest))
			return
		}
		page = parsed
	}

	output, err := h.search.Search(ctx, source, r.URL.Query().Get("q"), page)
	if err != nil {
		if errors.Is(err, services.ErrSearchInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_search", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("search_failed", "museum search failed", http.StatusBadGateway))
		return
	}

	if output.Items == nil {
		output.Items = []domain.Candidate{}
	}
	writeJSONResponse(w, http.StatusOK, output)
}

type importRequest struct {
	Items []importItem `json:"items"`
}

type importItem struct {
	ID string `json:"id"`
}

func (h *MuseumHandlers) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.importer == nil {
		httpx.WriteError(ctx, w, httpx.NewError("import_unavailable", "import service is unavailable", http.StatusServiceUnavailable))
		return
	}

	source, ok := domain.ParseSourceType(chi.URLParam(r, "source"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unknown_source", fmt.Sprintf("unknown source %q", chi.URLParam(r, "source")), http.StatusNotFound))
		return
	}

	var payload importRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportRequestBody))
	if err := decoder.Decode(&payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_body", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if len(payload.Items) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_body", "items array is required", http.StatusBadRequest))
		return
	}

	ids := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		if id := strings.TrimSpace(item.ID); id != "" {
			ids = append(ids, id)
		}
	}

	batch, err := h.importer.ImportFromSource(ctx, source, ids)
	if err != nil {
		if errors.Is(err, services.ErrImportInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_import", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("import_failed", "museum import failed", http.StatusBadGateway))
		return
	}

	writeJSONResponse(w, http.StatusOK, newBatchEnvelope(batch))
}

// batchEnvelope is the stable batch response contract the admin UI and CLI
// tooling depend on.
type batchEnvelope struct {
	Message      string                `json:"message"`
	Total        int                   `json:"total"`
	SuccessCount int                   `json:"successCount"`
	SkippedCount int                   `json:"skippedCount"`
	ErrorCount   int                   `json:"errorCount"`
	Results      []domain.ImportResult `json:"results"`
}

func newBatchEnvelope(batch services.BatchResult) batchEnvelope {
	results := batch.Results
	if results == nil {
		results = []domain.ImportResult{}
	}
	return batchEnvelope{
		Message:      fmt.Sprintf("Imported %d of %d works (%d skipped, %d failed)", batch.SuccessCount, batch.Total, batch.SkippedCount, batch.ErrorCount),
		Total:        batch.Total,
		SuccessCount: batch.SuccessCount,
		SkippedCount: batch.SkippedCount,
		ErrorCount:   batch.ErrorCount,
		Results:      results,
	}
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
