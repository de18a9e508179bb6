package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/galleryprints/catalog-api/internal/ingest"
	"github.com/galleryprints/catalog-api/internal/platform/httpx"
	"github.com/galleryprints/catalog-api/internal/services"
)

const defaultMaxUploadBytes = 512 << 20

// UploadHandlers accepts CSV/ZIP batch uploads and runs them through the
// import pipeline.
type UploadHandlers struct {
	importer services.ImportService
	builder  *ingest.Builder
	maxBytes int64
}

// NewUploadHandlers constructs the upload endpoint handlers.
func NewUploadHandlers(importer services.ImportService, builder *ingest.Builder, maxBytes int64) *UploadHandlers {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &UploadHandlers{importer: importer, builder: builder, maxBytes: maxBytes}
}

// Routes registers the upload endpoints on the provided router.
func (h *UploadHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/upload", h.handleUpload)
}

func (h *UploadHandlers) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.importer == nil || h.builder == nil {
		httpx.WriteError(ctx, w, httpx.NewError("upload_unavailable", "upload service is unavailable", http.StatusServiceUnavailable))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_upload", "request must be multipart form data within the size limit", http.StatusBadRequest))
		return
	}

	csvData, err := formFileBytes(r, "csv")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_upload", "csv part could not be read", http.StatusBadRequest))
		return
	}
	zipData, err := formFileBytes(r, "zip")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_upload", "zip part could not be read", http.StatusBadRequest))
		return
	}

	items, err := h.builder.Build(csvData, zipData)
	if err != nil {
		status := http.StatusBadRequest
		var validation *ingest.ValidationError
		switch {
		case errors.As(err, &validation):
			details := make([]string, 0, len(validation.Rows))
			for _, row := range validation.Rows {
				details = append(details, row.Error())
			}
			httpx.WriteError(ctx, w, httpx.NewError("invalid_csv", "csv validation failed", status).
				WithDetails(map[string]any{"rows": details}))
		case errors.Is(err, ingest.ErrEmptyCSV), errors.Is(err, ingest.ErrNoInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_upload", err.Error(), status))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_upload", err.Error(), status))
		}
		return
	}

	rows := make([]services.RowInput, 0, len(items))
	for _, item := range items {
		rows = append(rows, services.RowInput{
			Row:         item.Row,
			Image:       item.Image,
			RowError:    item.RowError,
			DuplicateOf: item.DuplicateOf,
		})
	}

	opts := services.ImportOptions{
		SkipAITagging: parseBoolField(r.FormValue("skipAiTagging")),
	}
	batch, err := h.importer.ImportRows(ctx, rows, opts)
	if err != nil {
		if errors.Is(err, services.ErrImportInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_upload", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("upload_failed", "batch import failed", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, newBatchEnvelope(batch))
}

// formFileBytes reads an optional multipart file part, returning nil when the
// part is absent.
func formFileBytes(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func parseBoolField(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
