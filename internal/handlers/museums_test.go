package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/galleryprints/catalog-api/internal/domain"
	"github.com/galleryprints/catalog-api/internal/services"
)

func newMuseumRouter(search services.SearchService, importer services.ImportService) chi.Router {
	r := chi.NewRouter()
	NewMuseumHandlers(search, importer).Routes(r)
	return r
}

func TestMuseumHandlers_Search_Success(t *testing.T) {
	search := &stubSearchService{
		output: services.SearchOutput{
			Total: 42,
			Items: []domain.Candidate{
				{SourceType: domain.SourceMet, SourceID: "1979.206.1", Title: "Bridge", Artist: "Monet"},
				{SourceType: domain.SourceMet, SourceID: "1979.206.2", Title: "Pond", Artist: "Monet", AlreadyImported: true},
			},
		},
	}

	router := newMuseumRouter(search, nil)
	req := httptest.NewRequest(http.MethodGet, "/met/search?q=monet&page=3", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if search.lastSource != domain.SourceMet {
		t.Fatalf("expected source met, got %s", search.lastSource)
	}
	if search.lastQuery != "monet" || search.lastPage != 3 {
		t.Fatalf("unexpected query/page: %q %d", search.lastQuery, search.lastPage)
	}

	var resp struct {
		Total int `json:"total"`
		Items []struct {
			SourceID        string `json:"sourceId"`
			AlreadyImported bool   `json:"alreadyImported"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 42 {
		t.Fatalf("expected total 42, got %d", resp.Total)
	}
	if len(resp.Items) != 2 || !resp.Items[1].AlreadyImported {
		t.Fatalf("expected second item annotated as imported: %+v", resp.Items)
	}
}

func TestMuseumHandlers_Search_EmptyResultsEncodeAsArray(t *testing.T) {
	search := &stubSearchService{output: services.SearchOutput{Total: 0, Items: nil}}

	router := newMuseumRouter(search, nil)
	req := httptest.NewRequest(http.MethodGet, "/cleveland/search?q=nothing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items array, got %s", rr.Body.String())
	}
}

func TestMuseumHandlers_Search_UnknownSource(t *testing.T) {
	router := newMuseumRouter(&stubSearchService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/louvre/search?q=mona", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestMuseumHandlers_Search_InvalidPage(t *testing.T) {
	router := newMuseumRouter(&stubSearchService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/met/search?q=monet&page=zero", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestMuseumHandlers_Search_InvalidInput(t *testing.T) {
	search := &stubSearchService{err: services.ErrSearchInvalidInput}
	router := newMuseumRouter(search, nil)
	req := httptest.NewRequest(http.MethodGet, "/met/search", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMuseumHandlers_Import_EnvelopeContract(t *testing.T) {
	importer := &stubImportService{
		batch: services.BatchResult{
			Total:        3,
			SuccessCount: 1,
			SkippedCount: 1,
			ErrorCount:   1,
			Results: []domain.ImportResult{
				{Success: true, GPSku: "GP20260001", Title: "Bridge", ArtistName: "Monet"},
				{Success: true, Title: "Pond", Error: "Already imported"},
				{Success: false, Title: "Lost", Error: "image fetch failed"},
			},
		},
	}

	router := newMuseumRouter(nil, importer)
	body := `{"items":[{"id":"1979.206.1"},{"id":"1979.206.2"},{"id":"1979.206.3"}]}`
	req := httptest.NewRequest(http.MethodPost, "/met/import", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if importer.sourceCalls != 1 || len(importer.lastIDs) != 3 {
		t.Fatalf("expected one import call with 3 ids, got %d calls %v", importer.sourceCalls, importer.lastIDs)
	}

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, key := range []string{"message", "total", "successCount", "skippedCount", "errorCount", "results"} {
		if _, ok := resp[key]; !ok {
			t.Fatalf("missing envelope field %q in %s", key, rr.Body.String())
		}
	}

	var results []map[string]json.RawMessage
	if err := json.Unmarshal(resp["results"], &results); err != nil {
		t.Fatalf("failed to decode results: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, key := range []string{"success", "gpSku", "title", "artistName"} {
		if _, ok := results[0][key]; !ok {
			t.Fatalf("missing result field %q in %s", key, string(resp["results"]))
		}
	}
	if _, ok := results[0]["error"]; ok {
		t.Fatalf("successful result must omit error field: %s", string(resp["results"]))
	}
	if string(results[1]["error"]) != `"Already imported"` {
		t.Fatalf("expected Already imported marker, got %s", string(results[1]["error"]))
	}

	var message string
	if err := json.Unmarshal(resp["message"], &message); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	if message != "Imported 1 of 3 works (1 skipped, 1 failed)" {
		t.Fatalf("unexpected message: %q", message)
	}
}

func TestMuseumHandlers_Import_EmptyItems(t *testing.T) {
	router := newMuseumRouter(nil, &stubImportService{})
	req := httptest.NewRequest(http.MethodPost, "/met/import", strings.NewReader(`{"items":[]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMuseumHandlers_Import_InvalidBody(t *testing.T) {
	router := newMuseumRouter(nil, &stubImportService{})
	req := httptest.NewRequest(http.MethodPost, "/met/import", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMuseumHandlers_Import_ServiceUnavailable(t *testing.T) {
	router := newMuseumRouter(nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/met/import", strings.NewReader(`{"items":[{"id":"x"}]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
