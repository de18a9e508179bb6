package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newAdminRouter(retag *stubRetagService) chi.Router {
	r := chi.NewRouter()
	NewAdminHandlers(retag).Routes(r)
	return r
}

func TestAdminHandlers_Retag_Success(t *testing.T) {
	retag := &stubRetagService{batches: 3}
	router := newAdminRouter(retag)

	req := httptest.NewRequest(http.MethodPost, "/works:retag", strings.NewReader(`{"workIds":["w1"," w2 ",""]}`))
	req.Header.Set("Idempotency-Key", "retag-2026-03-14")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if retag.calls != 1 {
		t.Fatalf("expected one dispatch, got %d", retag.calls)
	}
	if len(retag.lastIDs) != 2 || retag.lastIDs[1] != "w2" {
		t.Fatalf("expected trimmed ids [w1 w2], got %v", retag.lastIDs)
	}
	if retag.lastKey != "retag-2026-03-14" {
		t.Fatalf("expected idempotency key forwarded, got %q", retag.lastKey)
	}

	var resp struct {
		Message string `json:"message"`
		Batches int    `json:"batches"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Batches != 3 {
		t.Fatalf("expected 3 batches, got %d", resp.Batches)
	}
	if resp.Message == "" {
		t.Fatalf("expected a message in the response")
	}
}

func TestAdminHandlers_Retag_EmptyBodyMeansAll(t *testing.T) {
	retag := &stubRetagService{batches: 1}
	router := newAdminRouter(retag)

	req := httptest.NewRequest(http.MethodPost, "/works:retag", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(retag.lastIDs) != 0 {
		t.Fatalf("expected no explicit ids, got %v", retag.lastIDs)
	}
}

func TestAdminHandlers_Retag_InvalidBody(t *testing.T) {
	router := newAdminRouter(&stubRetagService{})
	req := httptest.NewRequest(http.MethodPost, "/works:retag", strings.NewReader("{bad"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlers_Retag_DispatchError(t *testing.T) {
	retag := &stubRetagService{err: errors.New("pubsub down")}
	router := newAdminRouter(retag)

	req := httptest.NewRequest(http.MethodPost, "/works:retag", strings.NewReader(`{"workIds":["w1"]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
}
