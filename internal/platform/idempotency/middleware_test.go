package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var fixedTime = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func retagRequest(t *testing.T, key, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/works:retag", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestMiddleware_MissingHeader(t *testing.T) {
	handlerCalled := false
	handler := Middleware(NewMemoryStore(), WithClock(fixedClock))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		handlerCalled = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, retagRequest(t, "", `{"workIds":["w1"]}`))

	if handlerCalled {
		t.Fatal("handler should not run without an idempotency key")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorCode(t, rr.Body.Bytes(), "idempotency_key_required")
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithClock(fixedClock))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Queued 2 retag batches"}`))
	}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, retagRequest(t, "retag-2026-03-14", `{"workIds":["w1"]}`))

	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
	if rr1.Code != http.StatusAccepted {
		t.Fatalf("unexpected first response status: %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, retagRequest(t, "retag-2026-03-14", `{"workIds":["w1"]}`))

	if calls != 1 {
		t.Fatalf("expected replay without a second handler call, got %d calls", calls)
	}
	if rr2.Code != http.StatusAccepted {
		t.Fatalf("expected replayed status 202, got %d", rr2.Code)
	}
	if rr2.Header().Get(replayHeaderName) != "true" {
		t.Fatal("expected replay header on second response")
	}
	if got := rr2.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected replayed content-type, got %q", got)
	}
	if rr2.Body.String() != rr1.Body.String() {
		t.Fatalf("expected body %q, got %q", rr1.Body.String(), rr2.Body.String())
	}
}

func TestMiddleware_ReusedKeyDifferentPayloadConflicts(t *testing.T) {
	handler := Middleware(NewMemoryStore(), WithClock(fixedClock))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, retagRequest(t, "same-key", `{"workIds":["w1"]}`))
	if rr1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, retagRequest(t, "same-key", `{"workIds":["w2"]}`))

	if rr2.Code != http.StatusConflict {
		t.Fatalf("expected 409 for mismatched payload, got %d", rr2.Code)
	}
	assertErrorCode(t, rr2.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddleware_PendingReservationConflicts(t *testing.T) {
	store := NewMemoryStore()
	handler := Middleware(store, WithClock(fixedClock))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run while the key is pending")
	}))

	req := retagRequest(t, "pending-key", `{"workIds":["w1"]}`)
	body, err := bufferBody(req)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	requester := requesterScope(req)
	fingerprint := requestFingerprint(req, body, requester)
	scoped := scopedKey("pending-key", requester)
	if _, err := store.Reserve(req.Context(), scoped, fingerprint, fixedTime, time.Hour); err != nil {
		t.Fatalf("failed to seed reservation: %v", err)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for pending reservation, got %d", rr.Code)
	}
	assertErrorCode(t, rr.Body.Bytes(), "idempotency_in_progress")
}

func TestMiddleware_SaveFailureReleasesReservation(t *testing.T) {
	store := &stubStore{failSave: true}
	handler := Middleware(store, WithClock(fixedClock))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("queued"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, retagRequest(t, "fail-key", `{"workIds":["w1"]}`))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 response, got %d", rr.Code)
	}
	assertErrorCode(t, rr.Body.Bytes(), "idempotency_store_error")
	if !store.released {
		t.Fatal("expected reservation to be released after save failure")
	}
}

func TestMiddleware_UnguardedMethodPassesThrough(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithClock(fixedClock))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/museums/met/search", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if calls != 1 {
		t.Fatalf("expected GET to reach the handler, got %d calls", calls)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

type stubStore struct {
	failSave bool
	released bool
}

func (s *stubStore) Reserve(context.Context, string, string, time.Time, time.Duration) (Reservation, error) {
	return Reservation{State: ReservationStateNew}, nil
}

func (s *stubStore) SaveResponse(context.Context, string, string, Response, time.Time, time.Duration) error {
	if s.failSave {
		return errors.New("save failed")
	}
	return nil
}

func (s *stubStore) Release(context.Context, string, string) error {
	s.released = true
	return nil
}

func (s *stubStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func assertErrorCode(t *testing.T, payload []byte, expected string) {
	t.Helper()

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if body.Error != expected {
		t.Fatalf("expected error code %s, got %s", expected, body.Error)
	}
}
