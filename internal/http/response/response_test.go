package response

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func TestJSONWritesRawBody(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusCreated, map[string]any{"success": true})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != true || len(body) != 1 {
		t.Fatalf("expected unwrapped body, got %v", body)
	}
}

func TestErrorCarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chimiddleware.RequestIDKey, "req-123"))
	rr := httptest.NewRecorder()
	Error(rr, req, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired", nil)

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "TOKEN_EXPIRED" || body["error"] != "Token expired" || body["requestId"] != "req-123" {
		t.Fatalf("unexpected error body %v", body)
	}
	if _, ok := body["details"]; ok {
		t.Fatalf("details must be omitted when nil, got %v", body)
	}
}

func TestRequestIDFallbacks(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := RequestID(req); got != "req-unknown" {
		t.Fatalf("expected req-unknown, got %q", got)
	}
	req.Header.Set("X-Request-Id", "from-header")
	if got := RequestID(req); got != "from-header" {
		t.Fatalf("expected header id, got %q", got)
	}
}

func TestInternalHidesDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	Internal(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body["code"] != "INTERNAL" || body["error"] != "Internal server error" {
		t.Fatalf("unexpected body %v", body)
	}
}
