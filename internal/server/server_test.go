package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/session"
	"github.com/lazypower/cadence/internal/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg, err := session.NewRegistry(config.DefaultEngine(), config.DefaultCache(),
		session.WithJournal(db), session.WithLogger(logger))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(reg.Close)
	return New(reg, db, "test-version", logger)
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["journal"] != true {
		t.Errorf("journal = %v, want true", body["journal"])
	}
	if body["sessions"] != float64(0) {
		t.Errorf("sessions = %v, want 0", body["sessions"])
	}
}

func TestHealthWithoutJournal(t *testing.T) {
	reg, err := session.NewRegistry(config.DefaultEngine(), config.DefaultCache())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer reg.Close()
	srv := New(reg, nil, "dev", nil)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["journal"] != false {
		t.Errorf("journal = %v, want false", body["journal"])
	}
}

func TestUnknownSessionReturnsJSONError(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/api/sessions/missing/aggregate", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected error message in body")
	}
}

func TestUnknownSessionRoutes(t *testing.T) {
	srv := testServer(t)

	routes := []struct {
		method string
		path   string
	}{
		{"GET", "/api/sessions/abc123"},
		{"GET", "/api/sessions/abc123/aggregate"},
		{"GET", "/api/sessions/abc123/multiscale"},
		{"GET", "/api/sessions/abc123/activity"},
		{"POST", "/api/sessions/abc123/decide"},
		{"POST", "/api/sessions/abc123/end"},
	}

	for _, rt := range routes {
		req := httptest.NewRequest(rt.method, rt.path, nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: status = %d, want %d", rt.method, rt.path, w.Code, http.StatusNotFound)
		}
	}
}
