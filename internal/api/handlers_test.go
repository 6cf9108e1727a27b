package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ternarybob/merlin"
	"github.com/ternarybob/merlin/internal/config"
	"github.com/ternarybob/merlin/pkg/core"
)

// stubProvider satisfies core.ModelProvider without calling out anywhere,
// so Server tests exercise routing/encoding without a live model.
type stubProvider struct{}

func (stubProvider) Generate(_ context.Context, _, _ string) (core.Response, error) {
	return core.Response{Text: "ok"}, nil
}
func (stubProvider) IsAvailable() bool             { return true }
func (stubProvider) Name() string                  { return "stub" }
func (stubProvider) EstimateCost(_ string) float64 { return 0 }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	rt, err := merlin.New(t.TempDir(), merlin.WithModelProvider(stubProvider{}))
	if err != nil {
		t.Fatalf("create runtime: %v", err)
	}

	cfg := config.DefaultConfig()
	return NewServer(cfg, rt)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want %q", resp.Status, "ok")
	}
}

func TestHandleSubmitTasksRejectsEmptyBatch(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(SubmitTasksRequest{Tasks: nil})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleProcessRequestRejectsEmptyText(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(ProcessRequestBody{Text: ""})
	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAPIKeyAuthRejectsMissingKey(t *testing.T) {
	rt, err := merlin.New(t.TempDir(), merlin.WithModelProvider(stubProvider{}))
	if err != nil {
		t.Fatalf("create runtime: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.API.APIKey = "secret"
	s := NewServer(cfg, rt)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status with key = %d, want %d", rec.Code, http.StatusOK)
	}
}
