package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iconidentify/mediabot/internal/api/handler"
	"github.com/iconidentify/mediabot/internal/domain"
	"github.com/iconidentify/mediabot/internal/repository"
	"github.com/iconidentify/mediabot/internal/service"
)

func newTestServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	jobs := repository.NewInMemoryJobRepository(0)
	jobs.Create(context.Background(), &domain.Job{ID: "job-1", Status: domain.JobStatusCompleted})

	events, err := service.NewEventService(service.EventServiceConfig{}, logger)
	if err != nil {
		t.Fatalf("NewEventService() error = %v", err)
	}
	t.Cleanup(func() { events.Close() })

	router := NewRouter(
		handler.NewHealthHandler(jobs, nil, t.TempDir()),
		handler.NewJobHandler(jobs, logger),
		handler.NewEventHandler(events, logger),
		apiKey,
		logger,
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_Routes(t *testing.T) {
	srv := newTestServer(t, "")

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/health", http.StatusOK},
		{"//ready", http.StatusOK},
		{"/api/v1/stats", http.StatusOK},
		{"/api/v1/jobs", http.StatusOK},
		{"/api/v1/jobs/job-1", http.StatusOK},
		{"/api/v1/jobs/nope", http.StatusNotFound},
		{"/api/v1/events", http.StatusOK},
		{"/api/v1/events/recent", http.StatusOK},
		{"/api/v1/events/stats", http.StatusOK},
		{"/nothing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestRouter_APIKey(t *testing.T) {
	srv := newTestServer(t, "secret")

	tests := []struct {
		name       string
		path       string
		key        string
		wantStatus int
	}{
		{"health is open", "/health", "", http.StatusOK},
		{"ready is open", "/ready", "", http.StatusOK},
		{"stats needs key", "/api/v1/stats", "", http.StatusUnauthorized},
		{"stats with key", "/api/v1/stats", "secret", http.StatusOK},
		{"jobs with wrong key", "/api/v1/jobs", "nope", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}
