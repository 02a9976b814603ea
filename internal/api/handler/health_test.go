package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

func TestLiveness(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/health", nil, "")
	if err := NewHealthHandler().Liveness(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadiness(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantCode   int
		wantStatus string
	}{
		{"all healthy", map[string]Pinger{"mongo": ok, "redis": ok}, http.StatusOK, "ok"},
		{"redis down", map[string]Pinger{"mongo": ok, "redis": down}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/health/ready", nil, "")
			if err := NewReadinessHandler(tt.checks).Readiness(c); err != nil {
				t.Fatal(err)
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			var resp readinessResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantStatus {
				t.Fatalf("expected %q, got %q", tt.wantStatus, resp.Status)
			}
			if tt.wantStatus == "degraded" && resp.Dependencies["redis"].Error != "connection refused" {
				t.Fatalf("missing dependency error: %+v", resp.Dependencies)
			}
		})
	}
}
