package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// countingLimiter admits the first limit calls per key.
type countingLimiter struct {
	limit int
	seen  map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.seen == nil {
		l.seen = make(map[string]int)
	}
	l.seen[key]++
	return l.seen[key] <= l.limit, nil
}

func TestClientIP_ForwardedHeadersCannotDodgeRateLimit(t *testing.T) {
	extractor, err := ClientIP(nil)
	if err != nil {
		t.Fatalf("ClientIP: %v", err)
	}
	e := echo.New()
	e.IPExtractor = extractor
	limiter := &countingLimiter{limit: 1}
	e.POST("/api/user/sign-in", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, RateLimit(limiter, nil, zerolog.Nop()))

	codes := []int{}
	for _, xff := range []string{"", "1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/user/sign-in", nil)
		req.RemoteAddr = "203.0.113.9:52100"
		if xff != "" {
			req.Header.Set(echo.HeaderXForwardedFor, xff)
			req.Header.Set(echo.HeaderXRealIP, xff)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("request %d: expected %d, got %d (all: %v)", i, want[i], codes[i], codes)
		}
	}
	if len(limiter.seen) != 1 {
		t.Fatalf("expected a single limiter key, got %v", limiter.seen)
	}
}

func TestClientIP_TrustedProxy(t *testing.T) {
	extractor, err := ClientIP([]string{"10.0.0.0/8", " ", "192.0.2.1"})
	if err != nil {
		t.Fatalf("ClientIP: %v", err)
	}

	cases := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"trusted cidr peer", "10.1.2.3:443", "198.51.100.4, 10.0.0.2", "198.51.100.4"},
		{"trusted single ip peer", "192.0.2.1:443", "198.51.100.8", "198.51.100.8"},
		{"untrusted peer", "203.0.113.9:443", "198.51.100.4", "203.0.113.9"},
		{"private peer not listed", "172.16.0.5:443", "198.51.100.4", "172.16.0.5"},
		{"no header", "10.1.2.3:443", "", "10.1.2.3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set(echo.HeaderXForwardedFor, tc.xff)
			}
			if got := extractor(req); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClientIP_RejectsInvalidEntries(t *testing.T) {
	for _, entry := range []string{"10.0.0.0/33", "proxy.internal"} {
		if _, err := ClientIP([]string{entry}); err == nil {
			t.Fatalf("expected error for %q", entry)
		}
	}
}
