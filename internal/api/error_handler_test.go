package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/revivereads/marketplace/internal/core/domain"
)

func handle(t *testing.T, err error) (int, string) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	NewHTTPErrorHandler(zerolog.Nop())(err, c)

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return rec.Code, body.Error
}

func TestErrorHandler_DomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrInvalidID, http.StatusBadRequest},
		{fmt.Errorf("find book: %w", domain.ErrBookNotFound), http.StatusNotFound},
		{domain.ErrEmailExists, http.StatusConflict},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrSessionRevoked, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrOTPRateLimited, http.StatusTooManyRequests},
		{domain.ErrOTPInvalid, http.StatusBadRequest},
	}
	for _, tc := range cases {
		code, msg := handle(t, tc.err)
		if code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, code)
		}
		if msg == "" {
			t.Fatalf("%v: empty message", tc.err)
		}
	}
}

func TestErrorHandler_LockedKeepsDetail(t *testing.T) {
	code, msg := handle(t, fmt.Errorf("%w, try again in 15 minutes", domain.ErrAccountLocked))
	if code != http.StatusLocked {
		t.Fatalf("expected 423, got %d", code)
	}
	if msg != "account temporarily locked, try again in 15 minutes" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestErrorHandler_WrappedMessageHidden(t *testing.T) {
	_, msg := handle(t, fmt.Errorf("decode: %w", domain.ErrInvalidID))
	if msg != domain.ErrInvalidID.Error() {
		t.Fatalf("expected sentinel message, got %q", msg)
	}
}

func TestErrorHandler_EchoError(t *testing.T) {
	code, msg := handle(t, echo.NewHTTPError(http.StatusUnprocessableEntity, "email is required"))
	if code != http.StatusUnprocessableEntity || msg != "email is required" {
		t.Fatalf("unexpected %d %q", code, msg)
	}
}

func TestErrorHandler_Unexpected(t *testing.T) {
	code, msg := handle(t, errors.New("mongo exploded"))
	if code != http.StatusInternalServerError || msg != "internal server error" {
		t.Fatalf("unexpected %d %q", code, msg)
	}
}
