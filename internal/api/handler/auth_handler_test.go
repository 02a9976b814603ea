package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/revivereads/marketplace/internal/api/middleware"
	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

func TestAuthHandler_SignUp_Success(t *testing.T) {
	stub := &stubAuthService{
		signUpFn: func(_ context.Context, in ports.SignUpInput) (*domain.User, error) {
			if in.Name != "Alice" || in.Email != "alice@example.com" || in.Password != "secret1" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.User{ID: "u1", Name: in.Name, Email: in.Email, PasswordHash: "hash"}, nil
		},
	}
	h := NewAuthHandler(stub, CookieConfig{})

	body := strings.NewReader(`{"name":"Alice","email":"alice@example.com","password":"secret1"}`)
	c, rec := newContext(http.MethodPost, "/api/user/sign-up", body, echo.MIMEApplicationJSON)

	if err := h.SignUp(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "hash") {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	data, ok := resp["data"].(map[string]any)
	if !ok || data["_id"] != "u1" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestAuthHandler_SignUp_InvalidEmail(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{}, CookieConfig{})
	c, _ := newContext(http.MethodPost, "/api/user/sign-up",
		strings.NewReader(`{"name":"Bob","email":"nope","password":"secret1"}`), echo.MIMEApplicationJSON)

	err := h.SignUp(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
	if !strings.Contains(fmt.Sprint(he.Message), "email must be a valid email") {
		t.Fatalf("unexpected message %v", he.Message)
	}
}

func TestAuthHandler_SignUp_EmailExists(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{
		signUpFn: func(context.Context, ports.SignUpInput) (*domain.User, error) {
			return nil, domain.ErrEmailExists
		},
	}, CookieConfig{})
	c, _ := newContext(http.MethodPost, "/api/user/sign-up",
		strings.NewReader(`{"name":"Bob","email":"bob@example.com","password":"secret1"}`), echo.MIMEApplicationJSON)

	if err := h.SignUp(c); !errors.Is(err, domain.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestAuthHandler_SignIn_RequiresOTP(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{
		signInFn: func(_ context.Context, email, _ string) (*ports.SignInResult, error) {
			return &ports.SignInResult{
				TwoFactorRequired: true,
				User:              domain.UserSummary{ID: "u1", Email: email, Role: domain.RoleUser},
				OTPExpiresIn:      5 * time.Minute,
			}, nil
		},
	}, CookieConfig{})
	c, rec := newContext(http.MethodPost, "/api/user/sign-in",
		strings.NewReader(`{"email":"alice@example.com","password":"secret1"}`), echo.MIMEApplicationJSON)

	if err := h.SignIn(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp signInResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.TwoFactorRequired || resp.User.ID != "u1" || resp.OTPExpiresIn != 300 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("no session cookie before the second factor")
	}
}

func TestAuthHandler_SignIn_Locked(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{
		signInFn: func(context.Context, string, string) (*ports.SignInResult, error) {
			return nil, fmt.Errorf("%w, try again in 10 minutes", domain.ErrAccountLocked)
		},
	}, CookieConfig{})
	c, _ := newContext(http.MethodPost, "/api/user/sign-in",
		strings.NewReader(`{"email":"alice@example.com","password":"x"}`), echo.MIMEApplicationJSON)

	if err := h.SignIn(c); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestAuthHandler_VerifyOTP_SetsCookie(t *testing.T) {
	expires := time.Now().Add(72 * time.Hour)
	h := NewAuthHandler(&stubAuthService{
		verifyFn: func(_ context.Context, email, otp string) (*ports.LoginResult, error) {
			if otp != "123456" {
				t.Fatalf("unexpected otp %q", otp)
			}
			return &ports.LoginResult{
				Token:     "signed-token",
				ExpiresAt: expires,
				User:      &domain.User{ID: "u1", Email: email, Role: domain.RoleUser},
			}, nil
		},
	}, CookieConfig{Secure: true})
	c, rec := newContext(http.MethodPost, "/api/user/verify-otp",
		strings.NewReader(`{"email":"alice@example.com","otp":"123456"}`), echo.MIMEApplicationJSON)

	if err := h.VerifyOTP(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	ck := cookies[0]
	if ck.Name != middleware.TokenCookie || ck.Value != "signed-token" || !ck.HttpOnly || !ck.Secure {
		t.Fatalf("unexpected cookie: %+v", ck)
	}

	var resp loginResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.User.Token != "signed-token" || resp.Message != "Login successful" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHandler_VerifyOTP_RejectsMalformedCode(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{}, CookieConfig{})
	c, _ := newContext(http.MethodPost, "/api/user/verify-otp",
		strings.NewReader(`{"email":"alice@example.com","otp":"12ab"}`), echo.MIMEApplicationJSON)

	var he *echo.HTTPError
	if err := h.VerifyOTP(c); !errors.As(err, &he) || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	stub := &stubAuthService{}
	h := NewAuthHandler(stub, CookieConfig{})

	c, _ := newContext(http.MethodPost, "/api/user/logout", nil, "")
	var he *echo.HTTPError
	if err := h.Logout(c); !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %v", err)
	}

	c, rec := newContext(http.MethodPost, "/api/user/logout", nil, "")
	authenticate(c, "u1", domain.RoleUser)
	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if stub.logoutCalls != 1 {
		t.Fatalf("expected service logout")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected cookie to be cleared, got %+v", cookies)
	}
}
