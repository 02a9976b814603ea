package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

type authFixture struct {
	svc      *AuthService
	users    *stubUserRepo
	activity *stubActivityRepo
	mail     *stubMailQueue
}

func newAuthFixture(throttle ports.OTPThrottle) *authFixture {
	users := newStubUserRepo()
	activity := &stubActivityRepo{}
	mail := &stubMailQueue{}
	svc := NewAuthService(users, recordingActivity{repo: activity}, mail, throttle, AuthConfig{
		JWTSecret:   "secret",
		TokenTTL:    time.Hour,
		FrontendURL: "http://localhost:5173/",
	}, zerolog.Nop())
	return &authFixture{svc: svc, users: users, activity: activity, mail: mail}
}

func (f *authFixture) signUp(t *testing.T, email, password string) *domain.User {
	t.Helper()
	u, err := f.svc.SignUp(context.Background(), ports.SignUpInput{Name: "Reader", Email: email, Password: password})
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	return u
}

var otpPattern = regexp.MustCompile(`<strong>(\d{6})</strong>`)

func mailedOTP(t *testing.T, mail *stubMailQueue) string {
	t.Helper()
	m := otpPattern.FindStringSubmatch(mail.last().HTML)
	if m == nil {
		t.Fatalf("no otp in last email: %q", mail.last().HTML)
	}
	return m[1]
}

func TestAuthService_SignUp_Success(t *testing.T) {
	f := newAuthFixture(stubThrottle{})

	user := f.signUp(t, "  Alice@Example.com ", "pass123")
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.PasswordHash == "pass123" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pass123")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if user.Role != domain.RoleUser || user.Status != domain.StatusAway || !user.NotificationsEnabled {
		t.Fatalf("unexpected defaults: %+v", user)
	}
	if user.Avatar != domain.DefaultAvatar {
		t.Fatalf("expected default avatar, got %q", user.Avatar)
	}
	if len(f.mail.sent) != 1 || f.mail.sent[0].To != "alice@example.com" {
		t.Fatalf("expected welcome email, got %+v", f.mail.sent)
	}
	if got := f.activity.actions(); len(got) != 1 || got[0] != domain.ActionUserSignup {
		t.Fatalf("expected USER_SIGNUP activity, got %v", got)
	}
}

func TestAuthService_SignUp_Validation(t *testing.T) {
	f := newAuthFixture(stubThrottle{})

	if _, err := f.svc.SignUp(context.Background(), ports.SignUpInput{Name: "Bob", Email: "bob@example.com", Password: "12345"}); err != domain.ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if _, err := f.svc.SignUp(context.Background(), ports.SignUpInput{Name: "", Email: "bob@example.com", Password: "123456"}); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_SignUp_Duplicate(t *testing.T) {
	f := newAuthFixture(stubThrottle{})

	f.signUp(t, "bob@example.com", "pass123")
	_, err := f.svc.SignUp(context.Background(), ports.SignUpInput{Name: "Bob", Email: "BOB@example.com", Password: "pass456"})
	if err != domain.ErrEmailExists {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestAuthService_SignInAndVerifyOTP(t *testing.T) {
	f := newAuthFixture(stubThrottle{})
	user := f.signUp(t, "carol@example.com", "s3cret")

	res, err := f.svc.SignIn(context.Background(), "carol@example.com", "s3cret", domain.RequestMeta{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if !res.TwoFactorRequired || res.User.ID != user.ID {
		t.Fatalf("unexpected sign-in result: %+v", res)
	}

	stored := f.users.users[user.ID]
	if stored.OTPHash == "" || stored.OTPExpires == nil {
		t.Fatalf("expected hashed otp to be stored")
	}
	code := mailedOTP(t, f.mail)
	if stored.OTPHash == code {
		t.Fatalf("otp stored in plaintext")
	}

	login, err := f.svc.VerifyOTP(context.Background(), "carol@example.com", code, domain.RequestMeta{})
	if err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	if login.Token == "" {
		t.Fatalf("expected token, got empty")
	}
	if login.User.Status != domain.StatusActive {
		t.Fatalf("expected Active status, got %s", login.User.Status)
	}
	if f.users.users[user.ID].OTPHash != "" {
		t.Fatalf("expected otp to be cleared after success")
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(login.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	if claims["id"] != user.ID || claims["role"] != domain.RoleUser || claims["sv"] != float64(0) {
		t.Fatalf("unexpected claims: %v", claims)
	}

	want := []string{domain.ActionUserSignup, domain.ActionOTPSent, domain.ActionLoginSuccess}
	if got := f.activity.actions(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected activities %v, got %v", want, got)
	}
}

func TestAuthService_SignIn_UnknownEmail(t *testing.T) {
	f := newAuthFixture(stubThrottle{})

	if _, err := f.svc.SignIn(context.Background(), "ghost@example.com", "pass", domain.RequestMeta{}); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := f.activity.actions(); len(got) != 1 || got[0] != domain.ActionLoginFailed {
		t.Fatalf("expected LOGIN_FAILED activity, got %v", got)
	}
}

func TestAuthService_SignIn_LocksAfterRepeatedFailures(t *testing.T) {
	f := newAuthFixture(stubThrottle{})
	user := f.signUp(t, "dave@example.com", "goodpass")

	for i := 0; i < 4; i++ {
		if _, err := f.svc.SignIn(context.Background(), "dave@example.com", "badpass", domain.RequestMeta{}); err != domain.ErrInvalidCredentials {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if got := f.users.users[user.ID].FailedLoginAttempts; got != 4 {
		t.Fatalf("expected 4 failed attempts, got %d", got)
	}

	_, err := f.svc.SignIn(context.Background(), "dave@example.com", "badpass", domain.RequestMeta{})
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked on 5th failure, got %v", err)
	}
	stored := f.users.users[user.ID]
	if stored.LockoutUntil == nil || stored.FailedLoginAttempts != 0 {
		t.Fatalf("expected lockout set and counter reset, got %+v", stored)
	}

	// correct password is still refused while locked
	if _, err := f.svc.SignIn(context.Background(), "dave@example.com", "goodpass", domain.RequestMeta{}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked while locked, got %v", err)
	}

	// lockout expires
	f.svc.now = func() time.Time { return time.Now().UTC().Add(16 * time.Minute) }
	if _, err := f.svc.SignIn(context.Background(), "dave@example.com", "goodpass", domain.RequestMeta{}); err != nil {
		t.Fatalf("expected sign-in after lockout expiry, got %v", err)
	}
	if f.users.users[user.ID].LockoutUntil != nil {
		t.Fatalf("expected lockout cleared after successful sign-in")
	}
}

func TestAuthService_SignIn_Throttled(t *testing.T) {
	f := newAuthFixture(stubThrottle{deny: true})
	f.signUp(t, "erin@example.com", "pass123")

	if _, err := f.svc.SignIn(context.Background(), "erin@example.com", "pass123", domain.RequestMeta{}); err != domain.ErrOTPRateLimited {
		t.Fatalf("expected ErrOTPRateLimited, got %v", err)
	}
}

func TestAuthService_SignIn_ThrottleErrorStillSends(t *testing.T) {
	f := newAuthFixture(stubThrottle{err: errors.New("redis down")})
	f.signUp(t, "erin@example.com", "pass123")

	if _, err := f.svc.SignIn(context.Background(), "erin@example.com", "pass123", domain.RequestMeta{}); err != nil {
		t.Fatalf("expected sign-in despite throttle error, got %v", err)
	}
}

func TestAuthService_VerifyOTP_Failures(t *testing.T) {
	f := newAuthFixture(stubThrottle{})
	user := f.signUp(t, "frank@example.com", "pass123")

	if _, err := f.svc.VerifyOTP(context.Background(), "frank@example.com", "123456", domain.RequestMeta{}); err != domain.ErrOTPNotFound {
		t.Fatalf("expected ErrOTPNotFound before sign-in, got %v", err)
	}

	if _, err := f.svc.SignIn(context.Background(), "frank@example.com", "pass123", domain.RequestMeta{}); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	code := mailedOTP(t, f.mail)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < 4; i++ {
		if _, err := f.svc.VerifyOTP(context.Background(), "frank@example.com", wrong, domain.RequestMeta{}); err != domain.ErrOTPInvalid {
			t.Fatalf("attempt %d: expected ErrOTPInvalid, got %v", i+1, err)
		}
	}
	if got := f.users.users[user.ID].OTPAttempts; got != 4 {
		t.Fatalf("expected 4 otp attempts, got %d", got)
	}
	if _, err := f.svc.VerifyOTP(context.Background(), "frank@example.com", wrong, domain.RequestMeta{}); err != domain.ErrOTPInvalid {
		t.Fatalf("expected ErrOTPInvalid on 5th attempt, got %v", err)
	}
	if f.users.users[user.ID].OTPHash != "" {
		t.Fatalf("expected otp cleared after max attempts")
	}
	if _, err := f.svc.VerifyOTP(context.Background(), "frank@example.com", code, domain.RequestMeta{}); err != domain.ErrOTPNotFound {
		t.Fatalf("expected ErrOTPNotFound once exhausted, got %v", err)
	}
}

func TestAuthService_VerifyOTP_Expired(t *testing.T) {
	f := newAuthFixture(stubThrottle{})
	user := f.signUp(t, "gina@example.com", "pass123")

	if _, err := f.svc.SignIn(context.Background(), "gina@example.com", "pass123", domain.RequestMeta{}); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	code := mailedOTP(t, f.mail)

	f.svc.now = func() time.Time { return time.Now().UTC().Add(6 * time.Minute) }
	if _, err := f.svc.VerifyOTP(context.Background(), "gina@example.com", code, domain.RequestMeta{}); err != domain.ErrOTPExpired {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
	if f.users.users[user.ID].OTPExpires != nil {
		t.Fatalf("expected expired otp to be cleared")
	}
}

var resetLinkPattern = regexp.MustCompile(`/reset-password/([^"]+)"`)

func TestAuthService_ResetPassword(t *testing.T) {
	f := newAuthFixture(stubThrottle{})
	user := f.signUp(t, "hank@example.com", "oldpass")

	if err := f.svc.ForgotPassword(context.Background(), "hank@example.com", domain.RequestMeta{}); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	html := f.mail.last().HTML
	if !strings.Contains(html, "http://localhost:5173/reset-password/") {
		t.Fatalf("expected reset link in email, got %q", html)
	}
	m := resetLinkPattern.FindStringSubmatch(html)
	if m == nil {
		t.Fatalf("no reset token in email")
	}
	token := m[1]
	if f.users.users[user.ID].ResetTokenHash == token {
		t.Fatalf("reset token stored in plaintext")
	}

	if err := f.svc.ResetPassword(context.Background(), token, "123", domain.RequestMeta{}); err != domain.ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := f.svc.ResetPassword(context.Background(), "garbage", "newpass", domain.RequestMeta{}); err != domain.ErrInvalidResetToken {
		t.Fatalf("expected ErrInvalidResetToken, got %v", err)
	}
	if err := f.svc.ResetPassword(context.Background(), token, "newpass", domain.RequestMeta{}); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	stored := f.users.users[user.ID]
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newpass")) != nil {
		t.Fatalf("password not updated")
	}
	if stored.SessionVersion != 1 || stored.ResetTokenHash != "" {
		t.Fatalf("expected session version bump and cleared token, got %+v", stored)
	}
	// single use
	if err := f.svc.ResetPassword(context.Background(), token, "another", domain.RequestMeta{}); err != domain.ErrInvalidResetToken {
		t.Fatalf("expected reused token to fail, got %v", err)
	}
}

func TestAuthService_ForgotPassword_UnknownEmail(t *testing.T) {
	f := newAuthFixture(stubThrottle{})
	if err := f.svc.ForgotPassword(context.Background(), "nobody@example.com", domain.RequestMeta{}); err != domain.ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_SessionLifecycle(t *testing.T) {
	f := newAuthFixture(stubThrottle{})
	user := f.signUp(t, "ivy@example.com", "pass123")
	actor := ports.Actor{ID: user.ID, Email: user.Email, Role: user.Role}

	if err := f.svc.ValidateSession(context.Background(), user.ID, 0); err != nil {
		t.Fatalf("expected valid session, got %v", err)
	}
	if err := f.svc.Logout(context.Background(), actor); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if got := f.users.users[user.ID].Status; got != domain.StatusOffline {
		t.Fatalf("expected Offline after logout, got %s", got)
	}
	if err := f.svc.LogoutAll(context.Background(), actor); err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}
	if err := f.svc.ValidateSession(context.Background(), user.ID, 0); err != domain.ErrSessionRevoked {
		t.Fatalf("expected ErrSessionRevoked for stale version, got %v", err)
	}
	if err := f.svc.ValidateSession(context.Background(), user.ID, 1); err != nil {
		t.Fatalf("expected new version to be valid, got %v", err)
	}
	if err := f.svc.ValidateSession(context.Background(), "missing", 0); err != domain.ErrSessionRevoked {
		t.Fatalf("expected ErrSessionRevoked for unknown user, got %v", err)
	}
}

func TestGenerateOTP_Format(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateOTP()
		if err != nil {
			t.Fatalf("generateOTP: %v", err)
		}
		if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
			t.Fatalf("unexpected otp %q", code)
		}
	}
}
