package ports

import (
	"context"
	"time"

	"github.com/revivereads/marketplace/internal/core/domain"
)

// Actor identifies the authenticated caller of a use case.
type Actor struct {
	ID    string
	Email string
	Role  string
	Meta  domain.RequestMeta
}

func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// SignUpInput carries the registration form.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
	Address  string
	Phone    string
	Meta     domain.RequestMeta
}

// SignInResult is returned after a correct password; a code has been mailed.
type SignInResult struct {
	TwoFactorRequired bool
	User              domain.UserSummary
	OTPExpiresIn      time.Duration
}

// LoginResult is returned once the second factor is verified.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// AuthService covers registration, two-factor sign-in and credential recovery.
type AuthService interface {
	SignUp(ctx context.Context, input SignUpInput) (*domain.User, error)
	SignIn(ctx context.Context, email, password string, meta domain.RequestMeta) (*SignInResult, error)
	VerifyOTP(ctx context.Context, email, otp string, meta domain.RequestMeta) (*LoginResult, error)
	ForgotPassword(ctx context.Context, email string, meta domain.RequestMeta) error
	ResetPassword(ctx context.Context, token, newPassword string, meta domain.RequestMeta) error
	Logout(ctx context.Context, actor Actor) error
	LogoutAll(ctx context.Context, actor Actor) error
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
	// ValidateSession fails with domain.ErrSessionRevoked when version is stale.
	ValidateSession(ctx context.Context, userID string, version int) error
}
