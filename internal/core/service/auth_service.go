package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

const (
	minPasswordLength = 6
	otpDigits         = 6
	resetPurpose      = "reset"
)

// AuthConfig holds the tunables of the sign-in flow.
type AuthConfig struct {
	JWTSecret       string
	TokenTTL        time.Duration
	OTPTTL          time.Duration
	ResetTTL        time.Duration
	MaxFailedLogins int
	MaxOTPAttempts  int
	LockoutDuration time.Duration
	FrontendURL     string
}

func (c *AuthConfig) applyDefaults() {
	if c.TokenTTL <= 0 {
		c.TokenTTL = 72 * time.Hour
	}
	if c.OTPTTL <= 0 {
		c.OTPTTL = 5 * time.Minute
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = 15 * time.Minute
	}
	if c.MaxFailedLogins <= 0 {
		c.MaxFailedLogins = 5
	}
	if c.MaxOTPAttempts <= 0 {
		c.MaxOTPAttempts = 5
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = 15 * time.Minute
	}
}

// AuthService implements registration, two-factor login and password recovery.
type AuthService struct {
	users    ports.UserRepository
	activity ports.ActivityRecorder
	mail     ports.MailQueue
	throttle ports.OTPThrottle
	cfg      AuthConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(
	users ports.UserRepository,
	activity ports.ActivityRecorder,
	mail ports.MailQueue,
	throttle ports.OTPThrottle,
	cfg AuthConfig,
	log zerolog.Logger,
) *AuthService {
	cfg.applyDefaults()
	return &AuthService{
		users:    users,
		activity: activity,
		mail:     mail,
		throttle: throttle,
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) SignUp(ctx context.Context, in ports.SignUpInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if name == "" || email == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if len(in.Password) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		Name:                 name,
		Email:                email,
		Phone:                strings.TrimSpace(in.Phone),
		Address:              strings.TrimSpace(in.Address),
		PasswordHash:         string(hash),
		Avatar:               domain.DefaultAvatar,
		Role:                 domain.RoleUser,
		BookListings:         []string{},
		Favorites:            []string{},
		NotificationsEnabled: true,
		Status:               domain.StatusAway,
		LastActivity:         now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, userActivity(created, domain.ActionUserSignup, domain.ResourceUser, domain.OutcomeSuccess, domain.SeverityLow, in.Meta, ""))
	if msg, err := welcomeEmail(created); err == nil {
		s.mail.Enqueue(msg)
	} else {
		s.log.Warn().Err(err).Str("user_id", created.ID).Msg("failed to render welcome email")
	}
	s.log.Info().Str("user_id", created.ID).Msg("user registered")
	return created, nil
}

// SignIn checks the password and mails a one-time code. It never returns a
// session token: that happens in VerifyOTP.
func (s *AuthService) SignIn(ctx context.Context, email, password string, meta domain.RequestMeta) (*ports.SignInResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.activity.Record(ctx, domain.ActivityLog{
			UserEmail:    email,
			Action:       domain.ActionLoginFailed,
			ResourceType: domain.ResourceAuth,
			Status:       domain.OutcomeFailure,
			Severity:     domain.SeverityMedium,
			IPAddress:    meta.IP,
			UserAgent:    meta.UserAgent,
			Details:      "unknown email",
		})
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if user.IsLocked(now) {
		s.activity.Record(ctx, userActivity(user, domain.ActionLoginFailed, domain.ResourceAuth, domain.OutcomeFailure, domain.SeverityHigh, meta, "account locked"))
		return nil, lockedError(user.LockoutUntil.Sub(now))
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, s.registerFailedLogin(ctx, user, meta)
	}

	allowed, err := s.throttle.Allow(ctx, email)
	if err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("otp throttle check failed, sending anyway")
	} else if !allowed {
		return nil, domain.ErrOTPRateLimited
	}

	code, err := generateOTP()
	if err != nil {
		return nil, fmt.Errorf("sign in: generate otp: %w", err)
	}
	otpHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	expires := now.Add(s.cfg.OTPTTL)
	user.FailedLoginAttempts = 0
	user.LockoutUntil = nil
	user.OTPHash = string(otpHash)
	user.OTPExpires = &expires
	user.OTPAttempts = 0
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	mail, err := otpEmail(user, code, s.cfg.OTPTTL)
	if err != nil {
		return nil, fmt.Errorf("sign in: render otp email: %w", err)
	}
	s.mail.Enqueue(mail)
	s.activity.Record(ctx, userActivity(user, domain.ActionOTPSent, domain.ResourceAuth, domain.OutcomeSuccess, domain.SeverityLow, meta, ""))

	return &ports.SignInResult{
		TwoFactorRequired: true,
		User:              user.Summary(),
		OTPExpiresIn:      s.cfg.OTPTTL,
	}, nil
}

func (s *AuthService) registerFailedLogin(ctx context.Context, user *domain.User, meta domain.RequestMeta) error {
	now := s.now()
	user.FailedLoginAttempts++
	user.UpdatedAt = now

	locked := user.FailedLoginAttempts >= s.cfg.MaxFailedLogins
	if locked {
		until := now.Add(s.cfg.LockoutDuration)
		user.LockoutUntil = &until
		user.FailedLoginAttempts = 0
	}
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	if locked {
		s.log.Warn().Str("user_id", user.ID).Msg("account locked after repeated failed logins")
		s.activity.Record(ctx, userActivity(user, domain.ActionAccountLocked, domain.ResourceAuth, domain.OutcomeFailure, domain.SeverityHigh, meta,
			fmt.Sprintf("locked after %d failed attempts", s.cfg.MaxFailedLogins)))
		return lockedError(s.cfg.LockoutDuration)
	}
	s.activity.Record(ctx, userActivity(user, domain.ActionLoginFailed, domain.ResourceAuth, domain.OutcomeFailure, domain.SeverityMedium, meta,
		fmt.Sprintf("attempt %d of %d", user.FailedLoginAttempts, s.cfg.MaxFailedLogins)))
	return domain.ErrInvalidCredentials
}

func lockedError(remaining time.Duration) error {
	minutes := int(math.Ceil(remaining.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Errorf("%w, try again in %d minutes", domain.ErrAccountLocked, minutes)
}

func (s *AuthService) VerifyOTP(ctx context.Context, email, otp string, meta domain.RequestMeta) (*ports.LoginResult, error) {
	email = normalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrOTPNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.OTPHash == "" || user.OTPExpires == nil {
		return nil, domain.ErrOTPNotFound
	}

	now := s.now()
	if !user.OTPExpires.After(now) {
		clearOTP(user)
		user.UpdatedAt = now
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		return nil, domain.ErrOTPExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(user.OTPHash), []byte(strings.TrimSpace(otp))) != nil {
		user.OTPAttempts++
		exhausted := user.OTPAttempts >= s.cfg.MaxOTPAttempts
		if exhausted {
			clearOTP(user)
		}
		user.UpdatedAt = now
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		s.activity.Record(ctx, userActivity(user, domain.ActionOTPFailed, domain.ResourceAuth, domain.OutcomeFailure, domain.SeverityMedium, meta, ""))
		return nil, domain.ErrOTPInvalid
	}

	clearOTP(user)
	user.Status = domain.StatusActive
	user.LastActivity = now
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	token, expires, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}
	s.activity.Record(ctx, userActivity(user, domain.ActionLoginSuccess, domain.ResourceAuth, domain.OutcomeSuccess, domain.SeverityLow, meta, ""))

	return &ports.LoginResult{Token: token, ExpiresAt: expires, User: user}, nil
}

func clearOTP(u *domain.User) {
	u.OTPHash = ""
	u.OTPExpires = nil
	u.OTPAttempts = 0
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string, meta domain.RequestMeta) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	now := s.now()
	expires := now.Add(s.cfg.ResetTTL)
	claims := jwt.MapClaims{
		"id":      user.ID,
		"purpose": resetPurpose,
		"exp":     expires.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return err
	}

	user.ResetTokenHash = hashToken(token)
	user.ResetTokenExpires = &expires
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	link := strings.TrimRight(s.cfg.FrontendURL, "/") + "/reset-password/" + token
	mail, err := resetEmail(user, link, s.cfg.ResetTTL)
	if err != nil {
		return fmt.Errorf("forgot password: render email: %w", err)
	}
	s.mail.Enqueue(mail)
	s.activity.Record(ctx, userActivity(user, domain.ActionPasswordResetReq, domain.ResourceAuth, domain.OutcomeSuccess, domain.SeverityMedium, meta, ""))
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string, meta domain.RequestMeta) error {
	if len(newPassword) < minPasswordLength {
		return domain.ErrWeakPassword
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return domain.ErrInvalidResetToken
	}
	if purpose, _ := claims["purpose"].(string); purpose != resetPurpose {
		return domain.ErrInvalidResetToken
	}
	userID, _ := claims["id"].(string)
	if userID == "" {
		return domain.ErrInvalidResetToken
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrInvalidID) {
		return domain.ErrInvalidResetToken
	}
	if err != nil {
		return err
	}

	now := s.now()
	if user.ResetTokenHash == "" || user.ResetTokenHash != hashToken(token) ||
		user.ResetTokenExpires == nil || !user.ResetTokenExpires.After(now) {
		return domain.ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	user.ResetTokenHash = ""
	user.ResetTokenExpires = nil
	user.FailedLoginAttempts = 0
	user.LockoutUntil = nil
	user.SessionVersion++
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.activity.Record(ctx, userActivity(user, domain.ActionPasswordReset, domain.ResourceAuth, domain.OutcomeSuccess, domain.SeverityMedium, meta, ""))
	return nil
}

func (s *AuthService) Logout(ctx context.Context, actor ports.Actor) error {
	user, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	now := s.now()
	user.Status = domain.StatusOffline
	user.LastActivity = now
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.activity.Record(ctx, userActivity(user, domain.ActionLogout, domain.ResourceAuth, domain.OutcomeSuccess, domain.SeverityLow, actor.Meta, ""))
	return nil
}

// LogoutAll revokes every token issued to the user so far.
func (s *AuthService) LogoutAll(ctx context.Context, actor ports.Actor) error {
	user, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	now := s.now()
	user.SessionVersion++
	user.Status = domain.StatusOffline
	user.LastActivity = now
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.activity.Record(ctx, userActivity(user, domain.ActionLogoutAll, domain.ResourceAuth, domain.OutcomeSuccess, domain.SeverityMedium, actor.Meta, ""))
	return nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *AuthService) ValidateSession(ctx context.Context, userID string, version int) error {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrInvalidID) {
		return domain.ErrSessionRevoked
	}
	if err != nil {
		return err
	}
	if user.SessionVersion != version {
		return domain.ErrSessionRevoked
	}
	return nil
}

func (s *AuthService) generateToken(user *domain.User) (string, time.Time, error) {
	expires := s.now().Add(s.cfg.TokenTTL)
	claims := jwt.MapClaims{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
		"sv":    user.SessionVersion,
		"exp":   expires.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.cfg.JWTSecret))
	return signed, expires, err
}

// generateOTP returns a zero-padded numeric code.
func generateOTP() (string, error) {
	max := big.NewInt(int64(math.Pow10(otpDigits)))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
