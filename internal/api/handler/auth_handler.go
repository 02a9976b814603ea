package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/revivereads/marketplace/internal/api/metrics"
	"github.com/revivereads/marketplace/internal/api/middleware"
	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	// Secure marks the cookie HTTPS-only and allows cross-site sends.
	Secure bool
}

type AuthHandler struct {
	authService ports.AuthService
	cookie      CookieConfig
}

func NewAuthHandler(authService ports.AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{authService: authService, cookie: cookie}
}

type signUpRequest struct {
	Name     string `json:"name" form:"name" validate:"required,max=100"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
	Address  string `json:"address" form:"address" validate:"max=300"`
	Phone    string `json:"phone" form:"phone" validate:"max=30"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type signUpResponse struct {
	Message string       `json:"message"`
	Data    *domain.User `json:"data"`
}

type pendingUser struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

type signInResponse struct {
	Message           string      `json:"message"`
	User              pendingUser `json:"user"`
	TwoFactorRequired bool        `json:"twoFactorRequired"`
	OTPExpiresIn      int         `json:"otpExpiresIn"`
}

type sessionUser struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Token  string `json:"token"`
}

type loginResponse struct {
	Message   string      `json:"message"`
	User      sessionUser `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SignUp creates a new account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signUpRequest  true  "Registration details"
// @Success      201   {object}  signUpResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/user/sign-up [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.SignUp(c.Request().Context(), ports.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Address:  req.Address,
		Phone:    req.Phone,
		Meta:     requestMeta(c),
	})
	if err != nil {
		return err
	}

	metrics.UsersRegisteredTotal.Inc()
	return c.JSON(http.StatusCreated, signUpResponse{Message: "User saved successfully", Data: user})
}

// SignIn checks the password and mails a one-time code.
//
// @Summary      Sign in (first factor)
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Credentials"
// @Success      200   {object}  signInResponse
// @Failure      401   {object}  map[string]string
// @Failure      423   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /api/user/sign-in [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.SignIn(c.Request().Context(), req.Email, req.Password, requestMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountLocked):
			metrics.LoginsTotal.WithLabelValues("locked").Inc()
		case errors.Is(err, domain.ErrInvalidCredentials):
			metrics.LoginsTotal.WithLabelValues("failed").Inc()
		}
		return err
	}

	metrics.LoginsTotal.WithLabelValues("otp_sent").Inc()
	return c.JSON(http.StatusOK, signInResponse{
		Message: "OTP sent to your email. Please verify to continue.",
		User: pendingUser{
			ID:    res.User.ID,
			Role:  res.User.Role,
			Email: res.User.Email,
		},
		TwoFactorRequired: res.TwoFactorRequired,
		OTPExpiresIn:      int(res.OTPExpiresIn.Seconds()),
	})
}

// VerifyOTP completes sign-in and issues the session token.
//
// @Summary      Verify one-time code (second factor)
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      verifyOTPRequest  true  "Email and code"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]string
// @Router       /api/user/verify-otp [post]
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req verifyOTPRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.VerifyOTP(c.Request().Context(), req.Email, req.OTP, requestMeta(c))
	if err != nil {
		if errors.Is(err, domain.ErrOTPInvalid) {
			metrics.LoginsTotal.WithLabelValues("otp_invalid").Inc()
		}
		return err
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	h.setSessionCookie(c, res.Token, res.ExpiresAt)
	return c.JSON(http.StatusOK, loginResponse{
		Message: "Login successful",
		User: sessionUser{
			ID:     res.User.ID,
			Role:   res.User.Role,
			Name:   res.User.Name,
			Email:  res.User.Email,
			Avatar: res.User.Avatar,
			Token:  res.Token,
		},
		ExpiresAt: res.ExpiresAt,
	})
}

// ForgotPassword mails a password reset link.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Account email"
// @Success      200   {object}  statusResponse
// @Failure      404   {object}  map[string]string
// @Router       /api/user/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.ForgotPassword(c.Request().Context(), req.Email, requestMeta(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Success: true, Message: "Password reset link sent to email"})
}

// ResetPassword sets a new password from a reset token and revokes every
// existing session.
//
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Reset token and new password"
// @Success      200   {object}  statusResponse
// @Failure      400   {object}  map[string]string
// @Router       /api/user/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.ResetPassword(c.Request().Context(), req.Token, req.NewPassword, requestMeta(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Success: true, Message: "Password reset successful"})
}

// Logout marks the caller offline and clears the session cookie.
//
// @Summary      Log out
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  messageResponse
// @Router       /api/user/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), actor); err != nil {
		return err
	}
	h.clearSessionCookie(c)
	return c.JSON(http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// LogoutAll revokes every session of the caller.
//
// @Summary      Log out everywhere
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  messageResponse
// @Router       /api/user/logout-all [post]
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.authService.LogoutAll(c.Request().Context(), actor); err != nil {
		return err
	}
	h.clearSessionCookie(c)
	return c.JSON(http.StatusOK, messageResponse{Message: "All sessions revoked"})
}

// Me returns the authenticated user.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.User
// @Router       /api/user/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	user, err := h.authService.CurrentUser(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookie(c echo.Context, token string, expires time.Time) {
	c.SetCookie(h.newCookie(token, expires))
}

func (h *AuthHandler) clearSessionCookie(c echo.Context) {
	cookie := h.newCookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	c.SetCookie(cookie)
}

func (h *AuthHandler) newCookie(value string, expires time.Time) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if h.cookie.Secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: sameSite,
	}
}
