package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Keys set on echo.Context by Auth.
const (
	ContextUserID         = "user_id"
	ContextEmail          = "email"
	ContextRole           = "role"
	ContextSessionVersion = "sv"
)

// TokenCookie carries the session token for browser clients.
const TokenCookie = "token"

// SessionValidator rejects tokens whose session version has been bumped.
type SessionValidator interface {
	ValidateSession(ctx context.Context, userID string, version int) error
}

// Claims is the identity carried by a session token.
type Claims struct {
	UserID         string
	Email          string
	Role           string
	SessionVersion int
}

var errInvalidToken = errors.New("invalid token")

// ParseToken verifies an HS256 session token and extracts its claims.
func ParseToken(raw, jwtSecret string) (*Claims, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !tkn.Valid {
		return nil, errInvalidToken
	}

	id, _ := claims["id"].(string)
	if id == "" {
		return nil, errInvalidToken
	}
	// Reset tokens share the secret but must never authenticate requests.
	if purpose, _ := claims["purpose"].(string); purpose != "" {
		return nil, errInvalidToken
	}
	out := &Claims{UserID: id}
	out.Email, _ = claims["email"].(string)
	out.Role, _ = claims["role"].(string)
	// JSON numbers decode as float64.
	if sv, ok := claims["sv"].(float64); ok {
		out.SessionVersion = int(sv)
	}
	return out, nil
}

// TokenFromRequest looks for the session token in the cookie, then the
// Authorization header, then (when allowQuery is set) the token query param.
func TokenFromRequest(c echo.Context, allowQuery bool) string {
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if allowQuery {
		return c.QueryParam("token")
	}
	return ""
}

// Auth validates the session token, checks it has not been revoked and
// injects the caller identity into context.
func Auth(jwtSecret string, sessions SessionValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := TokenFromRequest(c, false)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "no token provided")
			}

			claims, err := ParseToken(raw, jwtSecret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if sessions != nil {
				if err := sessions.ValidateSession(c.Request().Context(), claims.UserID, claims.SessionVersion); err != nil {
					return err
				}
			}

			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextEmail, claims.Email)
			c.Set(ContextRole, claims.Role)
			c.Set(ContextSessionVersion, claims.SessionVersion)

			return next(c)
		}
	}
}
