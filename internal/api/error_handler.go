package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/revivereads/marketplace/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

type errorMapping struct {
	target error
	code   int
	// detailed responses use err.Error() so wrapped context reaches the client.
	detailed bool
}

var domainErrors = []errorMapping{
	{target: domain.ErrInvalidID, code: http.StatusBadRequest},
	{target: domain.ErrWeakPassword, code: http.StatusBadRequest},
	{target: domain.ErrInvalidGenre, code: http.StatusBadRequest},
	{target: domain.ErrInvalidCondition, code: http.StatusBadRequest},
	{target: domain.ErrInvalidPrice, code: http.StatusBadRequest},
	{target: domain.ErrInvalidReview, code: http.StatusBadRequest},
	{target: domain.ErrTooManyImages, code: http.StatusBadRequest, detailed: true},
	{target: domain.ErrUnsupportedImage, code: http.StatusBadRequest, detailed: true},
	{target: domain.ErrBookAlreadySold, code: http.StatusBadRequest},
	{target: domain.ErrEmptyMessage, code: http.StatusBadRequest},
	{target: domain.ErrMessageTooLong, code: http.StatusBadRequest},
	{target: domain.ErrMessageToSelf, code: http.StatusBadRequest},
	{target: domain.ErrInvalidStatus, code: http.StatusBadRequest},
	{target: domain.ErrAlreadyFavorite, code: http.StatusBadRequest},
	{target: domain.ErrNotFavorite, code: http.StatusBadRequest},
	{target: domain.ErrInvalidResetToken, code: http.StatusBadRequest},
	{target: domain.ErrOTPNotFound, code: http.StatusBadRequest},
	{target: domain.ErrOTPExpired, code: http.StatusBadRequest},
	{target: domain.ErrOTPInvalid, code: http.StatusBadRequest},

	{target: domain.ErrInvalidCredentials, code: http.StatusUnauthorized},
	{target: domain.ErrSessionRevoked, code: http.StatusUnauthorized},

	{target: domain.ErrForbidden, code: http.StatusForbidden},

	{target: domain.ErrUserNotFound, code: http.StatusNotFound},
	{target: domain.ErrBookNotFound, code: http.StatusNotFound},
	{target: domain.ErrConversationNotFound, code: http.StatusNotFound},
	{target: domain.ErrNotificationNotFound, code: http.StatusNotFound},

	{target: domain.ErrEmailExists, code: http.StatusConflict},
	{target: domain.ErrAccountLocked, code: http.StatusLocked, detailed: true},
	{target: domain.ErrOTPRateLimited, code: http.StatusTooManyRequests},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			if m.detailed {
				return m.code, err.Error()
			}
			return m.code, m.target.Error()
		}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
