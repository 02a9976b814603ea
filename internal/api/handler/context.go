package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/revivereads/marketplace/internal/api/middleware"
	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

// messageResponse is the envelope for mutations that return no resource.
type messageResponse struct {
	Message string `json:"message"`
}

// actorFromContext extracts the identity injected by the Auth middleware.
// A missing user id means the middleware did not run; reject with 401.
func actorFromContext(c echo.Context) (ports.Actor, error) {
	id, _ := c.Get(middleware.ContextUserID).(string)
	if id == "" {
		return ports.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	email, _ := c.Get(middleware.ContextEmail).(string)
	role, _ := c.Get(middleware.ContextRole).(string)
	return ports.Actor{ID: id, Email: email, Role: role, Meta: requestMeta(c)}, nil
}

func requestMeta(c echo.Context) domain.RequestMeta {
	return domain.RequestMeta{IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

// bindAndValidate binds the request body and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a number")
	}
	return n, nil
}

// queryTime parses an optional RFC 3339 or YYYY-MM-DD query parameter.
// Date-only end bounds cover the whole day.
func queryTime(c echo.Context, name string, endOfDay bool) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
