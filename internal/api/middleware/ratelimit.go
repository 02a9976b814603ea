package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/revivereads/marketplace/internal/api/metrics"
	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

// Limiter decides whether key may proceed in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit throttles requests per client IP and route. The IP comes from the
// Echo instance's IPExtractor. Limiter errors let
// the request through so a Redis outage does not lock everyone out.
func RateLimit(limiter Limiter, recorder ports.ActivityRecorder, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			ok, err := limiter.Allow(c.Request().Context(), ip+":"+c.Path())
			if err != nil {
				log.Warn().Err(err).Str("ip", ip).Msg("rate limiter unavailable")
				return next(c)
			}
			if ok {
				return next(c)
			}

			metrics.RateLimitedTotal.WithLabelValues(c.Path()).Inc()
			if recorder != nil {
				recorder.Record(c.Request().Context(), domain.ActivityLog{
					Action:       domain.ActionRateLimitExceeded,
					ResourceType: domain.ResourceAuth,
					Status:       domain.OutcomeFailure,
					Severity:     domain.SeverityMedium,
					IPAddress:    ip,
					UserAgent:    c.Request().UserAgent(),
					Details:      c.Request().Method + " " + c.Path(),
				})
			}
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "too many requests, please try again later",
			})
		}
	}
}
