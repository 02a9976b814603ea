package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

// RBAC enforces role-based access control. Denied attempts are recorded as
// UNAUTHORIZED_ACCESS when recorder is not nil.
func RBAC(recorder ports.ActivityRecorder, allowedRoles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(ContextRole).(string)
			if _, ok := allowed[role]; ok {
				return next(c)
			}

			if recorder != nil {
				userID, _ := c.Get(ContextUserID).(string)
				email, _ := c.Get(ContextEmail).(string)
				recorder.Record(c.Request().Context(), domain.ActivityLog{
					UserID:       userID,
					UserEmail:    email,
					UserRole:     role,
					Action:       domain.ActionUnauthorized,
					ResourceType: domain.ResourceAuth,
					Status:       domain.OutcomeFailure,
					Severity:     domain.SeverityHigh,
					IPAddress:    c.RealIP(),
					UserAgent:    c.Request().UserAgent(),
					Details:      c.Request().Method + " " + c.Path(),
				})
			}
			return c.JSON(http.StatusForbidden, map[string]string{"error": "access denied, admin privileges required"})
		}
	}
}

// AdminOnly is RBAC restricted to administrators.
func AdminOnly(recorder ports.ActivityRecorder) echo.MiddlewareFunc {
	return RBAC(recorder, domain.RoleAdmin)
}
