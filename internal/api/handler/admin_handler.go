package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/revivereads/marketplace/internal/core/ports"
)

// AdminHandler serves the admin dashboard. All routes are admin-only.
type AdminHandler struct {
	admin ports.AdminService
}

func NewAdminHandler(admin ports.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Summary feeds the dashboard header cards; also served as dashboard-summary.
//
// @Summary      Dashboard summary
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ports.AdminSummary
// @Router       /api/admin/summary [get]
func (h *AdminHandler) Summary(c echo.Context) error {
	summary, err := h.admin.Summary(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

// @Summary      Security metrics
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ports.SecurityMetrics
// @Router       /api/admin/security-metrics [get]
func (h *AdminHandler) SecurityMetrics(c echo.Context) error {
	m, err := h.admin.SecurityMetrics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

// @Summary      Weekly user activity
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  ports.BucketCount
// @Router       /api/admin/user-activity-stats [get]
func (h *AdminHandler) UserActivityStats(c echo.Context) error {
	stats, err := h.admin.UserActivityStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// @Summary      Weekly book listings
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  ports.BucketCount
// @Router       /api/admin/book-listings-stats [get]
func (h *AdminHandler) BookListingStats(c echo.Context) error {
	stats, err := h.admin.BookListingStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// @Summary      All users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  domain.User
// @Router       /api/admin/users [get]
func (h *AdminHandler) Users(c echo.Context) error {
	users, err := h.admin.Users(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// @Summary      Audit log
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page (1-based)"
// @Param        limit  query     int  false  "Page size"
// @Success      200    {object}  ports.AuditPage
// @Router       /api/admin/audit-logs [get]
func (h *AdminHandler) AuditLogs(c echo.Context) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	logs, err := h.admin.AuditLogs(c.Request().Context(), page, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, logs)
}
