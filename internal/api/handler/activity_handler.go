package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

// ActivityHandler serves the admin activity log views.
type ActivityHandler struct {
	activity ports.ActivityService
	now      func() time.Time
}

func NewActivityHandler(activity ports.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity, now: time.Now}
}

type cleanResponse struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

var csvHeader = []string{
	"Timestamp", "User Email", "User Role", "Action", "Resource Type",
	"Status", "Severity", "IP Address", "User Agent",
}

// dateRange reads startDate/endDate.
func dateRange(c echo.Context) (time.Time, time.Time, error) {
	from, err := queryTime(c, "startDate", false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryTime(c, "endDate", true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func pageParams(c echo.Context) (int, int, error) {
	page, err := queryInt(c, "page")
	if err != nil {
		return 0, 0, err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

// List returns filtered, sorted, paginated activity logs.
//
// @Summary      Activity logs
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Param        page          query     int     false  "Page (1-based)"
// @Param        limit         query     int     false  "Page size (max 200)"
// @Param        userId        query     string  false  "User id"
// @Param        userEmail     query     string  false  "Email contains"
// @Param        action        query     string  false  "Action"
// @Param        resourceType  query     string  false  "Resource type"
// @Param        status        query     string  false  "success or failure"
// @Param        severity      query     string  false  "low, medium, high or critical"
// @Param        ipAddress     query     string  false  "IP contains"
// @Param        startDate     query     string  false  "From date"
// @Param        endDate       query     string  false  "To date"
// @Param        sortBy        query     string  false  "Sort field"
// @Param        sortOrder     query     string  false  "asc or desc"
// @Success      200           {object}  ports.ActivityPage
// @Router       /api/activity-logs [get]
func (h *ActivityHandler) List(c echo.Context) error {
	page, limit, err := pageParams(c)
	if err != nil {
		return err
	}
	from, to, err := dateRange(c)
	if err != nil {
		return err
	}

	filter := ports.ActivityFilter{
		UserID:       c.QueryParam("userId"),
		UserEmail:    c.QueryParam("userEmail"),
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resourceType"),
		Status:       c.QueryParam("status"),
		IPAddress:    c.QueryParam("ipAddress"),
		From:         from,
		To:           to,
		SortBy:       c.QueryParam("sortBy"),
		SortDesc:     c.QueryParam("sortOrder") != "asc",
		Page:         page,
		Limit:        limit,
	}
	if sev := c.QueryParam("severity"); sev != "" {
		filter.Severities = []string{sev}
	}

	res, err := h.activity.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// ListForUser returns one user's activity, newest first.
//
// @Summary      Activity logs of a user
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string  true   "User id"
// @Param        page    query     int     false  "Page (1-based)"
// @Param        limit   query     int     false  "Page size"
// @Param        action  query     string  false  "Action"
// @Param        status  query     string  false  "success or failure"
// @Success      200     {object}  ports.ActivityPage
// @Router       /api/activity-logs/user/{userId} [get]
func (h *ActivityHandler) ListForUser(c echo.Context) error {
	page, limit, err := pageParams(c)
	if err != nil {
		return err
	}
	res, err := h.activity.ListForUser(c.Request().Context(), c.Param("userId"), ports.ActivityFilter{
		Action: c.QueryParam("action"),
		Status: c.QueryParam("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Stats aggregates activity over an optional date range.
//
// @Summary      Activity statistics
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Param        startDate  query     string  false  "From date"
// @Param        endDate    query     string  false  "To date"
// @Success      200        {object}  ports.ActivityStats
// @Router       /api/activity-logs/stats [get]
func (h *ActivityHandler) Stats(c echo.Context) error {
	from, to, err := dateRange(c)
	if err != nil {
		return err
	}
	stats, err := h.activity.Stats(c.Request().Context(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// SecurityEvents returns recent high and critical entries.
//
// @Summary      Recent security events
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Max entries (default 20)"
// @Success      200    {array}   domain.ActivityLog
// @Router       /api/activity-logs/security-events [get]
func (h *ActivityHandler) SecurityEvents(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	events, err := h.activity.SecurityEvents(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}

// Export downloads activity logs as a JSON or CSV attachment.
//
// @Summary      Export activity logs
// @Tags         activity
// @Produce      json
// @Produce      text/csv
// @Security     BearerAuth
// @Param        startDate  query  string  false  "From date"
// @Param        endDate    query  string  false  "To date"
// @Param        format     query  string  false  "json (default) or csv"
// @Success      200
// @Router       /api/activity-logs/export [get]
func (h *ActivityHandler) Export(c echo.Context) error {
	from, to, err := dateRange(c)
	if err != nil {
		return err
	}
	format := c.QueryParam("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		return echo.NewHTTPError(http.StatusBadRequest, "format must be json or csv")
	}

	logs, err := h.activity.Export(c.Request().Context(), from, to)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("activity-logs-%d.%s", h.now().UnixMilli(), format)
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+filename)
	if format == "json" {
		return c.JSON(http.StatusOK, logs)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return writeActivityCSV(c.Response(), logs)
}

func writeActivityCSV(w *echo.Response, logs []*domain.ActivityLog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, l := range logs {
		if err := cw.Write([]string{
			l.CreatedAt.UTC().Format(time.RFC3339),
			l.UserEmail,
			l.UserRole,
			l.Action,
			l.ResourceType,
			l.Status,
			l.Severity,
			l.IPAddress,
			l.UserAgent,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Clean deletes activity logs older than ?days (default 365).
//
// @Summary      Clean old activity logs
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Param        days  query     int  false  "Retention in days"
// @Success      200   {object}  cleanResponse
// @Router       /api/activity-logs/clean [delete]
func (h *ActivityHandler) Clean(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	days, err := queryInt(c, "days")
	if err != nil {
		return err
	}
	deleted, err := h.activity.Clean(c.Request().Context(), actor, days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cleanResponse{
		Message:      fmt.Sprintf("Cleaned %d old activity logs", deleted),
		DeletedCount: deleted,
	})
}
