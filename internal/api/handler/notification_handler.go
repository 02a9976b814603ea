package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/revivereads/marketplace/internal/core/ports"
)

type NotificationHandler struct {
	notifications ports.NotificationService
}

func NewNotificationHandler(notifications ports.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

type markAllReadResponse struct {
	Message  string `json:"message"`
	Modified int64  `json:"modified"`
}

// List returns the caller's notifications, newest first.
//
// @Summary      List notifications
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  domain.Notification
// @Router       /api/notifications [get]
func (h *NotificationHandler) List(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.notifications.List(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// MarkAllRead marks every notification of the caller as read.
//
// @Summary      Mark all notifications read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  markAllReadResponse
// @Router       /api/notifications/mark-read [put]
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	n, err := h.notifications.MarkAllRead(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, markAllReadResponse{Message: "All notifications marked as read", Modified: n})
}

// MarkRead marks one notification as read.
//
// @Summary      Mark notification read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Notification id"
// @Success      200  {object}  messageResponse
// @Failure      404  {object}  map[string]string
// @Router       /api/notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.Request().Context(), actor.ID, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Notification marked as read"})
}
