package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/revivereads/marketplace/internal/api/metrics"
	"github.com/revivereads/marketplace/internal/core/ports"
)

type MessageHandler struct {
	messages ports.MessageService
}

func NewMessageHandler(messages ports.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type sendMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

type unreadResponse struct {
	UnreadCount int64 `json:"unreadCount"`
}

// Send delivers a chat message to the user in the path.
//
// @Summary      Send a message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string              true  "Receiver id"
// @Param        body  body      sendMessageRequest  true  "Message text"
// @Success      201   {object}  domain.Message
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/messages/send/{id} [post]
func (h *MessageHandler) Send(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	// empty and oversized text are rejected by the service with domain errors
	msg, err := h.messages.Send(c.Request().Context(), actor.ID, c.Param("id"), req.Message)
	if err != nil {
		return err
	}

	metrics.MessagesSentTotal.Inc()
	return c.JSON(http.StatusCreated, msg)
}

// Conversation returns the thread with the user in the path and marks it read.
//
// @Summary      Get conversation
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Other user id"
// @Success      200  {array}   domain.Message
// @Router       /api/messages/{id} [get]
func (h *MessageHandler) Conversation(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	msgs, err := h.messages.Conversation(c.Request().Context(), actor.ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}

// Unread counts unread messages addressed to the caller.
//
// @Summary      Unread message count
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  unreadResponse
// @Router       /api/messages/unread [get]
func (h *MessageHandler) Unread(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	n, err := h.messages.UnreadCount(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, unreadResponse{UnreadCount: n})
}
