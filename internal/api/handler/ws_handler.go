package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/revivereads/marketplace/internal/api/middleware"
)

// RealtimeHub serves an upgraded connection for a user until it closes.
type RealtimeHub interface {
	Serve(conn *websocket.Conn, userID string)
}

// WSHandler upgrades authenticated requests to websocket connections.
type WSHandler struct {
	hub       RealtimeHub
	sessions  middleware.SessionValidator
	jwtSecret string
	upgrader  websocket.Upgrader
	log       zerolog.Logger
}

func NewWSHandler(hub RealtimeHub, sessions middleware.SessionValidator, jwtSecret string, allowedOrigins []string, log zerolog.Logger) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &WSHandler{
		hub:       hub,
		sessions:  sessions,
		jwtSecret: jwtSecret,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[strings.TrimRight(origin, "/")]
				return ok
			},
		},
	}
}

// Connect authenticates with the cookie, bearer header or ?token= and then
// hands the connection to the hub.
//
// @Summary      Realtime websocket
// @Tags         realtime
// @Param        token  query  string  false  "Session token"
// @Success      101
// @Failure      401  {object}  map[string]string
// @Router       /ws [get]
func (h *WSHandler) Connect(c echo.Context) error {
	raw := middleware.TokenFromRequest(c, true)
	if raw == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no token provided")
	}
	claims, err := middleware.ParseToken(raw, h.jwtSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	if err := h.sessions.ValidateSession(c.Request().Context(), claims.UserID, claims.SessionVersion); err != nil {
		return err
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}
	h.hub.Serve(conn, claims.UserID)
	return nil
}
