package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Server to client events.
const (
	EventNewMessage      = "newMessage"
	EventUnreadMessages  = "updateUnreadMessages"
	EventNewNotification = "newNotification"
	EventOnlineUsers     = "getOnlineUsers"
)

// Client to server events.
const (
	EventSubscribeNotifications = "subscribeToNotifications"
	EventNotificationRead       = "notificationRead"
	EventSubscribed             = "subscribed"
)

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outgoing struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// NotificationReader marks a notification as read on behalf of a user.
type NotificationReader interface {
	MarkRead(ctx context.Context, userID, id string) error
}

// Hub tracks live connections by user id. A user may hold several
// connections (tabs); events are fanned out to all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}

	notifications NotificationReader
	log           zerolog.Logger

	// OnConnectionsChanged, when set, receives the live connection count.
	OnConnectionsChanged func(n int)
}

func NewHub(notifications NotificationReader, log zerolog.Logger) *Hub {
	return &Hub{
		clients:       make(map[string]map[*Client]struct{}),
		notifications: notifications,
		log:           log,
	}
}

// SetNotificationReader wires the notification service after construction;
// the service itself depends on the hub as its emitter.
func (h *Hub) SetNotificationReader(r NotificationReader) {
	h.mu.Lock()
	h.notifications = r
	h.mu.Unlock()
}

// Serve registers conn for userID and blocks until the connection closes.
func (h *Hub) Serve(conn *websocket.Conn, userID string) {
	c := newClient(h, conn, userID)
	h.register(c)
	go c.writePump()
	c.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	n := h.connectionsLocked()
	h.mu.Unlock()

	h.log.Debug().Str("user_id", c.userID).Str("client_id", c.id).Msg("realtime client connected")
	h.connectionsChanged(n)
	h.broadcastOnline()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	n := h.connectionsLocked()
	h.mu.Unlock()

	h.log.Debug().Str("user_id", c.userID).Str("client_id", c.id).Msg("realtime client disconnected")
	h.connectionsChanged(n)
	h.broadcastOnline()
}

// EmitToUser pushes event to every connection of userID. Offline users are
// skipped silently.
func (h *Hub) EmitToUser(userID, event string, data any) {
	payload, err := json.Marshal(outgoing{Event: event, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to encode realtime event")
		return
	}

	h.mu.RLock()
	var slow []*Client
	for c := range h.clients[userID] {
		if !c.enqueue(payload) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	h.drop(slow)
}

// Broadcast pushes event to every connection.
func (h *Hub) Broadcast(event string, data any) {
	payload, err := json.Marshal(outgoing{Event: event, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to encode realtime event")
		return
	}

	h.mu.RLock()
	var slow []*Client
	for _, set := range h.clients {
		for c := range set {
			if !c.enqueue(payload) {
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	h.drop(slow)
}

// OnlineUsers returns the ids of users with at least one live connection.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (h *Hub) broadcastOnline() {
	h.Broadcast(EventOnlineUsers, h.OnlineUsers())
}

func (h *Hub) drop(slow []*Client) {
	for _, c := range slow {
		h.log.Warn().Str("user_id", c.userID).Str("client_id", c.id).Msg("dropping slow realtime client")
		h.unregister(c)
	}
}

func (h *Hub) connectionsLocked() int {
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

func (h *Hub) connectionsChanged(n int) {
	if h.OnConnectionsChanged != nil {
		h.OnConnectionsChanged(n)
	}
}

func (h *Hub) handle(c *Client, env Envelope) {
	switch env.Event {
	case EventSubscribeNotifications:
		c.hub.EmitToUser(c.userID, EventSubscribed, map[string]string{"userId": c.userID})
	case EventNotificationRead:
		id := notificationID(env.Data)
		if id == "" {
			return
		}
		h.mu.RLock()
		reader := h.notifications
		h.mu.RUnlock()
		if reader == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if err := reader.MarkRead(ctx, c.userID, id); err != nil {
			h.log.Warn().Err(err).Str("user_id", c.userID).Str("notification_id", id).Msg("failed to mark notification read")
		}
	default:
		h.log.Debug().Str("event", env.Event).Msg("ignoring unknown realtime event")
	}
}

// notificationID accepts either a bare id string or {"notificationId": "..."}.
func notificationID(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		NotificationID string `json:"notificationId"`
		ID             string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	if obj.NotificationID != "" {
		return obj.NotificationID
	}
	return obj.ID
}
