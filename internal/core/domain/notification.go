package domain

import (
	"errors"
	"time"
)

const (
	NotificationBookStatus = "book_status"
	NotificationMessage    = "message"
	NotificationSystem     = "system"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Notification is an in-app message shown to a single user.
type Notification struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	BookID    string    `json:"bookId,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}
