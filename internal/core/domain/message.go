package domain

import (
	"errors"
	"time"
)

const MaxMessageLength = 2000

var (
	ErrEmptyMessage         = errors.New("message cannot be empty")
	ErrMessageTooLong       = errors.New("message is too long")
	ErrMessageToSelf        = errors.New("cannot send a message to yourself")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Message is a single chat message between two users.
type Message struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Conversation links exactly two participants and their message ids.
type Conversation struct {
	ID            string    `json:"_id"`
	Participants  []string  `json:"participants"`
	MessageIDs    []string  `json:"messages"`
	LastMessageID string    `json:"lastMessage,omitempty"`
	HasUnread     bool      `json:"hasUnread"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}
