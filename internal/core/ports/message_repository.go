package ports

import (
	"context"

	"github.com/revivereads/marketplace/internal/core/domain"
)

// ConversationRepository persists two-party conversations.
type ConversationRepository interface {
	// FindBetween returns domain.ErrConversationNotFound when a and b never talked.
	FindBetween(ctx context.Context, a, b string) (*domain.Conversation, error)
	// FindOrCreate atomically returns the single conversation between a and b.
	FindOrCreate(ctx context.Context, a, b string) (*domain.Conversation, error)
	// AppendMessage pushes messageID, sets it as last message and flags unread.
	AppendMessage(ctx context.Context, conversationID, messageID string) error
	ClearUnread(ctx context.Context, conversationID string) error
	ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error)
}

// MessageRepository persists chat messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	// FindByIDs returns messages in chronological order.
	FindByIDs(ctx context.Context, ids []string) ([]*domain.Message, error)
	// MarkRead flags every unread message from senderID to receiverID as read.
	MarkRead(ctx context.Context, senderID, receiverID string) (int64, error)
	CountUnread(ctx context.Context, receiverID string) (int64, error)
}
