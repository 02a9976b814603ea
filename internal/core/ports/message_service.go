package ports

import (
	"context"

	"github.com/revivereads/marketplace/internal/core/domain"
)

type MessageService interface {
	Send(ctx context.Context, senderID, receiverID, text string) (*domain.Message, error)
	// Conversation returns the thread with otherID and marks it read for userID.
	Conversation(ctx context.Context, userID, otherID string) ([]*domain.Message, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

type NotificationService interface {
	List(ctx context.Context, userID string) ([]*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	Notify(ctx context.Context, userID, kind, message, bookID string) (*domain.Notification, error)
}
