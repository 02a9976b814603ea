package ports

import (
	"context"

	"github.com/revivereads/marketplace/internal/core/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	// MarkRead returns domain.ErrNotificationNotFound when id does not belong to userID.
	MarkRead(ctx context.Context, userID, id string) error
}
