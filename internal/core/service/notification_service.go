package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

// Realtime events emitted by the services.
const (
	EventNewMessage      = "newMessage"
	EventUnreadMessages  = "updateUnreadMessages"
	EventNewNotification = "newNotification"
)

type NotificationService struct {
	repo     ports.NotificationRepository
	realtime ports.RealtimeEmitter
	log      zerolog.Logger
}

func NewNotificationService(repo ports.NotificationRepository, realtime ports.RealtimeEmitter, log zerolog.Logger) *NotificationService {
	return &NotificationService{repo: repo, realtime: realtime, log: log}
}

func (s *NotificationService) List(ctx context.Context, userID string) ([]*domain.Notification, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.Notification{}
	}
	return items, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkRead(ctx, userID, id)
}

// Notify stores a notification and pushes it to the user's live connections.
func (s *NotificationService) Notify(ctx context.Context, userID, kind, message, bookID string) (*domain.Notification, error) {
	n, err := s.repo.Create(ctx, &domain.Notification{
		UserID:    userID,
		Type:      kind,
		Message:   message,
		BookID:    bookID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.realtime.EmitToUser(userID, EventNewNotification, n)
	s.log.Debug().Str("user_id", userID).Str("type", kind).Msg("notification sent")
	return n, nil
}
