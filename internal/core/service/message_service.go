package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

type MessageService struct {
	users         ports.UserRepository
	conversations ports.ConversationRepository
	messages      ports.MessageRepository
	notifications ports.NotificationService
	realtime      ports.RealtimeEmitter
	log           zerolog.Logger
}

func NewMessageService(
	users ports.UserRepository,
	conversations ports.ConversationRepository,
	messages ports.MessageRepository,
	notifications ports.NotificationService,
	realtime ports.RealtimeEmitter,
	log zerolog.Logger,
) *MessageService {
	return &MessageService{
		users:         users,
		conversations: conversations,
		messages:      messages,
		notifications: notifications,
		realtime:      realtime,
		log:           log,
	}
}

func (s *MessageService) Send(ctx context.Context, senderID, receiverID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > domain.MaxMessageLength {
		return nil, domain.ErrMessageTooLong
	}
	if senderID == receiverID {
		return nil, domain.ErrMessageToSelf
	}

	sender, err := s.users.FindByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.users.FindByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}

	conv, err := s.conversations.FindOrCreate(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("send message: conversation: %w", err)
	}

	msg, err := s.messages.Create(ctx, &domain.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    text,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.conversations.AppendMessage(ctx, conv.ID, msg.ID); err != nil {
		return nil, fmt.Errorf("send message: append: %w", err)
	}

	s.realtime.EmitToUser(receiverID, EventNewMessage, msg)
	s.realtime.EmitToUser(receiverID, EventUnreadMessages, true)

	if receiver.NotificationsEnabled {
		note := fmt.Sprintf("New message from %s", sender.Name)
		if _, err := s.notifications.Notify(ctx, receiverID, domain.NotificationMessage, note, ""); err != nil {
			s.log.Warn().Err(err).Str("receiver_id", receiverID).Msg("failed to store message notification")
		}
	}
	return msg, nil
}

func (s *MessageService) Conversation(ctx context.Context, userID, otherID string) ([]*domain.Message, error) {
	conv, err := s.conversations.FindBetween(ctx, userID, otherID)
	if errors.Is(err, domain.ErrConversationNotFound) {
		return []*domain.Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.FindByIDs(ctx, conv.MessageIDs)
	if err != nil {
		return nil, err
	}

	marked, err := s.messages.MarkRead(ctx, otherID, userID)
	if err != nil {
		return nil, err
	}
	if marked > 0 || conv.HasUnread {
		if err := s.conversations.ClearUnread(ctx, conv.ID); err != nil {
			return nil, err
		}
		for _, m := range msgs {
			if m.SenderID == otherID && m.ReceiverID == userID {
				m.Read = true
			}
		}
	}
	s.realtime.EmitToUser(userID, EventUnreadMessages, false)

	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return msgs, nil
}

func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.messages.CountUnread(ctx, userID)
}
