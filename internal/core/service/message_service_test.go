package service

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/revivereads/marketplace/internal/core/domain"
)

type messageFixture struct {
	svc     *MessageService
	users   *stubUserRepo
	convs   *stubConversationRepo
	msgs    *stubMessageRepo
	notes   *stubNotificationRepo
	emitter *stubEmitter
}

func newMessageFixture() *messageFixture {
	f := &messageFixture{
		users:   newStubUserRepo(),
		convs:   &stubConversationRepo{},
		msgs:    &stubMessageRepo{},
		notes:   &stubNotificationRepo{},
		emitter: &stubEmitter{},
	}
	notifications := NewNotificationService(f.notes, f.emitter, zerolog.Nop())
	f.svc = NewMessageService(f.users, f.convs, f.msgs, notifications, f.emitter, zerolog.Nop())
	return f
}

func (f *messageFixture) addUser(name string, notify bool) string {
	u, _ := f.users.Create(context.Background(), &domain.User{Name: name, Email: name + "@example.com", NotificationsEnabled: notify})
	return u.ID
}

func TestMessageService_Send(t *testing.T) {
	f := newMessageFixture()
	alice := f.addUser("alice", true)
	bob := f.addUser("bob", true)

	msg, err := f.svc.Send(context.Background(), alice, bob, "  is Dune still available?  ")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if msg.Message != "is Dune still available?" || msg.Read {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if len(f.convs.convs) != 1 || !f.convs.convs[0].HasUnread || f.convs.convs[0].LastMessageID != msg.ID {
		t.Fatalf("expected conversation created and flagged, got %+v", f.convs.convs)
	}
	if f.emitter.count(bob, EventNewMessage) != 1 || f.emitter.count(bob, EventUnreadMessages) != 1 {
		t.Fatalf("expected realtime events to receiver, got %+v", f.emitter.events)
	}
	if len(f.notes.items) != 1 || f.notes.items[0].Type != domain.NotificationMessage {
		t.Fatalf("expected message notification, got %+v", f.notes.items)
	}

	if _, err := f.svc.Send(context.Background(), bob, alice, "yes"); err != nil {
		t.Fatalf("reply returned error: %v", err)
	}
	if len(f.convs.convs) != 1 || len(f.convs.convs[0].MessageIDs) != 2 {
		t.Fatalf("expected reply in the same conversation, got %+v", f.convs.convs)
	}
}

func TestMessageService_Send_UpsertsConversationInBothDirections(t *testing.T) {
	f := newMessageFixture()
	alice := f.addUser("alice", false)
	bob := f.addUser("bob", false)

	for _, pair := range [][2]string{{alice, bob}, {bob, alice}, {alice, bob}} {
		if _, err := f.svc.Send(context.Background(), pair[0], pair[1], "hi"); err != nil {
			t.Fatalf("Send returned error: %v", err)
		}
	}
	if f.convs.upsertCalls != 3 {
		t.Fatalf("every send must go through the atomic upsert, got %d calls", f.convs.upsertCalls)
	}
	if len(f.convs.convs) != 1 || len(f.convs.convs[0].MessageIDs) != 3 {
		t.Fatalf("expected one shared conversation, got %+v", f.convs.convs)
	}
	thread, err := f.svc.Conversation(context.Background(), bob, alice)
	if err != nil || len(thread) != 3 {
		t.Fatalf("expected the full thread from either side, got %d messages, err %v", len(thread), err)
	}
}

func TestMessageService_Send_NotificationsDisabled(t *testing.T) {
	f := newMessageFixture()
	alice := f.addUser("alice", true)
	bob := f.addUser("bob", false)

	if _, err := f.svc.Send(context.Background(), alice, bob, "hi"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(f.notes.items) != 0 {
		t.Fatalf("expected no notification, got %+v", f.notes.items)
	}
}

func TestMessageService_Send_Validation(t *testing.T) {
	f := newMessageFixture()
	alice := f.addUser("alice", true)

	if _, err := f.svc.Send(context.Background(), alice, alice, "hi"); err != domain.ErrMessageToSelf {
		t.Fatalf("expected ErrMessageToSelf, got %v", err)
	}
	if _, err := f.svc.Send(context.Background(), alice, "ghost", "hi"); err != domain.ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := f.svc.Send(context.Background(), alice, "ghost", "   "); err != domain.ErrEmptyMessage {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	long := strings.Repeat("a", domain.MaxMessageLength+1)
	if _, err := f.svc.Send(context.Background(), alice, "ghost", long); err != domain.ErrMessageTooLong {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestMessageService_ConversationMarksRead(t *testing.T) {
	f := newMessageFixture()
	alice := f.addUser("alice", false)
	bob := f.addUser("bob", false)

	empty, err := f.svc.Conversation(context.Background(), alice, bob)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty conversation, got %v %+v", err, empty)
	}

	_, _ = f.svc.Send(context.Background(), alice, bob, "one")
	_, _ = f.svc.Send(context.Background(), alice, bob, "two")

	if n, _ := f.svc.UnreadCount(context.Background(), bob); n != 2 {
		t.Fatalf("expected 2 unread, got %d", n)
	}

	msgs, err := f.svc.Conversation(context.Background(), bob, alice)
	if err != nil {
		t.Fatalf("Conversation returned error: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Message != "one" || !msgs[1].Read {
		t.Fatalf("unexpected thread: %+v", msgs)
	}
	if n, _ := f.svc.UnreadCount(context.Background(), bob); n != 0 {
		t.Fatalf("expected 0 unread after reading, got %d", n)
	}
	if f.convs.convs[0].HasUnread {
		t.Fatalf("expected has_unread cleared")
	}
}
