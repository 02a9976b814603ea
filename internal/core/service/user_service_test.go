package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

type userFixture struct {
	svc      *UserService
	users    *stubUserRepo
	books    *stubBookRepo
	convs    *stubConversationRepo
	images   *stubImageStore
	audit    *stubAuditRepo
	activity *stubActivityRepo
}

func newUserFixture() *userFixture {
	f := &userFixture{
		users:    newStubUserRepo(),
		books:    newStubBookRepo(),
		convs:    &stubConversationRepo{},
		images:   &stubImageStore{},
		audit:    &stubAuditRepo{},
		activity: &stubActivityRepo{},
	}
	f.svc = NewUserService(f.users, f.books, f.convs, f.images, recordingActivity{repo: f.activity}, f.audit, zerolog.Nop())
	return f
}

func (f *userFixture) addUser(name, role string) ports.Actor {
	u, _ := f.users.Create(context.Background(), &domain.User{
		Name:   name,
		Email:  name + "@example.com",
		Role:   role,
		Avatar: domain.DefaultAvatar,
		Status: domain.StatusAway,
	})
	return ports.Actor{ID: u.ID, Email: u.Email, Role: u.Role}
}

func TestUserService_Delete_Permissions(t *testing.T) {
	f := newUserFixture()
	alice := f.addUser("alice", domain.RoleUser)
	bob := f.addUser("bob", domain.RoleUser)
	admin := f.addUser("root", domain.RoleAdmin)

	if err := f.svc.Delete(context.Background(), bob, alice.ID); err != domain.ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	book, _ := f.books.Create(context.Background(), &domain.Book{Title: "Emma", SellerID: alice.ID, Images: []string{"x.jpg"}})
	_ = f.users.AddFavorite(context.Background(), bob.ID, book.ID)

	if err := f.svc.Delete(context.Background(), admin, alice.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, ok := f.users.users[alice.ID]; ok {
		t.Fatalf("expected user removed")
	}
	if len(f.books.books) != 0 {
		t.Fatalf("expected user's books removed, got %d", len(f.books.books))
	}
	if len(f.users.users[bob.ID].Favorites) != 0 {
		t.Fatalf("expected favorites cleaned")
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].TargetID != alice.ID {
		t.Fatalf("expected admin delete audited, got %+v", f.audit.entries)
	}
}

func TestUserService_UpdateProfile(t *testing.T) {
	f := newUserFixture()
	alice := f.addUser("alice", domain.RoleUser)

	updated, err := f.svc.UpdateProfile(context.Background(), alice, ports.UpdateProfileInput{
		Name:   "Alice L.",
		Avatar: &ports.Upload{Filename: "me.png"},
	})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if updated.Name != "Alice L." || updated.Email != "alice@example.com" {
		t.Fatalf("unexpected profile: %+v", updated)
	}
	if updated.Avatar == domain.DefaultAvatar {
		t.Fatalf("expected new avatar key")
	}
	if len(f.images.removed) != 0 {
		t.Fatalf("default avatar must never be removed, got %v", f.images.removed)
	}

	if _, err := f.svc.UpdateProfile(context.Background(), alice, ports.UpdateProfileInput{Avatar: &ports.Upload{Filename: "me2.png"}}); err != nil {
		t.Fatalf("second UpdateProfile returned error: %v", err)
	}
	if len(f.images.removed) != 1 || f.images.removed[0] != updated.Avatar {
		t.Fatalf("expected previous avatar removed, got %v", f.images.removed)
	}
}

func TestUserService_UpdateStatus(t *testing.T) {
	f := newUserFixture()
	alice := f.addUser("alice", domain.RoleUser)
	bob := f.addUser("bob", domain.RoleUser)

	if _, err := f.svc.UpdateStatus(context.Background(), alice, alice.ID, "Busy", time.Time{}); err != domain.ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), bob, alice.ID, domain.StatusActive, time.Time{}); err != domain.ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	u, err := f.svc.UpdateStatus(context.Background(), alice, alice.ID, domain.StatusActive, time.Time{})
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if u.Status != domain.StatusActive || u.LastActivity.IsZero() {
		t.Fatalf("unexpected status update: %+v", u)
	}
}

func TestUserService_Favorites(t *testing.T) {
	f := newUserFixture()
	alice := f.addUser("alice", domain.RoleUser)
	book, _ := f.books.Create(context.Background(), &domain.Book{Title: "Emma"})

	if _, err := f.svc.AddFavorite(context.Background(), alice.ID, "missing"); err != domain.ErrBookNotFound {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
	if _, err := f.svc.AddFavorite(context.Background(), alice.ID, book.ID); err != nil {
		t.Fatalf("AddFavorite returned error: %v", err)
	}
	if _, err := f.svc.AddFavorite(context.Background(), alice.ID, book.ID); err != domain.ErrAlreadyFavorite {
		t.Fatalf("expected ErrAlreadyFavorite, got %v", err)
	}

	favs, err := f.svc.Favorites(context.Background(), alice.ID)
	if err != nil || len(favs) != 1 || favs[0].Title != "Emma" {
		t.Fatalf("unexpected favorites: %v %+v", err, favs)
	}

	u, err := f.svc.RemoveFavorite(context.Background(), alice.ID, book.ID)
	if err != nil {
		t.Fatalf("RemoveFavorite returned error: %v", err)
	}
	if len(u.Favorites) != 0 {
		t.Fatalf("expected empty favorites, got %v", u.Favorites)
	}
	if _, err := f.svc.RemoveFavorite(context.Background(), alice.ID, book.ID); err != domain.ErrNotFavorite {
		t.Fatalf("expected ErrNotFavorite, got %v", err)
	}
}

func TestUserService_SidebarUsers(t *testing.T) {
	f := newUserFixture()
	alice := f.addUser("alice", domain.RoleUser)
	bob := f.addUser("bob", domain.RoleUser)
	carol := f.addUser("carol", domain.RoleUser)
	_ = f.addUser("dave", domain.RoleUser)

	_, _ = f.convs.FindOrCreate(context.Background(), alice.ID, bob.ID)
	_, _ = f.convs.FindOrCreate(context.Background(), carol.ID, alice.ID)

	users, err := f.svc.SidebarUsers(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("SidebarUsers returned error: %v", err)
	}
	if len(users) != 2 || users[0].ID != carol.ID || users[1].ID != bob.ID {
		t.Fatalf("expected [carol bob], got %+v", users)
	}

	empty, err := f.svc.SidebarUsers(context.Background(), "nobody")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty sidebar, got %v %+v", err, empty)
	}
}
