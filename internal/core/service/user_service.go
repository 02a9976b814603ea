package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

const (
	avatarFolder = "avatars"
	bookFolder   = "books"
)

type UserService struct {
	users         ports.UserRepository
	books         ports.BookRepository
	conversations ports.ConversationRepository
	images        ports.ImageStore
	activity      ports.ActivityRecorder
	audit         ports.AuditRepository
	log           zerolog.Logger
}

func NewUserService(
	users ports.UserRepository,
	books ports.BookRepository,
	conversations ports.ConversationRepository,
	images ports.ImageStore,
	activity ports.ActivityRecorder,
	audit ports.AuditRepository,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		users:         users,
		books:         books,
		conversations: conversations,
		images:        images,
		activity:      activity,
		audit:         audit,
		log:           log,
	}
}

func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

// Delete removes the account together with every listing it owns.
func (s *UserService) Delete(ctx context.Context, actor ports.Actor, id string) error {
	if actor.ID != id && !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}

	books, err := s.books.List(ctx, ports.ListBooksFilter{SellerID: id})
	if err != nil {
		return err
	}
	for _, b := range books {
		s.images.Remove(ctx, bookFolder, b.Images)
		if err := s.users.RemoveFavoriteEverywhere(ctx, b.ID); err != nil {
			return err
		}
	}
	removed, err := s.books.DeleteBySeller(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	if user.Avatar != "" && user.Avatar != domain.DefaultAvatar {
		s.images.Remove(ctx, avatarFolder, []string{user.Avatar})
	}

	entry := actorActivity(actor, domain.ActionUserDeleted, domain.ResourceUser, id, user.Email)
	entry.Severity = domain.SeverityMedium
	s.activity.Record(ctx, entry)
	if actor.ID != id {
		writeAudit(ctx, s.audit, s.log, actor, domain.ActionUserDeleted, domain.ResourceUser, id, map[string]string{"email": user.Email})
	}
	s.log.Info().Str("user_id", id).Int64("books_removed", removed).Msg("user deleted")
	return nil
}

func (s *UserService) UpdateProfile(ctx context.Context, actor ports.Actor, in ports.UpdateProfileInput) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = name
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		user.Phone = phone
	}
	if address := strings.TrimSpace(in.Address); address != "" {
		user.Address = address
	}

	var oldAvatar string
	if in.Avatar != nil {
		keys, err := s.images.Save(ctx, avatarFolder, []ports.Upload{*in.Avatar})
		if err != nil {
			return nil, err
		}
		oldAvatar = user.Avatar
		user.Avatar = keys[0]
	}

	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if oldAvatar != "" && oldAvatar != domain.DefaultAvatar {
		s.images.Remove(ctx, avatarFolder, []string{oldAvatar})
	}

	s.activity.Record(ctx, userActivity(user, domain.ActionProfileUpdated, domain.ResourceUser, domain.OutcomeSuccess, domain.SeverityLow, actor.Meta, ""))
	return user, nil
}

func (s *UserService) UpdateStatus(ctx context.Context, actor ports.Actor, id string, status domain.UserStatus, lastActivity time.Time) (*domain.User, error) {
	if actor.ID != id && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if !domain.ValidUserStatus(status) {
		return nil, domain.ErrInvalidStatus
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if lastActivity.IsZero() {
		lastActivity = now
	}
	user.Status = status
	user.LastActivity = lastActivity
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) SetNotifications(ctx context.Context, actor ports.Actor, enabled bool) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	user.NotificationsEnabled = enabled
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SidebarUsers returns everyone the user has a conversation with, most
// recent conversation first.
func (s *UserService) SidebarUsers(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(convs))
	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		other := c.Other(userID)
		if other == "" || seen[other] {
			continue
		}
		seen[other] = true
		ids = append(ids, other)
	}
	if len(ids) == 0 {
		return []domain.UserSummary{}, nil
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	out := make([]domain.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

func (s *UserService) AddFavorite(ctx context.Context, userID, bookID string) (*domain.User, error) {
	if _, err := s.books.FindByID(ctx, bookID); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.HasFavorite(bookID) {
		return nil, domain.ErrAlreadyFavorite
	}
	if err := s.users.AddFavorite(ctx, userID, bookID); err != nil {
		return nil, err
	}
	user.Favorites = append(user.Favorites, bookID)
	return user, nil
}

func (s *UserService) RemoveFavorite(ctx context.Context, userID, bookID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasFavorite(bookID) {
		return nil, domain.ErrNotFavorite
	}
	if err := s.users.RemoveFavorite(ctx, userID, bookID); err != nil {
		return nil, err
	}
	kept := user.Favorites[:0]
	for _, id := range user.Favorites {
		if id != bookID {
			kept = append(kept, id)
		}
	}
	user.Favorites = kept
	return user, nil
}

func (s *UserService) Favorites(ctx context.Context, userID string) ([]*domain.Book, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.Favorites) == 0 {
		return []*domain.Book{}, nil
	}
	return s.books.List(ctx, ports.ListBooksFilter{IDs: user.Favorites})
}

// UploadAvatar stores a profile image and returns its key.
func (s *UserService) UploadAvatar(ctx context.Context, upload ports.Upload) (string, error) {
	keys, err := s.images.Save(ctx, avatarFolder, []ports.Upload{upload})
	if err != nil {
		return "", err
	}
	return keys[0], nil
}
