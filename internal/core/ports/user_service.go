package ports

import (
	"context"
	"time"

	"github.com/revivereads/marketplace/internal/core/domain"
)

// UpdateProfileInput holds the editable profile fields. Empty strings keep
// the stored value.
type UpdateProfileInput struct {
	Name    string
	Phone   string
	Address string
	Avatar  *Upload
}

type UserService interface {
	List(ctx context.Context) ([]*domain.User, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	Delete(ctx context.Context, actor Actor, id string) error
	UpdateProfile(ctx context.Context, actor Actor, input UpdateProfileInput) (*domain.User, error)
	UpdateStatus(ctx context.Context, actor Actor, id string, status domain.UserStatus, lastActivity time.Time) (*domain.User, error)
	SetNotifications(ctx context.Context, actor Actor, enabled bool) (*domain.User, error)
	SidebarUsers(ctx context.Context, userID string) ([]domain.UserSummary, error)
	AddFavorite(ctx context.Context, userID, bookID string) (*domain.User, error)
	RemoveFavorite(ctx context.Context, userID, bookID string) (*domain.User, error)
	Favorites(ctx context.Context, userID string) ([]*domain.Book, error)
	UploadAvatar(ctx context.Context, upload Upload) (string, error)
}
