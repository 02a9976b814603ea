package ports

import (
	"context"
	"time"

	"github.com/revivereads/marketplace/internal/core/domain"
)

// UserCountFilter narrows CountUsers. Zero values are ignored.
type UserCountFilter struct {
	CreatedSince time.Time
	ActiveSince  time.Time
	LockedAt     time.Time // lockout_until > LockedAt
}

// BucketCount is one group of a time-bucketed aggregation.
type BucketCount struct {
	Bucket int   `json:"_id"`
	Count  int64 `json:"count"`
}

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	// Update persists every mutable field of user.
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error

	AddFavorite(ctx context.Context, userID, bookID string) error
	RemoveFavorite(ctx context.Context, userID, bookID string) error
	// RemoveFavoriteEverywhere pulls bookID from every user's favorites.
	RemoveFavoriteEverywhere(ctx context.Context, bookID string) error
	AddListing(ctx context.Context, userID, bookID string) error
	RemoveListing(ctx context.Context, userID, bookID string) error

	Count(ctx context.Context, filter UserCountFilter) (int64, error)
	// WeeklyActivity groups users by the week number of their last activity.
	WeeklyActivity(ctx context.Context) ([]BucketCount, error)
}
