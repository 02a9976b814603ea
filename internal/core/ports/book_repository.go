package ports

import (
	"context"
	"time"

	"github.com/revivereads/marketplace/internal/core/domain"
)

// Book sort orders accepted by ListBooksFilter.Sort.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// ListBooksFilter carries the query parameters for listing books.
type ListBooksFilter struct {
	IDs      []string
	SellerID string
	Status   domain.BookStatus
	Sold     *bool
	Genre    string
	Search   string // case-insensitive partial match on title
	Sort     string
}

// BookCountFilter narrows CountBooks. Zero values are ignored.
type BookCountFilter struct {
	CreatedSince time.Time
	Status       domain.BookStatus
}

// BookRepository defines persistence operations for listings.
type BookRepository interface {
	Create(ctx context.Context, book *domain.Book) (*domain.Book, error)
	FindByID(ctx context.Context, id string) (*domain.Book, error)
	Update(ctx context.Context, book *domain.Book) error
	Delete(ctx context.Context, id string) error
	// DeleteBySeller removes every listing of sellerID and returns how many went.
	DeleteBySeller(ctx context.Context, sellerID string) (int64, error)
	List(ctx context.Context, filter ListBooksFilter) ([]*domain.Book, error)
	Count(ctx context.Context, filter BookCountFilter) (int64, error)
	// WeeklyListings groups books by the week number of their creation.
	WeeklyListings(ctx context.Context) ([]BucketCount, error)
}
