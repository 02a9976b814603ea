package ports

import (
	"context"

	"github.com/revivereads/marketplace/internal/core/domain"
)

const MaxBookImages = 5

// CreateBookInput carries a new listing and its images.
type CreateBookInput struct {
	Title       string
	Genre       string
	Description string
	Price       float64
	Condition   string
	Delivery    bool
	Images      []Upload
}

// UpdateBookInput holds a partial update; nil fields are left untouched.
// Non-empty Images replace the stored ones.
type UpdateBookInput struct {
	Title       *string
	Genre       *string
	Description *string
	Price       *float64
	Condition   *string
	Delivery    *bool
	Images      []Upload
}

// ApprovedBooksQuery carries the public catalogue filters.
type ApprovedBooksQuery struct {
	Genre  string
	Search string
	Sort   string
}

type BookService interface {
	Create(ctx context.Context, actor Actor, input CreateBookInput) (*domain.Book, error)
	Get(ctx context.Context, id string) (*domain.Book, error)
	ListAll(ctx context.Context, status domain.BookStatus) ([]*domain.Book, error)
	ListApproved(ctx context.Context, query ApprovedBooksQuery) ([]*domain.Book, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*domain.Book, error)
	ListApprovedBySeller(ctx context.Context, sellerID string) ([]*domain.Book, error)
	ListSold(ctx context.Context, sellerID string) ([]*domain.Book, error)
	Update(ctx context.Context, actor Actor, id string, input UpdateBookInput) (*domain.Book, error)
	Delete(ctx context.Context, actor Actor, id string) error
	Review(ctx context.Context, actor Actor, id string, status domain.BookStatus) (*domain.Book, error)
	MarkSold(ctx context.Context, actor Actor, id string) (*domain.Book, error)
}
