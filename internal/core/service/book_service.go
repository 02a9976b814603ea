package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

type BookService struct {
	books         ports.BookRepository
	users         ports.UserRepository
	images        ports.ImageStore
	notifications ports.NotificationService
	activity      ports.ActivityRecorder
	audit         ports.AuditRepository
	log           zerolog.Logger
}

func NewBookService(
	books ports.BookRepository,
	users ports.UserRepository,
	images ports.ImageStore,
	notifications ports.NotificationService,
	activity ports.ActivityRecorder,
	audit ports.AuditRepository,
	log zerolog.Logger,
) *BookService {
	return &BookService{
		books:         books,
		users:         users,
		images:        images,
		notifications: notifications,
		activity:      activity,
		audit:         audit,
		log:           log,
	}
}

func validateBookFields(genre, condition string, price float64) error {
	if !domain.ValidGenre(genre) {
		return domain.ErrInvalidGenre
	}
	if !domain.ValidCondition(condition) {
		return domain.ErrInvalidCondition
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return domain.ErrInvalidPrice
	}
	return nil
}

func (s *BookService) Create(ctx context.Context, actor ports.Actor, in ports.CreateBookInput) (*domain.Book, error) {
	if err := validateBookFields(in.Genre, in.Condition, in.Price); err != nil {
		return nil, err
	}
	if len(in.Images) > ports.MaxBookImages {
		return nil, domain.ErrTooManyImages
	}

	keys := []string{}
	if len(in.Images) > 0 {
		var err error
		if keys, err = s.images.Save(ctx, bookFolder, in.Images); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	book, err := s.books.Create(ctx, &domain.Book{
		Title:       strings.TrimSpace(in.Title),
		Genre:       in.Genre,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Condition:   in.Condition,
		Delivery:    in.Delivery,
		Images:      keys,
		SellerID:    actor.ID,
		Status:      domain.BookPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		s.images.Remove(ctx, bookFolder, keys)
		return nil, err
	}
	if err := s.users.AddListing(ctx, actor.ID, book.ID); err != nil {
		return nil, fmt.Errorf("create book: add listing: %w", err)
	}

	s.activity.Record(ctx, actorActivity(actor, domain.ActionBookCreated, domain.ResourceBook, book.ID, book.Title))
	s.log.Info().Str("book_id", book.ID).Str("seller_id", actor.ID).Msg("book listed")
	return book, nil
}

// Get returns the listing with its seller summary attached.
func (s *BookService) Get(ctx context.Context, id string) (*domain.Book, error) {
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachSellers(ctx, []*domain.Book{book}); err != nil {
		return nil, err
	}
	return book, nil
}

func (s *BookService) ListAll(ctx context.Context, status domain.BookStatus) ([]*domain.Book, error) {
	return s.list(ctx, ports.ListBooksFilter{Status: status, Sort: ports.SortNewest})
}

func (s *BookService) ListApproved(ctx context.Context, q ports.ApprovedBooksQuery) ([]*domain.Book, error) {
	notSold := false
	return s.list(ctx, ports.ListBooksFilter{
		Status: domain.BookApproved,
		Sold:   &notSold,
		Genre:  q.Genre,
		Search: strings.TrimSpace(q.Search),
		Sort:   q.Sort,
	})
}

func (s *BookService) ListBySeller(ctx context.Context, sellerID string) ([]*domain.Book, error) {
	return s.list(ctx, ports.ListBooksFilter{SellerID: sellerID, Sort: ports.SortNewest})
}

func (s *BookService) ListApprovedBySeller(ctx context.Context, sellerID string) ([]*domain.Book, error) {
	return s.list(ctx, ports.ListBooksFilter{SellerID: sellerID, Status: domain.BookApproved, Sort: ports.SortNewest})
}

func (s *BookService) ListSold(ctx context.Context, sellerID string) ([]*domain.Book, error) {
	sold := true
	return s.list(ctx, ports.ListBooksFilter{SellerID: sellerID, Sold: &sold, Sort: ports.SortNewest})
}

func (s *BookService) list(ctx context.Context, filter ports.ListBooksFilter) ([]*domain.Book, error) {
	books, err := s.books.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if books == nil {
		return []*domain.Book{}, nil
	}
	if err := s.attachSellers(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

func (s *BookService) attachSellers(ctx context.Context, books []*domain.Book) error {
	seen := make(map[string]bool)
	var ids []string
	for _, b := range books {
		if b.SellerID != "" && !seen[b.SellerID] {
			seen[b.SellerID] = true
			ids = append(ids, b.SellerID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sellers, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]domain.UserSummary, len(sellers))
	for _, u := range sellers {
		byID[u.ID] = u.Summary()
	}
	for _, b := range books {
		if summary, ok := byID[b.SellerID]; ok {
			b.Seller = &summary
		}
	}
	return nil
}

// Update applies a partial edit. Any edit sends the listing back to moderation.
func (s *BookService) Update(ctx context.Context, actor ports.Actor, id string, in ports.UpdateBookInput) (*domain.Book, error) {
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if book.SellerID != actor.ID {
		return nil, domain.ErrForbidden
	}
	if len(in.Images) > ports.MaxBookImages {
		return nil, domain.ErrTooManyImages
	}

	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		book.Title = strings.TrimSpace(*in.Title)
	}
	if in.Genre != nil {
		book.Genre = *in.Genre
	}
	if in.Description != nil {
		book.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		book.Price = *in.Price
	}
	if in.Condition != nil {
		book.Condition = *in.Condition
	}
	if in.Delivery != nil {
		book.Delivery = *in.Delivery
	}
	if err := validateBookFields(book.Genre, book.Condition, book.Price); err != nil {
		return nil, err
	}

	var oldImages []string
	if len(in.Images) > 0 {
		keys, err := s.images.Save(ctx, bookFolder, in.Images)
		if err != nil {
			return nil, err
		}
		oldImages = book.Images
		book.Images = keys
	}

	book.Status = domain.BookPending
	book.UpdatedAt = time.Now().UTC()
	if err := s.books.Update(ctx, book); err != nil {
		if len(in.Images) > 0 {
			s.images.Remove(ctx, bookFolder, book.Images)
		}
		return nil, err
	}
	if len(oldImages) > 0 {
		s.images.Remove(ctx, bookFolder, oldImages)
	}

	s.activity.Record(ctx, actorActivity(actor, domain.ActionBookUpdated, domain.ResourceBook, book.ID, book.Title))
	return book, nil
}

func (s *BookService) Delete(ctx context.Context, actor ports.Actor, id string) error {
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if book.SellerID != actor.ID && !actor.IsAdmin() {
		return domain.ErrForbidden
	}

	if err := s.books.Delete(ctx, id); err != nil {
		return err
	}
	s.images.Remove(ctx, bookFolder, book.Images)
	if err := s.users.RemoveListing(ctx, book.SellerID, id); err != nil {
		s.log.Warn().Err(err).Str("book_id", id).Msg("failed to pull book from seller listings")
	}
	if err := s.users.RemoveFavoriteEverywhere(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("book_id", id).Msg("failed to pull book from favorites")
	}

	s.activity.Record(ctx, actorActivity(actor, domain.ActionBookDeleted, domain.ResourceBook, id, book.Title))
	if book.SellerID != actor.ID {
		writeAudit(ctx, s.audit, s.log, actor, domain.ActionBookDeleted, domain.ResourceBook, id, map[string]string{"title": book.Title})
	}
	return nil
}

// Review sets the moderation verdict and notifies the seller.
func (s *BookService) Review(ctx context.Context, actor ports.Actor, id string, status domain.BookStatus) (*domain.Book, error) {
	if !domain.ValidReviewStatus(status) {
		return nil, domain.ErrInvalidReview
	}
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := book.Status
	book.Status = status
	book.UpdatedAt = time.Now().UTC()
	if err := s.books.Update(ctx, book); err != nil {
		return nil, err
	}

	verdict := strings.ToLower(string(status))
	msg := fmt.Sprintf("Your book %q has been %s.", book.Title, verdict)
	if _, err := s.notifications.Notify(ctx, book.SellerID, domain.NotificationBookStatus, msg, book.ID); err != nil {
		s.log.Warn().Err(err).Str("book_id", book.ID).Msg("failed to notify seller")
	}

	writeAudit(ctx, s.audit, s.log, actor, domain.ActionBookReviewed, domain.ResourceBook, book.ID, map[string]string{
		"from": string(previous),
		"to":   string(status),
	})
	s.activity.Record(ctx, actorActivity(actor, domain.ActionBookReviewed, domain.ResourceBook, book.ID, verdict))
	return book, nil
}

func (s *BookService) MarkSold(ctx context.Context, actor ports.Actor, id string) (*domain.Book, error) {
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if book.SellerID != actor.ID {
		return nil, domain.ErrForbidden
	}
	if book.IsSold {
		return nil, domain.ErrBookAlreadySold
	}

	now := time.Now().UTC()
	book.IsSold = true
	book.SoldDate = &now
	book.UpdatedAt = now
	if err := s.books.Update(ctx, book); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, actorActivity(actor, domain.ActionBookSold, domain.ResourceBook, book.ID, book.Title))
	return book, nil
}
