package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

const booksCollection = "books"

type BookRepository struct {
	coll *mongo.Collection
}

func NewBookRepository(db *mongo.Database) *BookRepository {
	return &BookRepository{coll: db.Collection(booksCollection)}
}

type bookDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Genre       string             `bson:"genre"`
	Description string             `bson:"description"`
	Price       float64            `bson:"price"`
	Condition   string             `bson:"condition"`
	Delivery    bool               `bson:"delivery"`
	Images      []string           `bson:"images"`
	Seller      primitive.ObjectID `bson:"seller"`
	Status      string             `bson:"status"`
	IsSold      bool               `bson:"is_sold"`
	SoldDate    *time.Time         `bson:"sold_date,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d *bookDocument) toDomain() *domain.Book {
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return &domain.Book{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Genre:       d.Genre,
		Description: d.Description,
		Price:       d.Price,
		Condition:   d.Condition,
		Delivery:    d.Delivery,
		Images:      images,
		SellerID:    d.Seller.Hex(),
		Status:      domain.BookStatus(d.Status),
		IsSold:      d.IsSold,
		SoldDate:    d.SoldDate,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (r *BookRepository) Create(ctx context.Context, b *domain.Book) (*domain.Book, error) {
	seller, err := objectID(b.SellerID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bookDocument{
		Title:       b.Title,
		Genre:       b.Genre,
		Description: b.Description,
		Price:       b.Price,
		Condition:   b.Condition,
		Delivery:    b.Delivery,
		Images:      b.Images,
		Seller:      seller,
		Status:      string(b.Status),
		IsSold:      b.IsSold,
		SoldDate:    b.SoldDate,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *BookRepository) FindByID(ctx context.Context, id string) (*domain.Book, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc bookDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrBookNotFound
		}
		return nil, fmt.Errorf("find book: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *BookRepository) Update(ctx context.Context, b *domain.Book) error {
	oid, err := objectID(b.ID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{
		"title":       b.Title,
		"genre":       b.Genre,
		"description": b.Description,
		"price":       b.Price,
		"condition":   b.Condition,
		"delivery":    b.Delivery,
		"images":      b.Images,
		"status":      string(b.Status),
		"is_sold":     b.IsSold,
		"sold_date":   b.SoldDate,
		"updated_at":  b.UpdatedAt,
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

func (r *BookRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

func (r *BookRepository) DeleteBySeller(ctx context.Context, sellerID string) (int64, error) {
	oid, err := objectID(sellerID)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.DeleteMany(ctx, bson.M{"seller": oid})
	if err != nil {
		return 0, fmt.Errorf("delete seller books: %w", err)
	}
	return res.DeletedCount, nil
}

func bookFilter(f ports.ListBooksFilter) (bson.M, error) {
	filter := bson.M{}
	if len(f.IDs) > 0 {
		oids, err := objectIDs(f.IDs)
		if err != nil {
			return nil, err
		}
		filter["_id"] = bson.M{"$in": oids}
	}
	if f.SellerID != "" {
		oid, err := objectID(f.SellerID)
		if err != nil {
			return nil, err
		}
		filter["seller"] = oid
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.Sold != nil {
		filter["is_sold"] = *f.Sold
	}
	if f.Genre != "" {
		filter["genre"] = f.Genre
	}
	if f.Search != "" {
		filter["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
	}
	return filter, nil
}

func bookSort(sort string) bson.D {
	switch sort {
	case ports.SortPriceAsc:
		return bson.D{{Key: "price", Value: 1}, {Key: "created_at", Value: -1}}
	case ports.SortPriceDesc:
		return bson.D{{Key: "price", Value: -1}, {Key: "created_at", Value: -1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}}
	}
}

func (r *BookRepository) List(ctx context.Context, f ports.ListBooksFilter) ([]*domain.Book, error) {
	filter, err := bookFilter(f)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bookSort(f.Sort)))
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer cur.Close(ctx)

	books := []*domain.Book{}
	for cur.Next(ctx) {
		var doc bookDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode book: %w", err)
		}
		books = append(books, doc.toDomain())
	}
	return books, cur.Err()
}

func (r *BookRepository) Count(ctx context.Context, f ports.BookCountFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if !f.CreatedSince.IsZero() {
		filter["created_at"] = bson.M{"$gte": f.CreatedSince}
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	n, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

// WeeklyListings groups books by ISO week of creation.
func (r *BookRepository) WeeklyListings(ctx context.Context) ([]ports.BucketCount, error) {
	return weeklyBuckets(ctx, r.coll, "$created_at")
}

func (r *BookRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "seller", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "is_sold", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "genre", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
