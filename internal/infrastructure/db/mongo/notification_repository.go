package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/revivereads/marketplace/internal/core/domain"
)

const notificationsCollection = "notifications"

type NotificationRepository struct {
	coll *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{coll: db.Collection(notificationsCollection)}
}

type notificationDocument struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty"`
	UserID    primitive.ObjectID  `bson:"user_id"`
	Type      string              `bson:"type"`
	Message   string              `bson:"message"`
	BookID    *primitive.ObjectID `bson:"book_id,omitempty"`
	IsRead    bool                `bson:"is_read"`
	CreatedAt time.Time           `bson:"created_at"`
}

func (d *notificationDocument) toDomain() *domain.Notification {
	n := &domain.Notification{
		ID:        d.ID.Hex(),
		UserID:    d.UserID.Hex(),
		Type:      d.Type,
		Message:   d.Message,
		IsRead:    d.IsRead,
		CreatedAt: d.CreatedAt,
	}
	if d.BookID != nil {
		n.BookID = d.BookID.Hex()
	}
	return n
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	uid, err := objectID(n.UserID)
	if err != nil {
		return nil, err
	}
	doc := notificationDocument{
		UserID:    uid,
		Type:      n.Type,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
	if n.BookID != "" {
		bid, err := objectID(n.BookID)
		if err != nil {
			return nil, err
		}
		doc.BookID = &bid
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	uid, err := objectID(userID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"user_id": uid}, opts)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	var docs []notificationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	out := make([]*domain.Notification, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	uid, err := objectID(userID)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateMany(ctx, bson.M{"user_id": uid, "is_read": false}, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	uid, err := objectID(userID)
	if err != nil {
		return err
	}
	nid, err := objectID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": nid, "user_id": uid}, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}
