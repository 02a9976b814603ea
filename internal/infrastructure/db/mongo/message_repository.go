package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/revivereads/marketplace/internal/core/domain"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

// ConversationRepository persists two-party conversations.
type ConversationRepository struct {
	coll *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{coll: db.Collection(conversationsCollection)}
}

type conversationDocument struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	PairKey      string               `bson:"pair_key"`
	Participants []primitive.ObjectID `bson:"participants"`
	Messages     []primitive.ObjectID `bson:"messages"`
	LastMessage  *primitive.ObjectID  `bson:"last_message,omitempty"`
	HasUnread    bool                 `bson:"has_unread"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

func (d *conversationDocument) toDomain() *domain.Conversation {
	c := &domain.Conversation{
		ID:           d.ID.Hex(),
		Participants: hexIDs(d.Participants),
		MessageIDs:   hexIDs(d.Messages),
		HasUnread:    d.HasUnread,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.LastMessage != nil {
		c.LastMessageID = d.LastMessage.Hex()
	}
	return c
}

// pairKey is the order-independent identity of a two-party conversation.
func pairKey(a, b string) (string, []primitive.ObjectID, error) {
	hexes := []string{a, b}
	sort.Strings(hexes)
	ids, err := objectIDs(hexes)
	if err != nil {
		return "", nil, err
	}
	return strings.Join(hexes, ":"), ids, nil
}

func (r *ConversationRepository) FindBetween(ctx context.Context, a, b string) (*domain.Conversation, error) {
	key, _, err := pairKey(a, b)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc conversationDocument
	if err := r.coll.FindOne(ctx, bson.M{"pair_key": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return doc.toDomain(), nil
}

// FindOrCreate upserts on the unique pair key, so concurrent first messages
// in both directions land in the same document.
func (r *ConversationRepository) FindOrCreate(ctx context.Context, a, b string) (*domain.Conversation, error) {
	key, ids, err := pairKey(a, b)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	update := bson.M{"$setOnInsert": bson.M{
		"pair_key":     key,
		"participants": ids,
		"messages":     []primitive.ObjectID{},
		"has_unread":   false,
		"created_at":   now,
		"updated_at":   now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc conversationDocument
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"pair_key": key}, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// The racing upsert won; the document exists now.
		err = r.coll.FindOne(ctx, bson.M{"pair_key": key}).Decode(&doc)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, conversationID, messageID string) error {
	cid, err := objectID(conversationID)
	if err != nil {
		return err
	}
	mid, err := objectID(messageID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{
		"$push": bson.M{"messages": mid},
		"$set":  bson.M{"last_message": mid, "has_unread": true, "updated_at": time.Now().UTC()},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": cid}, update)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepository) ClearUnread(ctx context.Context, conversationID string) error {
	cid, err := objectID(conversationID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = r.coll.UpdateOne(ctx, bson.M{"_id": cid}, bson.M{"$set": bson.M{"has_unread": false}})
	if err != nil {
		return fmt.Errorf("clear unread: %w", err)
	}
	return nil
}

// ListForUser returns the user's conversations, most recently active first.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	uid, err := objectID(userID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"participants": uid}, opts)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	var docs []conversationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	out := make([]*domain.Conversation, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

func (r *ConversationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	return err
}

// MessageRepository persists chat messages.
type MessageRepository struct {
	coll *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{coll: db.Collection(messagesCollection)}
}

type messageDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	SenderID   primitive.ObjectID `bson:"sender_id"`
	ReceiverID primitive.ObjectID `bson:"receiver_id"`
	Message    string             `bson:"message"`
	Read       bool               `bson:"read"`
	CreatedAt  time.Time          `bson:"created_at"`
}

func (d *messageDocument) toDomain() *domain.Message {
	return &domain.Message{
		ID:         d.ID.Hex(),
		SenderID:   d.SenderID.Hex(),
		ReceiverID: d.ReceiverID.Hex(),
		Message:    d.Message,
		Read:       d.Read,
		CreatedAt:  d.CreatedAt,
	}
}

func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	sender, err := objectID(m.SenderID)
	if err != nil {
		return nil, err
	}
	receiver, err := objectID(m.ReceiverID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := messageDocument{
		SenderID:   sender,
		ReceiverID: receiver,
		Message:    m.Message,
		Read:       m.Read,
		CreatedAt:  m.CreatedAt,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *MessageRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Message, error) {
	if len(ids) == 0 {
		return []*domain.Message{}, nil
	}
	oids, err := objectIDs(ids)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	out := make([]*domain.Message, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	ids, err := objectIDs([]string{senderID, receiverID})
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateMany(ctx,
		bson.M{"sender_id": ids[0], "receiver_id": ids[1], "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *MessageRepository) CountUnread(ctx context.Context, receiverID string) (int64, error) {
	rid, err := objectID(receiverID)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"receiver_id": rid, "read": false})
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (r *MessageRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "read", Value: 1}}},
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}}},
	})
	return err
}
