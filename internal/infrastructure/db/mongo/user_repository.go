package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

const usersCollection = "users"

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

type userDocument struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty"`
	Name                 string               `bson:"name"`
	Email                string               `bson:"email"`
	Phone                string               `bson:"phone,omitempty"`
	Password             string               `bson:"password"`
	Address              string               `bson:"address,omitempty"`
	Avatar               string               `bson:"avatar"`
	Role                 string               `bson:"role"`
	BookListings         []primitive.ObjectID `bson:"book_listings"`
	Favorites            []primitive.ObjectID `bson:"favorites"`
	Notifications        bool                 `bson:"notifications"`
	Status               string               `bson:"status"`
	LastActivity         time.Time            `bson:"last_activity"`
	ResetPasswordToken   string               `bson:"reset_password_token,omitempty"`
	ResetPasswordExpires *time.Time           `bson:"reset_password_expires,omitempty"`
	TwoFactorOTP         string               `bson:"two_factor_otp,omitempty"`
	TwoFactorOTPExpires  *time.Time           `bson:"two_factor_otp_expires,omitempty"`
	OTPAttempts          int                  `bson:"otp_attempts"`
	FailedLoginAttempts  int                  `bson:"failed_login_attempts"`
	LockoutUntil         *time.Time           `bson:"lockout_until,omitempty"`
	SessionVersion       int                  `bson:"session_version"`
	CreatedAt            time.Time            `bson:"created_at"`
	UpdatedAt            time.Time            `bson:"updated_at"`
}

func (d *userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:                   d.ID.Hex(),
		Name:                 d.Name,
		Email:                d.Email,
		Phone:                d.Phone,
		PasswordHash:         d.Password,
		Address:              d.Address,
		Avatar:               d.Avatar,
		Role:                 d.Role,
		BookListings:         hexIDs(d.BookListings),
		Favorites:            hexIDs(d.Favorites),
		NotificationsEnabled: d.Notifications,
		Status:               domain.UserStatus(d.Status),
		LastActivity:         d.LastActivity,
		ResetTokenHash:       d.ResetPasswordToken,
		ResetTokenExpires:    d.ResetPasswordExpires,
		OTPHash:              d.TwoFactorOTP,
		OTPExpires:           d.TwoFactorOTPExpires,
		OTPAttempts:          d.OTPAttempts,
		FailedLoginAttempts:  d.FailedLoginAttempts,
		LockoutUntil:         d.LockoutUntil,
		SessionVersion:       d.SessionVersion,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := userDocument{
		Name:          user.Name,
		Email:         user.Email,
		Phone:         user.Phone,
		Password:      user.PasswordHash,
		Address:       user.Address,
		Avatar:        user.Avatar,
		Role:          user.Role,
		BookListings:  []primitive.ObjectID{},
		Favorites:     []primitive.ObjectID{},
		Notifications: user.NotificationsEnabled,
		Status:        string(user.Status),
		LastActivity:  user.LastActivity,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrEmailExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	oids, err := objectIDs(ids)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": oids}})
}

func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	return r.find(ctx, bson.M{})
}

func (r *UserRepository) find(ctx context.Context, filter bson.M) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	users := []*domain.User{}
	for cur.Next(ctx) {
		var doc userDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		users = append(users, doc.toDomain())
	}
	return users, cur.Err()
}

// Update writes every scalar field. Favorites and listings are changed only
// through their dedicated set operations.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	oid, err := objectID(user.ID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{
		"name":                   user.Name,
		"phone":                  user.Phone,
		"password":               user.PasswordHash,
		"address":                user.Address,
		"avatar":                 user.Avatar,
		"role":                   user.Role,
		"notifications":          user.NotificationsEnabled,
		"status":                 string(user.Status),
		"last_activity":          user.LastActivity,
		"reset_password_token":   user.ResetTokenHash,
		"reset_password_expires": user.ResetTokenExpires,
		"two_factor_otp":         user.OTPHash,
		"two_factor_otp_expires": user.OTPExpires,
		"otp_attempts":           user.OTPAttempts,
		"failed_login_attempts":  user.FailedLoginAttempts,
		"lockout_until":          user.LockoutUntil,
		"session_version":        user.SessionVersion,
		"updated_at":             user.UpdatedAt,
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) modifySet(ctx context.Context, userID, bookID, op, field string) error {
	uid, err := objectID(userID)
	if err != nil {
		return err
	}
	bid, err := objectID(bookID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{op: bson.M{field: bid}})
	if err != nil {
		return fmt.Errorf("update %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) AddFavorite(ctx context.Context, userID, bookID string) error {
	return r.modifySet(ctx, userID, bookID, "$addToSet", "favorites")
}

func (r *UserRepository) RemoveFavorite(ctx context.Context, userID, bookID string) error {
	return r.modifySet(ctx, userID, bookID, "$pull", "favorites")
}

func (r *UserRepository) AddListing(ctx context.Context, userID, bookID string) error {
	return r.modifySet(ctx, userID, bookID, "$addToSet", "book_listings")
}

func (r *UserRepository) RemoveListing(ctx context.Context, userID, bookID string) error {
	return r.modifySet(ctx, userID, bookID, "$pull", "book_listings")
}

func (r *UserRepository) RemoveFavoriteEverywhere(ctx context.Context, bookID string) error {
	bid, err := objectID(bookID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = r.coll.UpdateMany(ctx, bson.M{"favorites": bid}, bson.M{"$pull": bson.M{"favorites": bid}})
	if err != nil {
		return fmt.Errorf("pull favorites: %w", err)
	}
	return nil
}

func (r *UserRepository) Count(ctx context.Context, f ports.UserCountFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if !f.CreatedSince.IsZero() {
		filter["created_at"] = bson.M{"$gte": f.CreatedSince}
	}
	if !f.ActiveSince.IsZero() {
		filter["last_activity"] = bson.M{"$gte": f.ActiveSince}
	}
	if !f.LockedAt.IsZero() {
		filter["lockout_until"] = bson.M{"$gt": f.LockedAt}
	}
	n, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// WeeklyActivity groups users by ISO week of last_activity.
func (r *UserRepository) WeeklyActivity(ctx context.Context) ([]ports.BucketCount, error) {
	return weeklyBuckets(ctx, r.coll, "$last_activity")
}

func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "last_activity", Value: -1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

type bucketDocument struct {
	Bucket int   `bson:"_id"`
	Count  int64 `bson:"count"`
}

func weeklyBuckets(ctx context.Context, coll *mongo.Collection, field string) ([]ports.BucketCount, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{field[1:]: bson.M{"$type": "date"}}}},
		{{Key: "$group", Value: bson.M{"_id": bson.M{"$isoWeek": field}, "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	return aggregateBuckets(ctx, coll, pipeline)
}

func aggregateBuckets(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]ports.BucketCount, error) {
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	var docs []bucketDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode aggregate: %w", err)
	}
	out := make([]ports.BucketCount, 0, len(docs))
	for _, d := range docs {
		out = append(out, ports.BucketCount{Bucket: d.Bucket, Count: d.Count})
	}
	return out, nil
}
