package mongo

import (
	"context"
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

const (
	activityCollection = "activity_logs"
	auditCollection    = "audit_logs"
)

// activityFields maps filter and group field names to document keys.
var activityFields = map[string]string{
	ports.ActivityFieldCreatedAt:    "created_at",
	ports.ActivityFieldAction:       "action",
	ports.ActivityFieldStatus:       "status",
	ports.ActivityFieldSeverity:     "severity",
	ports.ActivityFieldUserEmail:    "user_email",
	ports.ActivityFieldIPAddress:    "ip_address",
	ports.ActivityFieldResourceType: "resource_type",
}

// ActivityRepository persists activity logs and serves dashboard aggregations.
type ActivityRepository struct {
	coll *mongo.Collection
}

func NewActivityRepository(db *mongo.Database) *ActivityRepository {
	return &ActivityRepository{coll: db.Collection(activityCollection)}
}

type activityDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	UserID       string             `bson:"user_id,omitempty"`
	UserEmail    string             `bson:"user_email,omitempty"`
	UserRole     string             `bson:"user_role,omitempty"`
	Action       string             `bson:"action"`
	ResourceType string             `bson:"resource_type,omitempty"`
	ResourceID   string             `bson:"resource_id,omitempty"`
	Status       string             `bson:"status"`
	Severity     string             `bson:"severity"`
	IPAddress    string             `bson:"ip_address,omitempty"`
	UserAgent    string             `bson:"user_agent,omitempty"`
	Details      string             `bson:"details,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
}

func (d *activityDocument) toDomain() *domain.ActivityLog {
	return &domain.ActivityLog{
		ID:           d.ID.Hex(),
		UserID:       d.UserID,
		UserEmail:    d.UserEmail,
		UserRole:     d.UserRole,
		Action:       d.Action,
		ResourceType: d.ResourceType,
		ResourceID:   d.ResourceID,
		Status:       d.Status,
		Severity:     d.Severity,
		IPAddress:    d.IPAddress,
		UserAgent:    d.UserAgent,
		Details:      d.Details,
		CreatedAt:    d.CreatedAt,
	}
}

func (r *ActivityRepository) Insert(ctx context.Context, e *domain.ActivityLog) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := activityDocument{
		UserID:       e.UserID,
		UserEmail:    e.UserEmail,
		UserRole:     e.UserRole,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Status:       e.Status,
		Severity:     e.Severity,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		Details:      e.Details,
		CreatedAt:    e.CreatedAt,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	e.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func activityFilter(f ports.ActivityFilter) bson.M {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.UserEmail != "" {
		filter["user_email"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.UserEmail), Options: "i"}
	}
	if f.Action != "" {
		filter["action"] = f.Action
	} else if len(f.Actions) > 0 {
		filter["action"] = bson.M{"$in": f.Actions}
	}
	if f.ResourceType != "" {
		filter["resource_type"] = f.ResourceType
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if len(f.Severities) > 0 {
		filter["severity"] = bson.M{"$in": f.Severities}
	}
	if f.IPAddress != "" {
		filter["ip_address"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.IPAddress), Options: "i"}
	}
	created := bson.M{}
	if !f.From.IsZero() {
		created["$gte"] = f.From
	}
	if !f.To.IsZero() {
		created["$lte"] = f.To
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}
	return filter
}

// skip returns the offset of a 1-based page, computed in int64 so large
// pages cannot wrap negative.
func skip(page, limit int) int64 {
	if page <= 1 || limit <= 0 {
		return 0
	}
	return (int64(page) - 1) * int64(limit)
}

func (r *ActivityRepository) List(ctx context.Context, f ports.ActivityFilter) ([]*domain.ActivityLog, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	sortKey, ok := activityFields[f.SortBy]
	if !ok {
		sortKey = "created_at"
	}
	dir := 1
	if f.SortDesc {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: sortKey, Value: dir}, {Key: "_id", Value: dir}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
		if n := skip(f.Page, f.Limit); n > 0 {
			opts.SetSkip(n)
		}
	}

	cur, err := r.coll.Find(ctx, activityFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	var docs []activityDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}
	out := make([]*domain.ActivityLog, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

func (r *ActivityRepository) Count(ctx context.Context, f ports.ActivityFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, activityFilter(f))
	if err != nil {
		return 0, fmt.Errorf("count activity: %w", err)
	}
	return n, nil
}

type groupDocument struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

func (r *ActivityRepository) GroupBy(ctx context.Context, field string, f ports.ActivityFilter, limit int) ([]ports.GroupCount, error) {
	key, ok := activityFields[field]
	if !ok {
		return nil, fmt.Errorf("group activity: unknown field %q", field)
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: activityFilter(f)}},
		{{Key: "$group", Value: bson.M{"_id": "$" + key, "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	return r.aggregateGroups(ctx, pipeline)
}

func (r *ActivityRepository) Daily(ctx context.Context, f ports.ActivityFilter) ([]ports.GroupCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: activityFilter(f)}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$created_at"}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	return r.aggregateGroups(ctx, pipeline)
}

func (r *ActivityRepository) aggregateGroups(ctx context.Context, pipeline mongo.Pipeline) ([]ports.GroupCount, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate activity: %w", err)
	}
	var docs []groupDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode activity groups: %w", err)
	}
	out := make([]ports.GroupCount, 0, len(docs))
	for _, d := range docs {
		out = append(out, ports.GroupCount{Key: d.Key, Count: d.Count})
	}
	return out, nil
}

func (r *ActivityRepository) Hourly(ctx context.Context, since time.Time) ([]ports.BucketCount, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"created_at": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{"_id": bson.M{"$hour": "$created_at"}, "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	return aggregateBuckets(ctx, r.coll, pipeline)
}

func (r *ActivityRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("delete activity: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *ActivityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "action", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "severity", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "ip_address", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// AuditRepository persists the admin mutation trail.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

type auditDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	ActorID    string             `bson:"actor_id"`
	ActorEmail string             `bson:"actor_email,omitempty"`
	Action     string             `bson:"action"`
	TargetType string             `bson:"target_type"`
	TargetID   string             `bson:"target_id,omitempty"`
	Changes    map[string]string  `bson:"changes,omitempty"`
	CreatedAt  time.Time          `bson:"created_at"`
}

func (r *AuditRepository) Insert(ctx context.Context, e *domain.AuditLog) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := auditDocument{
		ActorID:    e.ActorID,
		ActorEmail: e.ActorEmail,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Changes:    e.Changes,
		CreatedAt:  e.CreatedAt,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	e.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (r *AuditRepository) List(ctx context.Context, page, limit int) ([]*domain.AuditLog, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	total, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count audit: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip(page, limit)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit: %w", err)
	}
	var docs []auditDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode audit: %w", err)
	}
	out := make([]*domain.AuditLog, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domain.AuditLog{
			ID:         d.ID.Hex(),
			ActorID:    d.ActorID,
			ActorEmail: d.ActorEmail,
			Action:     d.Action,
			TargetType: d.TargetType,
			TargetID:   d.TargetID,
			Changes:    d.Changes,
			CreatedAt:  d.CreatedAt,
		})
	}
	return out, total, nil
}

func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "actor_id", Value: 1}}},
	})
	return err
}
