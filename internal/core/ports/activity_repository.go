package ports

import (
	"context"
	"time"

	"github.com/revivereads/marketplace/internal/core/domain"
)

// Activity fields accepted by ActivityFilter.SortBy and ActivityRepository.GroupBy.
const (
	ActivityFieldCreatedAt    = "createdAt"
	ActivityFieldAction       = "action"
	ActivityFieldStatus       = "status"
	ActivityFieldSeverity     = "severity"
	ActivityFieldUserEmail    = "userEmail"
	ActivityFieldIPAddress    = "ipAddress"
	ActivityFieldResourceType = "resourceType"
)

// ActivityFilter carries every supported activity log query parameter.
type ActivityFilter struct {
	UserID       string
	UserEmail    string // case-insensitive partial match
	Action       string
	Actions      []string // any of; ignored when Action is set
	ResourceType string
	Status       string
	Severities   []string
	IPAddress    string // case-insensitive partial match
	From         time.Time
	To           time.Time
	SortBy       string
	SortDesc     bool
	Page         int // 1-based; 0 means no skip
	Limit        int // <= 0 returns every match
}

// GroupCount is one group of a field aggregation.
type GroupCount struct {
	Key   string `json:"_id"`
	Count int64  `json:"count"`
}

// ActivityRepository persists activity logs and answers dashboard aggregations.
type ActivityRepository interface {
	Insert(ctx context.Context, entry *domain.ActivityLog) error
	List(ctx context.Context, filter ActivityFilter) ([]*domain.ActivityLog, error)
	Count(ctx context.Context, filter ActivityFilter) (int64, error)
	// GroupBy counts entries matching filter per value of field, largest first.
	// limit <= 0 returns every group.
	GroupBy(ctx context.Context, field string, filter ActivityFilter, limit int) ([]GroupCount, error)
	// Hourly counts entries since the given time by hour of day.
	Hourly(ctx context.Context, since time.Time) ([]BucketCount, error)
	// Daily counts entries matching filter by calendar day (YYYY-MM-DD).
	Daily(ctx context.Context, filter ActivityFilter) ([]GroupCount, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRepository persists the admin mutation trail.
type AuditRepository interface {
	Insert(ctx context.Context, entry *domain.AuditLog) error
	List(ctx context.Context, page, limit int) ([]*domain.AuditLog, int64, error)
}
