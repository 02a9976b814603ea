package ports

import (
	"context"
	"time"

	"github.com/revivereads/marketplace/internal/core/domain"
)

// ActivityRecorder appends to the activity trail. Recording never fails the
// calling use case.
type ActivityRecorder interface {
	Record(ctx context.Context, entry domain.ActivityLog)
}

type ActivityPage struct {
	Logs       []*domain.ActivityLog `json:"logs"`
	Pagination Pagination            `json:"pagination"`
}

// ActivityStats is the aggregate view over a date range.
type ActivityStats struct {
	TotalActivities int64         `json:"totalActivities"`
	StatusStats     []GroupCount  `json:"statusStats"`
	SeverityStats   []GroupCount  `json:"severityStats"`
	TopActions      []GroupCount  `json:"topActions"`
	TopUsers        []GroupCount  `json:"topUsers"`
	HourlyStats     []BucketCount `json:"hourlyStats"`
	SecurityEvents  int64         `json:"securityEvents"`
}

type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, filter ActivityFilter) (*ActivityPage, error)
	ListForUser(ctx context.Context, userID string, filter ActivityFilter) (*ActivityPage, error)
	Stats(ctx context.Context, from, to time.Time) (*ActivityStats, error)
	SecurityEvents(ctx context.Context, limit int) ([]*domain.ActivityLog, error)
	Export(ctx context.Context, from, to time.Time) ([]*domain.ActivityLog, error)
	Clean(ctx context.Context, actor Actor, days int) (int64, error)
}
