package ports

import (
	"context"
	"time"

	"github.com/revivereads/marketplace/internal/core/domain"
)

// AdminSummary feeds the dashboard header cards.
type AdminSummary struct {
	NewUsersCount   int64 `json:"newUsersCount"`
	NewBooksCount   int64 `json:"newBooksCount"`
	TotalBooksCount int64 `json:"totalBooksCount"`
	BooksPending    int64 `json:"booksPending"`
}

// SecurityMetrics feeds the security dashboard.
type SecurityMetrics struct {
	TotalUsers           int64        `json:"totalUsers"`
	ActiveUsers          int64        `json:"activeUsers"`
	LockedAccounts       int64        `json:"lockedAccounts"`
	FailedLogins         int64        `json:"failedLogins"`
	SuspiciousActivities int64        `json:"suspiciousActivities"`
	RateLimitViolations  int64        `json:"rateLimitViolations"`
	RecentSecurityEvents int64        `json:"recentSecurityEvents"`
	TopActions           []GroupCount `json:"topActions"`
	SecurityEventTrends  []GroupCount `json:"securityEventTrends"`
	TopSuspiciousIPs     []GroupCount `json:"topSuspiciousIPs"`
	LastUpdated          time.Time    `json:"lastUpdated"`
}

// Pagination describes a page of a listing.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalLogs"`
	PerPage     int   `json:"logsPerPage"`
}

type AuditPage struct {
	Logs       []*domain.AuditLog `json:"logs"`
	Pagination Pagination         `json:"pagination"`
}

type AdminService interface {
	Summary(ctx context.Context) (*AdminSummary, error)
	SecurityMetrics(ctx context.Context) (*SecurityMetrics, error)
	UserActivityStats(ctx context.Context) ([]BucketCount, error)
	BookListingStats(ctx context.Context) ([]BucketCount, error)
	Users(ctx context.Context) ([]*domain.User, error)
	AuditLogs(ctx context.Context, page, limit int) (*AuditPage, error)
}
