package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

const (
	summaryWindow  = 7 * 24 * time.Hour
	securityWindow = 24 * time.Hour
	trendWindow    = 7 * 24 * time.Hour
	defaultAudit   = 50
)

// failedLoginActions are the authentication failures counted on the dashboard.
var failedLoginActions = []string{domain.ActionLoginFailed, domain.ActionOTPFailed}

type adminService struct {
	users    ports.UserRepository
	books    ports.BookRepository
	activity ports.ActivityRepository
	audit    ports.AuditRepository
	log      zerolog.Logger
	now      func() time.Time
}

// NewAdminService returns the dashboard aggregation service.
func NewAdminService(
	users ports.UserRepository,
	books ports.BookRepository,
	activity ports.ActivityRepository,
	audit ports.AuditRepository,
	log zerolog.Logger,
) ports.AdminService {
	return &adminService{
		users:    users,
		books:    books,
		activity: activity,
		audit:    audit,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *adminService) Summary(ctx context.Context) (*ports.AdminSummary, error) {
	since := s.now().Add(-summaryWindow)
	out := &ports.AdminSummary{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.NewUsersCount, err = s.users.Count(gctx, ports.UserCountFilter{CreatedSince: since})
		return err
	})
	g.Go(func() (err error) {
		out.NewBooksCount, err = s.books.Count(gctx, ports.BookCountFilter{CreatedSince: since})
		return err
	})
	g.Go(func() (err error) {
		out.TotalBooksCount, err = s.books.Count(gctx, ports.BookCountFilter{})
		return err
	})
	g.Go(func() (err error) {
		out.BooksPending, err = s.books.Count(gctx, ports.BookCountFilter{Status: domain.BookPending})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SecurityMetrics counts over the last 24 hours; trends and rankings cover
// the last 7 days.
func (s *adminService) SecurityMetrics(ctx context.Context) (*ports.SecurityMetrics, error) {
	now := s.now()
	day := now.Add(-securityWindow)
	week := now.Add(-trendWindow)
	out := &ports.SecurityMetrics{LastUpdated: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalUsers, err = s.users.Count(gctx, ports.UserCountFilter{})
		return err
	})
	g.Go(func() (err error) {
		out.ActiveUsers, err = s.users.Count(gctx, ports.UserCountFilter{ActiveSince: day})
		return err
	})
	g.Go(func() (err error) {
		out.LockedAccounts, err = s.users.Count(gctx, ports.UserCountFilter{LockedAt: now})
		return err
	})
	g.Go(func() (err error) {
		out.FailedLogins, err = s.activity.Count(gctx, ports.ActivityFilter{Actions: failedLoginActions, From: day})
		return err
	})
	g.Go(func() (err error) {
		out.SuspiciousActivities, err = s.activity.Count(gctx, ports.ActivityFilter{
			Status:     domain.OutcomeFailure,
			Severities: securitySeverities,
			From:       day,
		})
		return err
	})
	g.Go(func() (err error) {
		out.RateLimitViolations, err = s.activity.Count(gctx, ports.ActivityFilter{Action: domain.ActionRateLimitExceeded, From: day})
		return err
	})
	g.Go(func() (err error) {
		out.RecentSecurityEvents, err = s.activity.Count(gctx, ports.ActivityFilter{Severities: securitySeverities, From: day})
		return err
	})
	g.Go(func() (err error) {
		out.TopActions, err = s.activity.GroupBy(gctx, ports.ActivityFieldAction, ports.ActivityFilter{From: week}, topGroupLimit)
		return err
	})
	g.Go(func() (err error) {
		out.SecurityEventTrends, err = s.activity.Daily(gctx, ports.ActivityFilter{Severities: securitySeverities, From: week})
		return err
	})
	g.Go(func() (err error) {
		out.TopSuspiciousIPs, err = s.activity.GroupBy(gctx, ports.ActivityFieldIPAddress, ports.ActivityFilter{
			Status: domain.OutcomeFailure,
			From:   week,
		}, topGroupLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *adminService) UserActivityStats(ctx context.Context) ([]ports.BucketCount, error) {
	return s.users.WeeklyActivity(ctx)
}

func (s *adminService) BookListingStats(ctx context.Context) ([]ports.BucketCount, error) {
	return s.books.WeeklyListings(ctx)
}

func (s *adminService) Users(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

func (s *adminService) AuditLogs(ctx context.Context, page, limit int) (*ports.AuditPage, error) {
	page, limit = normalizePage(page, limit, defaultAudit)
	logs, total, err := s.audit.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	return &ports.AuditPage{Logs: logs, Pagination: pagination(page, limit, total)}, nil
}
