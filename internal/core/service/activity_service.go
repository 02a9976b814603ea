package service

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

const (
	defaultActivityLimit     = 50
	defaultUserActivityLimit = 20
	defaultSecurityLimit     = 20
	maxActivityLimit         = 200
	maxPage                  = 100_000
	exportLimit              = 10000
	defaultRetentionDays     = 365
	topGroupLimit            = 10
)

var activitySortFields = map[string]bool{
	ports.ActivityFieldCreatedAt:    true,
	ports.ActivityFieldAction:       true,
	ports.ActivityFieldStatus:       true,
	ports.ActivityFieldSeverity:     true,
	ports.ActivityFieldUserEmail:    true,
	ports.ActivityFieldIPAddress:    true,
	ports.ActivityFieldResourceType: true,
}

var securitySeverities = []string{domain.SeverityHigh, domain.SeverityCritical}

type activityService struct {
	repo  ports.ActivityRepository
	audit ports.AuditRepository
	log   zerolog.Logger
	now   func() time.Time
}

// NewActivityService returns an ActivityService backed by repo.
func NewActivityService(repo ports.ActivityRepository, audit ports.AuditRepository, log zerolog.Logger) ports.ActivityService {
	return &activityService{
		repo:  repo,
		audit: audit,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// userActivity builds an activity entry attributed to u.
func userActivity(u *domain.User, action, resource, status, severity string, meta domain.RequestMeta, details string) domain.ActivityLog {
	return domain.ActivityLog{
		UserID:       u.ID,
		UserEmail:    u.Email,
		UserRole:     u.Role,
		Action:       action,
		ResourceType: resource,
		ResourceID:   u.ID,
		Status:       status,
		Severity:     severity,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
		Details:      details,
	}
}

// actorActivity builds an activity entry for a resource touched by actor.
func actorActivity(actor ports.Actor, action, resource, resourceID, details string) domain.ActivityLog {
	return domain.ActivityLog{
		UserID:       actor.ID,
		UserEmail:    actor.Email,
		UserRole:     actor.Role,
		Action:       action,
		ResourceType: resource,
		ResourceID:   resourceID,
		Status:       domain.OutcomeSuccess,
		Severity:     domain.SeverityLow,
		IPAddress:    actor.Meta.IP,
		UserAgent:    actor.Meta.UserAgent,
		Details:      details,
	}
}

func (s *activityService) Record(ctx context.Context, entry domain.ActivityLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if entry.Status == "" {
		entry.Status = domain.OutcomeSuccess
	}
	if entry.Severity == "" {
		entry.Severity = domain.SeverityLow
	}
	if err := s.repo.Insert(ctx, &entry); err != nil {
		s.log.Error().Err(err).Str("action", entry.Action).Str("user_id", entry.UserID).Msg("failed to record activity")
	}
}

func normalizePage(page, limit, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit <= 0 {
		limit = def
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	return page, limit
}

func pagination(page, limit int, total int64) ports.Pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return ports.Pagination{CurrentPage: page, TotalPages: pages, TotalItems: total, PerPage: limit}
}

func (s *activityService) List(ctx context.Context, filter ports.ActivityFilter) (*ports.ActivityPage, error) {
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit, defaultActivityLimit)
	if !activitySortFields[filter.SortBy] {
		filter.SortBy = ports.ActivityFieldCreatedAt
		filter.SortDesc = true
	}
	return s.page(ctx, filter)
}

func (s *activityService) ListForUser(ctx context.Context, userID string, filter ports.ActivityFilter) (*ports.ActivityPage, error) {
	filter.UserID = userID
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit, defaultUserActivityLimit)
	filter.SortBy = ports.ActivityFieldCreatedAt
	filter.SortDesc = true
	return s.page(ctx, filter)
}

func (s *activityService) page(ctx context.Context, filter ports.ActivityFilter) (*ports.ActivityPage, error) {
	var (
		logs  []*domain.ActivityLog
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		logs, err = s.repo.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []*domain.ActivityLog{}
	}
	return &ports.ActivityPage{Logs: logs, Pagination: pagination(filter.Page, filter.Limit, total)}, nil
}

func (s *activityService) Stats(ctx context.Context, from, to time.Time) (*ports.ActivityStats, error) {
	base := ports.ActivityFilter{From: from, To: to}
	security := base
	security.Severities = securitySeverities

	stats := &ports.ActivityStats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalActivities, err = s.repo.Count(gctx, base)
		return err
	})
	g.Go(func() (err error) {
		stats.StatusStats, err = s.repo.GroupBy(gctx, ports.ActivityFieldStatus, base, 0)
		return err
	})
	g.Go(func() (err error) {
		stats.SeverityStats, err = s.repo.GroupBy(gctx, ports.ActivityFieldSeverity, base, 0)
		return err
	})
	g.Go(func() (err error) {
		stats.TopActions, err = s.repo.GroupBy(gctx, ports.ActivityFieldAction, base, topGroupLimit)
		return err
	})
	g.Go(func() (err error) {
		stats.TopUsers, err = s.repo.GroupBy(gctx, ports.ActivityFieldUserEmail, base, topGroupLimit)
		return err
	})
	g.Go(func() (err error) {
		stats.HourlyStats, err = s.repo.Hourly(gctx, s.now().Add(-24*time.Hour))
		return err
	})
	g.Go(func() (err error) {
		stats.SecurityEvents, err = s.repo.Count(gctx, security)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *activityService) SecurityEvents(ctx context.Context, limit int) ([]*domain.ActivityLog, error) {
	_, limit = normalizePage(1, limit, defaultSecurityLimit)
	return s.repo.List(ctx, ports.ActivityFilter{
		Severities: securitySeverities,
		SortBy:     ports.ActivityFieldCreatedAt,
		SortDesc:   true,
		Page:       1,
		Limit:      limit,
	})
}

func (s *activityService) Export(ctx context.Context, from, to time.Time) ([]*domain.ActivityLog, error) {
	return s.repo.List(ctx, ports.ActivityFilter{
		From:     from,
		To:       to,
		SortBy:   ports.ActivityFieldCreatedAt,
		SortDesc: true,
		Page:     1,
		Limit:    exportLimit,
	})
}

// Clean removes entries older than days and returns how many were deleted.
func (s *activityService) Clean(ctx context.Context, actor ports.Actor, days int) (int64, error) {
	if days <= 0 {
		days = defaultRetentionDays
	}
	cutoff := s.now().AddDate(0, 0, -days)
	deleted, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int64("deleted", deleted).Int("days", days).Msg("activity logs cleaned")
	writeAudit(ctx, s.audit, s.log, actor, "CLEAN_ACTIVITY_LOGS", "activity_logs", "", map[string]string{
		"olderThanDays": strconv.Itoa(days),
		"deleted":       strconv.FormatInt(deleted, 10),
	})
	return deleted, nil
}
