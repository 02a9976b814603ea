package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

// writeAudit appends an admin mutation to the audit trail. A failed write is
// logged and never fails the mutation itself.
func writeAudit(ctx context.Context, repo ports.AuditRepository, log zerolog.Logger, actor ports.Actor, action, targetType, targetID string, changes map[string]string) {
	entry := &domain.AuditLog{
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Changes:    changes,
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.Insert(ctx, entry); err != nil {
		log.Error().Err(err).Str("action", action).Str("target_id", targetID).Msg("failed to write audit log")
	}
}
