package domain

import "time"

// AuditLog records an administrative mutation.
type AuditLog struct {
	ID         string            `json:"_id"`
	ActorID    string            `json:"actorId"`
	ActorEmail string            `json:"actorEmail,omitempty"`
	Action     string            `json:"action"`
	TargetType string            `json:"targetType"`
	TargetID   string            `json:"targetId"`
	Changes    map[string]string `json:"changes,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}
