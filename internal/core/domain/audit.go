package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCheckIn   AuditAction = "CHECK_IN"
	AuditActionCheckOut  AuditAction = "CHECK_OUT"
	AuditActionSettleNow AuditAction = "SETTLE_NOW"
)

// AuditLog records a single session-changing request.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	UserID       string      `json:"user_id"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
