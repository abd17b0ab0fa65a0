package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records an operator action against the referral ledger.
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	ActorID    *uuid.UUID `gorm:"type:char(36);index" json:"actor_id"`
	Action     string     `gorm:"size:100;not null;index" json:"action"`
	Resource   string     `gorm:"size:100;index" json:"resource"`
	ResourceID string     `gorm:"size:100;index" json:"resource_id"`
	IP         string     `gorm:"size:45" json:"ip"`
	UserAgent  string     `gorm:"size:512" json:"user_agent"`
	Metadata   string     `gorm:"type:text" json:"metadata"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
