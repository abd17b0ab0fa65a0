package models

import (
	"strings"
	"time"

	"farmlink/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the slice of the marketplace user directory the referral ledger reads.
type User struct {
	ID        uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	Name      string         `gorm:"size:128;not null;default:''" json:"name"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role      domain.Role    `gorm:"size:20;not null;index" json:"role"` // farmer | consumer | admin | driver
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) IsFarmer() bool   { return u.Role == domain.RoleFarmer }
func (u *User) IsConsumer() bool { return u.Role == domain.RoleConsumer }

// DisplayName falls back to the email local part when no name is set.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}
