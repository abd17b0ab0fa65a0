package models

import (
	"time"

	"farmlink/internal/domain"

	"github.com/google/uuid"
)

// ReferralProfile is the per-user referral record: the two codes the user hands
// out, who referred them, and their reward balances.
// ReferredBy is write-once. Totals never decrease and never exceed the
// lifetime caps; remaining balances never exceed the totals.
type ReferralProfile struct {
	ID                      uuid.UUID            `gorm:"type:char(36);primaryKey" json:"id"`
	UserID                  uuid.UUID            `gorm:"type:char(36);uniqueIndex;not null" json:"user_id"`
	ReferredBy              *uuid.UUID           `gorm:"type:char(36);index" json:"referred_by"`
	ReferralType            *domain.ReferralType `gorm:"size:32" json:"referral_type"`
	FarmerReferralCode      *string              `gorm:"uniqueIndex;size:12" json:"farmer_referral_code"`
	CustomerReferralCode    *string              `gorm:"uniqueIndex;size:12" json:"customer_referral_code"`
	RemainingCreditCents    int64                `gorm:"not null;default:0" json:"remaining_credit_cents"`
	TotalEarnedCreditCents  int64                `gorm:"not null;default:0" json:"total_earned_credit_cents"`
	FreeDeliveriesRemaining int                  `gorm:"not null;default:0" json:"free_deliveries_remaining"`
	TotalFreeDeliveries     int                  `gorm:"not null;default:0" json:"total_free_deliveries"`
	ReferralStatus          domain.ProfileStatus `gorm:"size:20;not null;default:'pending';index" json:"referral_status"`
	CreatedAt               time.Time            `json:"created_at"`
	UpdatedAt               time.Time            `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (ReferralProfile) TableName() string { return "referral_profiles" }

// HasCodes reports whether both outbound codes are assigned.
func (p *ReferralProfile) HasCodes() bool {
	return p.FarmerReferralCode != nil && p.CustomerReferralCode != nil
}

// ReferralHistory is the append-only record of one attribution. It is written
// pending or completed and settled at most once afterwards.
// A user can only be referred once, so ReferredID is unique.
type ReferralHistory struct {
	ID                     uuid.UUID            `gorm:"type:char(36);primaryKey" json:"id"`
	ReferrerID             uuid.UUID            `gorm:"type:char(36);not null;index" json:"referrer_id"`
	ReferredID             uuid.UUID            `gorm:"type:char(36);uniqueIndex;not null" json:"referred_id"`
	ReferralCode           string               `gorm:"size:12;not null;index" json:"referral_code"`
	ReferralType           domain.ReferralType  `gorm:"size:32;not null;index" json:"referral_type"`
	Status                 domain.HistoryStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ReferrerRewardType     domain.RewardType    `gorm:"size:20;not null;default:'none'" json:"referrer_reward_type"`
	ReferrerRewardCents    int64                `gorm:"not null;default:0" json:"referrer_reward_cents"`
	ReferrerFreeDeliveries int                  `gorm:"not null;default:0" json:"referrer_free_deliveries"`
	ReferredRewardType     domain.RewardType    `gorm:"size:20;not null;default:'none'" json:"referred_reward_type"`
	ReferredRewardCents    int64                `gorm:"not null;default:0" json:"referred_reward_cents"`
	ReferredFreeDeliveries int                  `gorm:"not null;default:0" json:"referred_free_deliveries"`
	QualificationEvent     *string              `gorm:"size:32" json:"qualification_event"`
	QualificationDate      *time.Time           `json:"qualification_date"`
	CreatedAt              time.Time            `json:"created_at"`
	UpdatedAt              time.Time            `json:"updated_at"`

	Referrer User `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
	Referred User `gorm:"foreignKey:ReferredID" json:"referred,omitempty"`
}

func (ReferralHistory) TableName() string { return "referral_histories" }
