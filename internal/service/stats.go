package service

import (
	"context"
	"errors"
	"time"

	"farmlink/internal/domain"
	"farmlink/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferredUser is one outbound referral as shown to the referrer.
type ReferredUser struct {
	HistoryID          uuid.UUID            `json:"history_id"`
	UserID             uuid.UUID            `json:"user_id"`
	Name               string               `json:"name"`
	Role               domain.Role          `json:"role"`
	ReferralType       domain.ReferralType  `json:"referral_type"`
	ReferralCode       string               `json:"referral_code"`
	Status             domain.HistoryStatus `json:"status"`
	RewardType         domain.RewardType    `json:"reward_type"`
	RewardAmount       string               `json:"reward_amount"`
	FreeDeliveries     int                  `json:"free_deliveries"`
	QualificationEvent *string              `json:"qualification_event,omitempty"`
	QualificationDate  *time.Time           `json:"qualification_date,omitempty"`
	ReferredAt         time.Time            `json:"referred_at"`
}

// ReferrerInfo describes who referred the user.
type ReferrerInfo struct {
	UserID       uuid.UUID            `json:"user_id"`
	Name         string               `json:"name"`
	Role         domain.Role          `json:"role"`
	ReferralType domain.ReferralType  `json:"referral_type"`
	Status       domain.HistoryStatus `json:"status"`
	ReferredAt   time.Time            `json:"referred_at"`
}

// ReferralStats is the read-only view of a user's referral state.
type ReferralStats struct {
	UserID                  uuid.UUID            `json:"user_id"`
	FarmerReferralCode      *string              `json:"farmer_referral_code"`
	CustomerReferralCode    *string              `json:"customer_referral_code"`
	ReferralStatus          domain.ProfileStatus `json:"referral_status"`
	RemainingCredit         string               `json:"remaining_credit"`
	TotalEarnedCredit       string               `json:"total_earned_credit"`
	FreeDeliveriesRemaining int                  `json:"free_deliveries_remaining"`
	TotalFreeDeliveries     int                  `json:"total_free_deliveries"`
	TotalReferrals          int                  `json:"total_referrals"`
	FarmerReferrals         int                  `json:"farmer_referrals"`
	CustomerReferrals       int                  `json:"customer_referrals"`
	PendingReferrals        int                  `json:"pending_referrals"`
	CompletedReferrals      int                  `json:"completed_referrals"`
	ReferredUsers           []ReferredUser       `json:"referred_users"`
	ReferredBy              *ReferrerInfo        `json:"referred_by"`
}

// HistoryPage is one page of a referrer's outbound history.
type HistoryPage struct {
	Items  []ReferredUser `json:"items"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func referredUserOf(h *models.ReferralHistory) ReferredUser {
	return ReferredUser{
		HistoryID:          h.ID,
		UserID:             h.ReferredID,
		Name:               h.Referred.DisplayName(),
		Role:               h.Referred.Role,
		ReferralType:       h.ReferralType,
		ReferralCode:       h.ReferralCode,
		Status:             h.Status,
		RewardType:         h.ReferrerRewardType,
		RewardAmount:       formatCents(h.ReferrerRewardCents),
		FreeDeliveries:     h.ReferrerFreeDeliveries,
		QualificationEvent: h.QualificationEvent,
		QualificationDate:  h.QualificationDate,
		ReferredAt:         h.CreatedAt,
	}
}

// GetReferralStats returns the profile, the aggregate counts and both
// directions of the user's referral history. A user with no profile yields
// domain.ErrNotFound: they have not used the referral program yet.
func (s *ReferralService) GetReferralStats(ctx context.Context, userID uuid.UUID) (*ReferralStats, error) {
	var out *ReferralStats
	err := s.tx.read(ctx, func(db *gorm.DB) error {
		refs := s.referralRepo.With(db)
		p, err := refs.GetProfileByUserID(userID)
		if err != nil {
			return err
		}
		outbound, err := refs.ListByReferrerID(userID, 0, 0)
		if err != nil {
			return err
		}

		out = &ReferralStats{
			UserID:                  p.UserID,
			FarmerReferralCode:      p.FarmerReferralCode,
			CustomerReferralCode:    p.CustomerReferralCode,
			ReferralStatus:          p.ReferralStatus,
			RemainingCredit:         formatCents(p.RemainingCreditCents),
			TotalEarnedCredit:       formatCents(p.TotalEarnedCreditCents),
			FreeDeliveriesRemaining: p.FreeDeliveriesRemaining,
			TotalFreeDeliveries:     p.TotalFreeDeliveries,
			TotalReferrals:          len(outbound),
			ReferredUsers:           make([]ReferredUser, 0, len(outbound)),
		}
		for i := range outbound {
			h := &outbound[i]
			switch h.ReferralType.ReferredRole() {
			case domain.RoleFarmer:
				out.FarmerReferrals++
			case domain.RoleConsumer:
				out.CustomerReferrals++
			}
			switch h.Status {
			case domain.HistoryPending:
				out.PendingReferrals++
			case domain.HistoryCompleted:
				out.CompletedReferrals++
			}
			out.ReferredUsers = append(out.ReferredUsers, referredUserOf(h))
		}

		inbound, err := refs.GetHistoryByReferredID(userID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out.ReferredBy = &ReferrerInfo{
			UserID:       inbound.ReferrerID,
			Name:         inbound.Referrer.DisplayName(),
			Role:         inbound.Referrer.Role,
			ReferralType: inbound.ReferralType,
			Status:       inbound.Status,
			ReferredAt:   inbound.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListReferralHistory pages through the user's outbound referrals, newest first.
func (s *ReferralService) ListReferralHistory(ctx context.Context, userID uuid.UUID, limit, offset int) (*HistoryPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	page := &HistoryPage{Limit: limit, Offset: offset, Items: []ReferredUser{}}
	err := s.tx.read(ctx, func(db *gorm.DB) error {
		refs := s.referralRepo.With(db)
		total, err := refs.CountByReferrerID(userID)
		if err != nil {
			return err
		}
		page.Total = total
		rows, err := refs.ListByReferrerID(userID, limit, offset)
		if err != nil {
			return err
		}
		for i := range rows {
			page.Items = append(page.Items, referredUserOf(&rows[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}
