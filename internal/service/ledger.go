package service

import (
	"context"
	"errors"
	"time"

	"farmlink/config"
	"farmlink/internal/domain"
	"farmlink/internal/metrics"
	"farmlink/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CashbackResult is returned by ApplyFarmerReferralCashback.
type CashbackResult struct {
	FarmerID              uuid.UUID  `json:"farmer_id"`
	CashbackAmountCents   int64      `json:"cashback_amount_cents"`
	CashbackAmount        string     `json:"cashback_amount"`
	ReferrerID            uuid.UUID  `json:"referrer_id"`
	ReferrerCashbackCents int64      `json:"referrer_cashback_cents"`
	ReferrerCashback      string     `json:"referrer_cashback"`
	HistoryID             uuid.UUID  `json:"history_id"`
	QualifiedAt           *time.Time `json:"qualified_at,omitempty"`
}

// grantFreeDeliveries credits userID with the free deliveries one referral is
// worth, clamped to the lifetime cap. A profile already at the cap gets 0.
func (s *ReferralService) grantFreeDeliveries(tx *gorm.DB, userID uuid.UUID) (int, error) {
	refs := s.referralRepo.With(tx)
	p, err := refs.LockProfileByUserID(userID)
	if err != nil {
		return 0, err
	}
	grant := s.policy.FreeDeliveryGrant(p.TotalFreeDeliveries)
	if err := refs.AddFreeDeliveries(p.ID, grant, s.policy.MaxLifetimeFreeDeliveries); err != nil {
		return 0, err
	}
	return grant, nil
}

// ApplyFarmerReferralCashback settles a referred farmer's pending referral on
// their first qualifying sale. The farmer receives the per-referral cashback,
// bounded by the lifetime cap, and their profile completes. When the referrer
// is also a farmer they receive the same bounded grant.
//
// A second call fails with domain.ErrAlreadyCompleted; a farmer whose lifetime
// cashback is already at the cap fails with domain.ErrCapReached and nothing is
// written.
func (s *ReferralService) ApplyFarmerReferralCashback(ctx context.Context, farmerID uuid.UUID) (*CashbackResult, error) {
	var res *CashbackResult
	err := s.tx.run(ctx, "apply_farmer_cashback", func(tx *gorm.DB) error {
		refs := s.referralRepo.With(tx)

		p, err := refs.LockProfileByUserID(farmerID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotReferred
		}
		if err != nil {
			return err
		}
		if p.ReferredBy == nil {
			return domain.ErrNotReferred
		}
		switch p.ReferralStatus {
		case domain.ProfileCompleted:
			return domain.ErrAlreadyCompleted
		case domain.ProfileBlocked:
			return domain.ErrProfileBlocked
		}

		h, err := refs.GetHistoryByReferredID(farmerID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotReferred
		}
		if err != nil {
			return err
		}
		if h.Status.Terminal() {
			return domain.ErrAlreadyCompleted
		}
		if h.ReferralType.ReferredRole() != domain.RoleFarmer {
			return domain.ErrUnsupportedRoleCombination
		}

		if p.TotalEarnedCreditCents >= s.policy.MaxLifetimeCashbackCents {
			return domain.ErrCapReached
		}
		grant := s.policy.CashbackGrant(p.TotalEarnedCreditCents)
		if err := refs.AddCashback(p.ID, grant, s.policy.MaxLifetimeCashbackCents); err != nil {
			return err
		}
		if err := refs.CompleteProfile(p.ID); err != nil {
			return err
		}

		var referrerGrant int64
		referrerReward := domain.RewardNone
		if h.ReferralType.ReferrerRole() == domain.RoleFarmer {
			rp, err := refs.LockProfileByUserID(h.ReferrerID)
			if err != nil {
				return err
			}
			referrerGrant = s.policy.CashbackGrant(rp.TotalEarnedCreditCents)
			if err := refs.AddCashback(rp.ID, referrerGrant, s.policy.MaxLifetimeCashbackCents); err != nil {
				return err
			}
			referrerReward = domain.RewardCashback
		}

		now := time.Now()
		err = refs.SettleHistory(h.ID, repository.Settlement{
			Status:              domain.HistoryCompleted,
			ReferrerRewardType:  referrerReward,
			ReferrerRewardCents: referrerGrant,
			ReferredRewardType:  domain.RewardCashback,
			ReferredRewardCents: grant,
			QualificationEvent:  domain.QualificationFirstSale,
			QualificationDate:   now,
		})
		if err != nil {
			return err
		}

		res = &CashbackResult{
			FarmerID:              farmerID,
			CashbackAmountCents:   grant,
			CashbackAmount:        formatCents(grant),
			ReferrerID:            h.ReferrerID,
			ReferrerCashbackCents: referrerGrant,
			ReferrerCashback:      formatCents(referrerGrant),
			HistoryID:             h.ID,
			QualifiedAt:           &now,
		}
		return nil
	})

	fields := logrus.Fields{"farmer_id": farmerID}
	if err != nil {
		if domain.IsBusiness(err) {
			s.log.WithFields(fields).WithError(err).Info("farmer cashback not applied")
		} else {
			config.LogError(s.log, "referral", "ApplyFarmerReferralCashback", "apply farmer cashback", fields, err)
		}
		return nil, err
	}

	metrics.CashbackGrantedCents.Add(float64(res.CashbackAmountCents + res.ReferrerCashbackCents))
	s.log.WithFields(fields).WithFields(logrus.Fields{
		"cashback_cents":          res.CashbackAmountCents,
		"referrer_id":             res.ReferrerID,
		"referrer_cashback_cents": res.ReferrerCashbackCents,
	}).Info("farmer referral cashback applied")
	return res, nil
}
