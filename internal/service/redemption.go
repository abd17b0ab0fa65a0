package service

import (
	"context"
	"errors"

	"farmlink/config"
	"farmlink/internal/domain"
	"farmlink/internal/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RedemptionResult reports what happened to an order's delivery fee.
// AlreadyApplied is set when an earlier call waived the fee.
type RedemptionResult struct {
	Applied                 bool      `json:"applied"`
	AlreadyApplied          bool      `json:"already_applied,omitempty"`
	OrderID                 uuid.UUID `json:"order_id"`
	WaivedDeliveryFeeCents  int64     `json:"waived_delivery_fee_cents"`
	WaivedDeliveryFee       string    `json:"waived_delivery_fee"`
	FreeDeliveriesRemaining int       `json:"free_deliveries_remaining"`
}

// FreeDeliveryStatus is returned by CheckFreeDeliveries.
type FreeDeliveryStatus struct {
	HasFreeDeliveries       bool `json:"has_free_deliveries"`
	FreeDeliveriesRemaining int  `json:"free_deliveries_remaining"`
	TotalFreeDeliveries     int  `json:"total_free_deliveries"`
}

// ApplyFreeDeliveryIfAvailable spends one free delivery on the order. The
// order row is locked first, so concurrent calls for the same order serialize
// and every call after the first sees free_delivery_applied and changes
// nothing. No credit, or no profile, is Applied=false without error.
func (s *ReferralService) ApplyFreeDeliveryIfAvailable(ctx context.Context, orderID, userID uuid.UUID) (*RedemptionResult, error) {
	var res *RedemptionResult
	err := s.tx.run(ctx, "apply_free_delivery", func(tx *gorm.DB) error {
		orders := s.orderRepo.With(tx)
		refs := s.referralRepo.With(tx)

		o, err := orders.LockByID(orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return domain.ErrOrderMismatch
		}
		res = &RedemptionResult{OrderID: o.ID}
		if o.FreeDeliveryApplied {
			res.Applied = true
			res.AlreadyApplied = true
			res.WaivedDeliveryFeeCents = o.WaivedDeliveryFeeCents
			res.WaivedDeliveryFee = formatCents(o.WaivedDeliveryFeeCents)
			return nil
		}

		p, err := refs.LockProfileByUserID(userID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		res.FreeDeliveriesRemaining = p.FreeDeliveriesRemaining
		if p.FreeDeliveriesRemaining <= 0 || p.ReferralStatus == domain.ProfileBlocked {
			return nil
		}

		if err := refs.ConsumeFreeDelivery(p.ID); err != nil {
			return err
		}
		if err := orders.WaiveDeliveryFee(o); err != nil {
			return err
		}
		res.Applied = true
		res.WaivedDeliveryFeeCents = o.WaivedDeliveryFeeCents
		res.WaivedDeliveryFee = formatCents(o.WaivedDeliveryFeeCents)
		res.FreeDeliveriesRemaining = p.FreeDeliveriesRemaining - 1
		return nil
	})

	fields := logrus.Fields{"order_id": orderID, "user_id": userID}
	if err != nil {
		metrics.Redemptions.WithLabelValues(metrics.OutcomeError).Inc()
		if !domain.IsBusiness(err) {
			config.LogError(s.log, "referral", "ApplyFreeDeliveryIfAvailable", "redeem free delivery", fields, err)
		}
		return nil, err
	}

	switch {
	case res.AlreadyApplied:
		metrics.Redemptions.WithLabelValues(metrics.OutcomeDuplicate).Inc()
	case res.Applied:
		metrics.Redemptions.WithLabelValues(metrics.OutcomeApplied).Inc()
		s.log.WithFields(fields).WithField("waived_cents", res.WaivedDeliveryFeeCents).Info("free delivery redeemed")
	default:
		metrics.Redemptions.WithLabelValues(metrics.OutcomeUnavailable).Inc()
	}
	return res, nil
}

// CheckFreeDeliveries reports the user's free delivery balance. A user without
// a profile simply has none.
func (s *ReferralService) CheckFreeDeliveries(ctx context.Context, userID uuid.UUID) (*FreeDeliveryStatus, error) {
	out := &FreeDeliveryStatus{}
	err := s.tx.read(ctx, func(db *gorm.DB) error {
		p, err := s.referralRepo.With(db).GetProfileByUserID(userID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out.FreeDeliveriesRemaining = p.FreeDeliveriesRemaining
		out.TotalFreeDeliveries = p.TotalFreeDeliveries
		out.HasFreeDeliveries = p.FreeDeliveriesRemaining > 0 && p.ReferralStatus != domain.ProfileBlocked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
