package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"farmlink/config"
	"farmlink/internal/domain"
	"farmlink/internal/metrics"
	"farmlink/internal/models"
	"farmlink/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReferralService issues referral codes, attributes signups to referrers and
// runs the reward ledger. All state lives in the store; every mutation is one
// transaction over the rows it touches.
type ReferralService struct {
	referralRepo *repository.ReferralRepository
	userRepo     *repository.UserRepository
	orderRepo    *repository.OrderRepository
	codes        *CodeGenerator
	policy       domain.RewardPolicy
	tx           *txRunner
	log          logrus.FieldLogger
}

func NewReferralService(
	db *gorm.DB,
	referralRepo *repository.ReferralRepository,
	userRepo *repository.UserRepository,
	orderRepo *repository.OrderRepository,
	cfg config.ReferralConfig,
	log logrus.FieldLogger,
) *ReferralService {
	return &ReferralService{
		referralRepo: referralRepo,
		userRepo:     userRepo,
		orderRepo:    orderRepo,
		codes:        NewCodeGenerator(cfg.CodeRetries),
		policy:       cfg.Policy,
		tx:           newTxRunner(db, log, cfg.TxAttempts, cfg.OpTimeout),
		log:          log.WithField("module", "referral"),
	}
}

// Policy returns the reward constants the service was built with.
func (s *ReferralService) Policy() domain.RewardPolicy { return s.policy }

// AttributionResult is returned by ApplyReferralCode.
type AttributionResult struct {
	ReferralType           domain.ReferralType `json:"referral_type"`
	RewardDescription      string              `json:"reward_description"`
	ReferrerID             uuid.UUID           `json:"referrer_id"`
	ReferredFreeDeliveries int                 `json:"referred_free_deliveries"`
	ReferrerFreeDeliveries int                 `json:"referrer_free_deliveries"`
	PendingCashbackCents   int64               `json:"pending_cashback_cents"`
	PendingCashback        string              `json:"pending_cashback"`
}

// ReferralCodes holds a user's two outbound codes.
type ReferralCodes struct {
	FarmerReferralCode   string `json:"farmer_referral_code"`
	CustomerReferralCode string `json:"customer_referral_code"`
}

// CodeValidation is the answer to ValidateReferralCode. An unknown code is
// Valid=false, not an error.
type CodeValidation struct {
	Valid        bool            `json:"valid"`
	ReferrerRole domain.Role     `json:"referrer_role,omitempty"`
	ReferrerID   *uuid.UUID      `json:"referrer_id,omitempty"`
	CodeType     domain.CodeKind `json:"code_type,omitempty"`
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ensureProfile returns the user's profile locked FOR UPDATE, creating it with
// both codes when absent and filling any missing code otherwise.
func (s *ReferralService) ensureProfile(tx *gorm.DB, userID uuid.UUID) (*models.ReferralProfile, error) {
	refs := s.referralRepo.With(tx)
	p, err := refs.LockProfileByUserID(userID)
	if errors.Is(err, domain.ErrNotFound) {
		p, err = s.codes.CreateProfile(tx, userID)
		if errors.Is(err, errProfileExists) {
			p, err = refs.LockProfileByUserID(userID)
		}
	}
	if err != nil {
		return nil, err
	}
	if !p.HasCodes() {
		if err := s.codes.EnsureCodes(tx, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ApplyReferralCode attributes newUserID to the owner of code. role is the
// caller-asserted role of the new user; when set it must agree with the user
// directory.
//
// Consumer signups settle immediately: both sides receive free deliveries
// bounded by the lifetime cap and the history row is completed. Farmer
// signups leave the history row pending until ApplyFarmerReferralCashback.
func (s *ReferralService) ApplyReferralCode(ctx context.Context, code string, newUserID uuid.UUID, role domain.Role) (*AttributionResult, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	var res *AttributionResult
	err := s.tx.run(ctx, "apply_referral_code", func(tx *gorm.DB) error {
		refs := s.referralRepo.With(tx)
		users := s.userRepo.With(tx)

		newUser, err := users.FindUser(newUserID)
		if err != nil {
			return err
		}
		if role != "" && role != newUser.Role {
			return fmt.Errorf("%w: asserted role %s, directory role %s", domain.ErrUnsupportedRoleCombination, role, newUser.Role)
		}

		owner, kind, err := refs.FindProfileByCode(code)
		if err != nil {
			return err
		}
		if owner.ReferralStatus == domain.ProfileBlocked {
			return domain.ErrInvalidCode
		}
		if owner.UserID == newUserID {
			return domain.ErrSelfReferral
		}

		target, err := s.ensureProfile(tx, newUserID)
		if err != nil {
			return err
		}
		if target.ReferredBy != nil {
			return domain.ErrAlreadyReferred
		}
		if target.ReferralStatus == domain.ProfileBlocked {
			return domain.ErrProfileBlocked
		}

		referrer, err := users.FindUser(owner.UserID)
		if err != nil {
			return err
		}
		referralType, err := domain.ClassifyReferral(referrer.Role, newUser.Role)
		if err != nil {
			return err
		}

		if err := refs.SetReferrer(target.ID, referrer.ID, referralType); err != nil {
			return err
		}
		h := &models.ReferralHistory{
			ReferrerID:   referrer.ID,
			ReferredID:   newUserID,
			ReferralCode: code,
			ReferralType: referralType,
			Status:       domain.HistoryPending,
		}
		if err := refs.CreateHistory(h); err != nil {
			return err
		}

		res = &AttributionResult{ReferralType: referralType, ReferrerID: referrer.ID}

		switch referralType.ReferredRole() {
		case domain.RoleConsumer:
			referredGrant, err := s.grantFreeDeliveries(tx, newUserID)
			if err != nil {
				return err
			}
			referrerGrant, err := s.grantFreeDeliveries(tx, referrer.ID)
			if err != nil {
				return err
			}
			err = refs.SettleHistory(h.ID, repository.Settlement{
				Status:                 domain.HistoryCompleted,
				ReferrerRewardType:     domain.RewardFreeDeliveries,
				ReferrerFreeDeliveries: referrerGrant,
				ReferredRewardType:     domain.RewardFreeDeliveries,
				ReferredFreeDeliveries: referredGrant,
				QualificationEvent:     domain.QualificationSignup,
				QualificationDate:      time.Now(),
			})
			if err != nil {
				return err
			}
			res.ReferredFreeDeliveries = referredGrant
			res.ReferrerFreeDeliveries = referrerGrant
			res.RewardDescription = freeDeliveryDescription(referredGrant)
		case domain.RoleFarmer:
			res.PendingCashbackCents = s.policy.CashbackGrant(target.TotalEarnedCreditCents)
			res.PendingCashback = formatCents(res.PendingCashbackCents)
			res.RewardDescription = fmt.Sprintf("%s cashback will be credited after your first sale (code type %s)", res.PendingCashback, kind)
		}
		return nil
	})

	fields := logrus.Fields{"user_id": newUserID, "code": code}
	if err != nil {
		outcome := metrics.OutcomeError
		if domain.IsBusiness(err) {
			outcome = metrics.OutcomeRejected
			s.log.WithFields(fields).WithError(err).Info("referral code rejected")
		} else {
			config.LogError(s.log, "referral", "ApplyReferralCode", "apply referral code", fields, err)
		}
		metrics.Attributions.WithLabelValues("unknown", outcome).Inc()
		return nil, err
	}

	metrics.Attributions.WithLabelValues(string(res.ReferralType), metrics.OutcomeOK).Inc()
	metrics.FreeDeliveriesGranted.Add(float64(res.ReferredFreeDeliveries + res.ReferrerFreeDeliveries))
	s.log.WithFields(fields).WithFields(logrus.Fields{
		"referrer_id":              res.ReferrerID,
		"referral_type":            res.ReferralType,
		"referred_free_deliveries": res.ReferredFreeDeliveries,
		"referrer_free_deliveries": res.ReferrerFreeDeliveries,
	}).Info("referral attributed")
	return res, nil
}

func freeDeliveryDescription(n int) string {
	switch n {
	case 0:
		return "Referral recorded. The free delivery limit has been reached, so no new deliveries were added"
	case 1:
		return "You received 1 free delivery"
	}
	return fmt.Sprintf("You received %d free deliveries", n)
}

// GenerateReferralCode returns the user's codes, creating the profile and any
// missing code on first use. Calling it again returns the same codes.
func (s *ReferralService) GenerateReferralCode(ctx context.Context, userID uuid.UUID, role domain.Role) (*ReferralCodes, error) {
	var existing *models.ReferralProfile
	err := s.tx.read(ctx, func(db *gorm.DB) error {
		u, err := s.userRepo.With(db).FindUser(userID)
		if err != nil {
			return err
		}
		if role != "" && role != u.Role {
			return fmt.Errorf("%w: asserted role %s, directory role %s", domain.ErrUnsupportedRoleCombination, role, u.Role)
		}
		if !u.Role.CanRefer() {
			return fmt.Errorf("%w: role %s cannot refer", domain.ErrUnsupportedRoleCombination, u.Role)
		}
		p, err := s.referralRepo.With(db).GetProfileByUserID(userID)
		if err == nil && p.HasCodes() {
			existing = p
			return nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return codesOf(existing), nil
	}

	var p *models.ReferralProfile
	err = s.tx.run(ctx, "generate_referral_code", func(tx *gorm.DB) error {
		var err error
		p, err = s.ensureProfile(tx, userID)
		return err
	})
	if err != nil {
		config.LogError(s.log, "referral", "GenerateReferralCode", "ensure profile codes", logrus.Fields{"user_id": userID}, err)
		return nil, err
	}
	return codesOf(p), nil
}

func codesOf(p *models.ReferralProfile) *ReferralCodes {
	out := &ReferralCodes{}
	if p.FarmerReferralCode != nil {
		out.FarmerReferralCode = *p.FarmerReferralCode
	}
	if p.CustomerReferralCode != nil {
		out.CustomerReferralCode = *p.CustomerReferralCode
	}
	return out
}

// ValidateReferralCode reports whether code can be used and who owns it.
func (s *ReferralService) ValidateReferralCode(ctx context.Context, code string) (*CodeValidation, error) {
	code = normalizeCode(code)
	if code == "" {
		return &CodeValidation{Valid: false}, nil
	}
	var out *CodeValidation
	err := s.tx.read(ctx, func(db *gorm.DB) error {
		p, kind, err := s.referralRepo.With(db).FindProfileByCode(code)
		if errors.Is(err, domain.ErrInvalidCode) {
			out = &CodeValidation{Valid: false}
			return nil
		}
		if err != nil {
			return err
		}
		if p.ReferralStatus == domain.ProfileBlocked {
			out = &CodeValidation{Valid: false}
			return nil
		}
		u, err := s.userRepo.With(db).FindUser(p.UserID)
		if errors.Is(err, domain.ErrUserNotFound) {
			out = &CodeValidation{Valid: false}
			return nil
		}
		if err != nil {
			return err
		}
		id := u.ID
		out = &CodeValidation{Valid: true, ReferrerRole: u.Role, ReferrerID: &id, CodeType: kind}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BlockProfile moves the user's profile to the terminal blocked state. Their
// codes stop validating and the profile can no longer be attributed.
func (s *ReferralService) BlockProfile(ctx context.Context, userID uuid.UUID) error {
	err := s.tx.run(ctx, "block_profile", func(tx *gorm.DB) error {
		return s.referralRepo.With(tx).BlockProfile(userID)
	})
	if err != nil {
		return err
	}
	s.log.WithField("user_id", userID).Warn("referral profile blocked")
	return nil
}
