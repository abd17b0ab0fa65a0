package repository

import (
	"errors"
	"fmt"
	"time"

	"farmlink/internal/database"
	"farmlink/internal/domain"
	"farmlink/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferralRepository is the referral profile store and the history ledger.
// Every balance mutation is a single guarded UPDATE; callers hold the row lock
// from LockProfileByUserID in the same transaction.
type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// With returns a repository bound to db, typically a transaction handle.
func (r *ReferralRepository) With(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) GetProfileByUserID(userID uuid.UUID) (*models.ReferralProfile, error) {
	var p models.ReferralProfile
	err := r.db.Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LockProfileByUserID reads the profile with SELECT ... FOR UPDATE.
func (r *ReferralRepository) LockProfileByUserID(userID uuid.UUID) (*models.ReferralProfile, error) {
	var p models.ReferralProfile
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProfile inserts a profile. A duplicate key error means either the
// user already has a profile or one of the codes is taken.
func (r *ReferralRepository) CreateProfile(p *models.ReferralProfile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.ReferralStatus == "" {
		p.ReferralStatus = domain.ProfilePending
	}
	return r.db.Create(p).Error
}

// CodeExists probes both code columns. The answer is advisory only; the
// unique indexes decide.
func (r *ReferralRepository) CodeExists(code string) (bool, error) {
	var count int64
	err := r.db.Model(&models.ReferralProfile{}).
		Where("farmer_referral_code = ? OR customer_referral_code = ?", code, code).
		Count(&count).Error
	return count > 0, err
}

// FindProfileByCode resolves a code against the global namespace.
func (r *ReferralRepository) FindProfileByCode(code string) (*models.ReferralProfile, domain.CodeKind, error) {
	var p models.ReferralProfile
	err := r.db.Where("farmer_referral_code = ? OR customer_referral_code = ?", code, code).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", domain.ErrInvalidCode
	}
	if err != nil {
		return nil, "", err
	}
	kind := domain.CodeKindCustomer
	if p.FarmerReferralCode != nil && *p.FarmerReferralCode == code {
		kind = domain.CodeKindFarmer
	}
	return &p, kind, nil
}

func codeColumn(kind domain.CodeKind) string {
	if kind == domain.CodeKindFarmer {
		return "farmer_referral_code"
	}
	return "customer_referral_code"
}

// AssignCode fills an empty code column. Codes are never replaced.
func (r *ReferralRepository) AssignCode(profileID uuid.UUID, kind domain.CodeKind, code string) error {
	col := codeColumn(kind)
	res := r.db.Model(&models.ReferralProfile{}).
		Where("id = ? AND "+col+" IS NULL", profileID).
		UpdateColumns(map[string]interface{}{col: code, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return database.ErrConflict
	}
	return nil
}

// SetReferrer records the attribution. referred_by is write-once, so a row
// that already has one yields ErrAlreadyReferred.
func (r *ReferralRepository) SetReferrer(profileID, referrerID uuid.UUID, referralType domain.ReferralType) error {
	res := r.db.Model(&models.ReferralProfile{}).
		Where("id = ? AND referred_by IS NULL AND user_id <> ?", profileID, referrerID).
		UpdateColumns(map[string]interface{}{
			"referred_by":     referrerID,
			"referral_type":   referralType,
			"referral_status": domain.ProfileActive,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.ErrAlreadyReferred
	}
	return nil
}

// AddFreeDeliveries increments balance and lifetime total by grant, guarded so
// the total can never pass maxTotal.
func (r *ReferralRepository) AddFreeDeliveries(profileID uuid.UUID, grant, maxTotal int) error {
	if grant <= 0 {
		return nil
	}
	res := r.db.Model(&models.ReferralProfile{}).
		Where("id = ? AND total_free_deliveries + ? <= ?", profileID, grant, maxTotal).
		UpdateColumns(map[string]interface{}{
			"free_deliveries_remaining": gorm.Expr("free_deliveries_remaining + ?", grant),
			"total_free_deliveries":     gorm.Expr("total_free_deliveries + ?", grant),
			"updated_at":                time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("add free deliveries to %s: %w", profileID, database.ErrConflict)
	}
	return nil
}

// AddCashback increments remaining and lifetime cashback by grantCents,
// guarded so the lifetime total can never pass maxTotalCents.
func (r *ReferralRepository) AddCashback(profileID uuid.UUID, grantCents, maxTotalCents int64) error {
	if grantCents <= 0 {
		return nil
	}
	res := r.db.Model(&models.ReferralProfile{}).
		Where("id = ? AND total_earned_credit_cents + ? <= ?", profileID, grantCents, maxTotalCents).
		UpdateColumns(map[string]interface{}{
			"remaining_credit_cents":    gorm.Expr("remaining_credit_cents + ?", grantCents),
			"total_earned_credit_cents": gorm.Expr("total_earned_credit_cents + ?", grantCents),
			"updated_at":                time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("add cashback to %s: %w", profileID, database.ErrConflict)
	}
	return nil
}

// ConsumeFreeDelivery decrements the balance by exactly one.
func (r *ReferralRepository) ConsumeFreeDelivery(profileID uuid.UUID) error {
	res := r.db.Model(&models.ReferralProfile{}).
		Where("id = ? AND free_deliveries_remaining > 0", profileID).
		UpdateColumns(map[string]interface{}{
			"free_deliveries_remaining": gorm.Expr("free_deliveries_remaining - 1"),
			"updated_at":                time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("consume free delivery of %s: %w", profileID, database.ErrConflict)
	}
	return nil
}

// CompleteProfile moves an active profile to completed.
func (r *ReferralRepository) CompleteProfile(profileID uuid.UUID) error {
	res := r.db.Model(&models.ReferralProfile{}).
		Where("id = ? AND referral_status = ?", profileID, domain.ProfileActive).
		UpdateColumns(map[string]interface{}{"referral_status": domain.ProfileCompleted, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.ErrAlreadyCompleted
	}
	return nil
}

// BlockProfile marks the profile blocked. Blocking is terminal.
func (r *ReferralRepository) BlockProfile(userID uuid.UUID) error {
	res := r.db.Model(&models.ReferralProfile{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]interface{}{"referral_status": domain.ProfileBlocked, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateHistory appends a history row. A duplicate referred_id means the user
// was attributed concurrently.
func (r *ReferralRepository) CreateHistory(h *models.ReferralHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	err := r.db.Create(h).Error
	if database.IsDuplicateKey(err) {
		return domain.ErrAlreadyReferred
	}
	return err
}

// GetHistoryByReferredID returns the single row that attributed userID.
func (r *ReferralRepository) GetHistoryByReferredID(userID uuid.UUID) (*models.ReferralHistory, error) {
	var h models.ReferralHistory
	err := r.db.Where("referred_id = ?", userID).Preload("Referrer").First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Settlement is the one-time update of a pending history row.
type Settlement struct {
	Status                 domain.HistoryStatus
	ReferrerRewardType     domain.RewardType
	ReferrerRewardCents    int64
	ReferrerFreeDeliveries int
	ReferredRewardType     domain.RewardType
	ReferredRewardCents    int64
	ReferredFreeDeliveries int
	QualificationEvent     string
	QualificationDate      time.Time
}

// SettleHistory writes the settlement fields of a pending row. Rows that are
// already terminal are left untouched and yield ErrAlreadyCompleted.
func (r *ReferralRepository) SettleHistory(historyID uuid.UUID, s Settlement) error {
	res := r.db.Model(&models.ReferralHistory{}).
		Where("id = ? AND status = ?", historyID, domain.HistoryPending).
		UpdateColumns(map[string]interface{}{
			"status":                   s.Status,
			"referrer_reward_type":     s.ReferrerRewardType,
			"referrer_reward_cents":    s.ReferrerRewardCents,
			"referrer_free_deliveries": s.ReferrerFreeDeliveries,
			"referred_reward_type":     s.ReferredRewardType,
			"referred_reward_cents":    s.ReferredRewardCents,
			"referred_free_deliveries": s.ReferredFreeDeliveries,
			"qualification_event":      s.QualificationEvent,
			"qualification_date":       s.QualificationDate,
			"updated_at":               time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.ErrAlreadyCompleted
	}
	return nil
}

// ListByReferrerID returns the referrer's outbound history, newest first, with
// the referred user preloaded. limit <= 0 returns every row.
func (r *ReferralRepository) ListByReferrerID(referrerID uuid.UUID, limit, offset int) ([]models.ReferralHistory, error) {
	var list []models.ReferralHistory
	q := r.db.Where("referrer_id = ?", referrerID).
		Preload("Referred").
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	err := q.Find(&list).Error
	return list, err
}

// CountByReferrerID returns the number of outbound history rows.
func (r *ReferralRepository) CountByReferrerID(referrerID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.Model(&models.ReferralHistory{}).Where("referrer_id = ?", referrerID).Count(&n).Error
	return n, err
}
