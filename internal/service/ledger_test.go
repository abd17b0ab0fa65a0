package service

import (
	"sync"
	"testing"

	"farmlink/internal/domain"
	"farmlink/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFarmerCashbackPaysOnceToFarmerAndFarmerReferrer(t *testing.T) {
	f := newFixture(t, domain.DefaultRewardPolicy())
	referrer := f.user(t, domain.RoleFarmer, "Old Mill Farm")
	farmer := f.user(t, domain.RoleFarmer, "New Roots")
	f.refer(t, referrer, farmer)

	res, err := f.svc.ApplyFarmerReferralCashback(f.ctx, farmer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.CashbackAmountCents)
	assert.Equal(t, "50.00", res.CashbackAmount)
	assert.Equal(t, referrer.ID, res.ReferrerID)
	assert.Equal(t, int64(5000), res.ReferrerCashbackCents)

	p := f.profile(t, farmer.ID)
	assert.Equal(t, int64(5000), p.TotalEarnedCreditCents)
	assert.Equal(t, int64(5000), p.RemainingCreditCents)
	assert.Equal(t, domain.ProfileCompleted, p.ReferralStatus)

	rp := f.profile(t, referrer.ID)
	assert.Equal(t, int64(5000), rp.TotalEarnedCreditCents)
	assert.NotEqual(t, domain.ProfileCompleted, rp.ReferralStatus, "a referrer can keep referring")

	h := f.history(t, farmer.ID)
	assert.Equal(t, domain.HistoryCompleted, h.Status)
	assert.Equal(t, domain.RewardCashback, h.ReferredRewardType)
	assert.Equal(t, int64(5000), h.ReferredRewardCents)
	assert.Equal(t, domain.RewardCashback, h.ReferrerRewardType)
	assert.Equal(t, int64(5000), h.ReferrerRewardCents)
	require.NotNil(t, h.QualificationEvent)
	assert.Equal(t, domain.QualificationFirstSale, *h.QualificationEvent)
	assert.NotNil(t, h.QualificationDate)

	_, err = f.svc.ApplyFarmerReferralCashback(f.ctx, farmer.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyCompleted)
	assert.Equal(t, int64(5000), f.profile(t, farmer.ID).TotalEarnedCreditCents)
	assert.Equal(t, int64(5000), f.profile(t, referrer.ID).TotalEarnedCreditCents)
}

func TestFarmerCashbackFromConsumerReferrerPaysOnlyFarmer(t *testing.T) {
	f := newFixture(t, domain.DefaultRewardPolicy())
	referrer := f.user(t, domain.RoleConsumer, "Eater")
	farmer := f.user(t, domain.RoleFarmer, "Grower")
	res := f.refer(t, referrer, farmer)
	assert.Equal(t, domain.ReferralCustomerToFarmer, res.ReferralType)

	cb, err := f.svc.ApplyFarmerReferralCashback(f.ctx, farmer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), cb.CashbackAmountCents)
	assert.Zero(t, cb.ReferrerCashbackCents)
	assert.Zero(t, f.profile(t, referrer.ID).TotalEarnedCreditCents)
	assert.Equal(t, domain.RewardNone, f.history(t, farmer.ID).ReferrerRewardType)
}

func TestFarmerCashbackRejections(t *testing.T) {
	f := newFixture(t, domain.DefaultRewardPolicy())
	unreferred := f.user(t, domain.RoleFarmer, "Solo")
	_, err := f.svc.ApplyFarmerReferralCashback(f.ctx, unreferred.ID)
	assert.ErrorIs(t, err, domain.ErrNotReferred, "no profile")

	f.codes(t, unreferred)
	_, err = f.svc.ApplyFarmerReferralCashback(f.ctx, unreferred.ID)
	assert.ErrorIs(t, err, domain.ErrNotReferred, "profile without referrer")

	farmer := f.user(t, domain.RoleFarmer, "Farm")
	consumer := f.user(t, domain.RoleConsumer, "Consumer")
	f.refer(t, farmer, consumer)
	_, err = f.svc.ApplyFarmerReferralCashback(f.ctx, consumer.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyCompleted, "consumer referrals settle at signup")
	assert.Zero(t, f.profile(t, consumer.ID).TotalEarnedCreditCents)
}

func TestFarmerCashbackAtCapFailsWithoutWriting(t *testing.T) {
	f := newFixture(t, domain.DefaultRewardPolicy())
	referrer := f.user(t, domain.RoleFarmer, "Referrer")
	farmer := f.user(t, domain.RoleFarmer, "Capped")
	f.refer(t, referrer, farmer)
	require.NoError(t, f.db.Model(&models.ReferralProfile{}).
		Where("user_id = ?", farmer.ID).
		Updates(map[string]interface{}{"total_earned_credit_cents": 50000, "remaining_credit_cents": 100}).Error)

	_, err := f.svc.ApplyFarmerReferralCashback(f.ctx, farmer.ID)
	assert.ErrorIs(t, err, domain.ErrCapReached)

	p := f.profile(t, farmer.ID)
	assert.Equal(t, int64(50000), p.TotalEarnedCreditCents)
	assert.Equal(t, domain.ProfileActive, p.ReferralStatus)
	assert.Equal(t, domain.HistoryPending, f.history(t, farmer.ID).Status)
	assert.Zero(t, f.profile(t, referrer.ID).TotalEarnedCreditCents)
}

func TestFarmerCashbackNearCapIsBounded(t *testing.T) {
	f := newFixture(t, domain.DefaultRewardPolicy())
	referrer := f.user(t, domain.RoleFarmer, "Referrer")
	farmer := f.user(t, domain.RoleFarmer, "Almost")
	f.refer(t, referrer, farmer)
	require.NoError(t, f.db.Model(&models.ReferralProfile{}).
		Where("user_id = ?", farmer.ID).
		Update("total_earned_credit_cents", 48500).Error)

	res, err := f.svc.ApplyFarmerReferralCashback(f.ctx, farmer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), res.CashbackAmountCents)
	assert.Equal(t, "15.00", res.CashbackAmount)
	assert.Equal(t, int64(50000), f.profile(t, farmer.ID).TotalEarnedCreditCents)
}

func TestReferrerCashbackNeverExceedsCap(t *testing.T) {
	policy := domain.RewardPolicy{
		MaxLifetimeFreeDeliveries:      10,
		MaxLifetimeCashbackCents:       12000,
		FreeDeliveriesPerReferral:      2,
		CashbackPerFarmerReferralCents: 5000,
	}
	f := newFixture(t, policy)
	referrer := f.user(t, domain.RoleFarmer, "Hub Farm")

	const n = 5
	farmers := make([]*models.User, n)
	for i := range farmers {
		farmers[i] = f.user(t, domain.RoleFarmer, "Spoke")
		f.refer(t, referrer, farmers[i])
	}

	var wg sync.WaitGroup
	referrerGrants := make([]int64, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.ApplyFarmerReferralCashback(f.ctx, farmers[i].ID)
			if assert.NoError(t, err) {
				assert.Equal(t, int64(5000), res.CashbackAmountCents)
				referrerGrants[i] = res.ReferrerCashbackCents
			}
		}()
	}
	wg.Wait()

	var sum int64
	for _, g := range referrerGrants {
		sum += g
	}
	rp := f.profile(t, referrer.ID)
	assert.Equal(t, policy.MaxLifetimeCashbackCents, rp.TotalEarnedCreditCents)
	assert.Equal(t, policy.MaxLifetimeCashbackCents, sum)
	assert.LessOrEqual(t, rp.RemainingCreditCents, rp.TotalEarnedCreditCents)
}

func TestFarmerCashbackUnknownUser(t *testing.T) {
	f := newFixture(t, domain.DefaultRewardPolicy())
	_, err := f.svc.ApplyFarmerReferralCashback(f.ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotReferred)
}
