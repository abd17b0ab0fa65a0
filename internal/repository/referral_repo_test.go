package repository

import (
	"testing"
	"time"

	"farmlink/internal/database"
	"farmlink/internal/database/dbtest"
	"farmlink/internal/domain"
	"farmlink/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newUser(t *testing.T, db *gorm.DB, role domain.Role) *models.User {
	t.Helper()
	u := &models.User{Name: string(role), Email: uuid.NewString() + "@example.com", Role: role}
	require.NoError(t, NewUserRepository(db).Create(u))
	return u
}

func strPtr(s string) *string { return &s }

func newProfile(t *testing.T, db *gorm.DB, userID uuid.UUID, farmerCode, customerCode string) *models.ReferralProfile {
	t.Helper()
	p := &models.ReferralProfile{UserID: userID}
	if farmerCode != "" {
		p.FarmerReferralCode = strPtr(farmerCode)
	}
	if customerCode != "" {
		p.CustomerReferralCode = strPtr(customerCode)
	}
	require.NoError(t, NewReferralRepository(db).CreateProfile(p))
	return p
}

func TestFindProfileByCodeResolvesKind(t *testing.T) {
	db := dbtest.New(t)
	repo := NewReferralRepository(db)
	u := newUser(t, db, domain.RoleFarmer)
	newProfile(t, db, u.ID, "FF00000001", "FC00000001")

	p, kind, err := repo.FindProfileByCode("FF00000001")
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, domain.CodeKindFarmer, kind)

	_, kind, err = repo.FindProfileByCode("FC00000001")
	require.NoError(t, err)
	assert.Equal(t, domain.CodeKindCustomer, kind)

	_, _, err = repo.FindProfileByCode("FF99999999")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	taken, err := repo.CodeExists("FC00000001")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = repo.CodeExists("FC00000002")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestCreateProfileRejectsDuplicates(t *testing.T) {
	db := dbtest.New(t)
	repo := NewReferralRepository(db)
	a := newUser(t, db, domain.RoleFarmer)
	b := newUser(t, db, domain.RoleConsumer)
	newProfile(t, db, a.ID, "FF00000001", "FC00000001")

	err := repo.CreateProfile(&models.ReferralProfile{UserID: a.ID})
	assert.True(t, database.IsDuplicateKey(err), "second profile for the same user: %v", err)

	err = repo.CreateProfile(&models.ReferralProfile{UserID: b.ID, FarmerReferralCode: strPtr("FF00000001")})
	assert.True(t, database.IsDuplicateKey(err), "reused code: %v", err)
}

func TestAssignCodeIsWriteOnce(t *testing.T) {
	db := dbtest.New(t)
	repo := NewReferralRepository(db)
	u := newUser(t, db, domain.RoleConsumer)
	p := newProfile(t, db, u.ID, "", "")

	require.NoError(t, repo.AssignCode(p.ID, domain.CodeKindFarmer, "FF0000000A"))
	assert.ErrorIs(t, repo.AssignCode(p.ID, domain.CodeKindFarmer, "FF0000000B"), database.ErrConflict)

	got, err := repo.GetProfileByUserID(u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FarmerReferralCode)
	assert.Equal(t, "FF0000000A", *got.FarmerReferralCode)
	assert.Nil(t, got.CustomerReferralCode)
}

func TestSetReferrerIsWriteOnceAndNeverSelf(t *testing.T) {
	db := dbtest.New(t)
	repo := NewReferralRepository(db)
	target := newUser(t, db, domain.RoleConsumer)
	first := newUser(t, db, domain.RoleFarmer)
	second := newUser(t, db, domain.RoleConsumer)
	p := newProfile(t, db, target.ID, "", "")

	assert.ErrorIs(t, repo.SetReferrer(p.ID, target.ID, domain.ReferralCustomerToCustomer), domain.ErrAlreadyReferred)
	require.NoError(t, repo.SetReferrer(p.ID, first.ID, domain.ReferralFarmerToCustomer))
	assert.ErrorIs(t, repo.SetReferrer(p.ID, second.ID, domain.ReferralCustomerToCustomer), domain.ErrAlreadyReferred)

	got, err := repo.GetProfileByUserID(target.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReferredBy)
	assert.Equal(t, first.ID, *got.ReferredBy)
	require.NotNil(t, got.ReferralType)
	assert.Equal(t, domain.ReferralFarmerToCustomer, *got.ReferralType)
	assert.Equal(t, domain.ProfileActive, got.ReferralStatus)
}

func TestAddFreeDeliveriesRespectsCap(t *testing.T) {
	db := dbtest.New(t)
	repo := NewReferralRepository(db)
	u := newUser(t, db, domain.RoleConsumer)
	p := newProfile(t, db, u.ID, "", "")

	require.NoError(t, repo.AddFreeDeliveries(p.ID, 4, 5))
	assert.ErrorIs(t, repo.AddFreeDeliveries(p.ID, 2, 5), database.ErrConflict)
	require.NoError(t, repo.AddFreeDeliveries(p.ID, 1, 5))
	require.NoError(t, repo.AddFreeDeliveries(p.ID, 0, 5))

	got, err := repo.GetProfileByUserID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalFreeDeliveries)
	assert.Equal(t, 5, got.FreeDeliveriesRemaining)
}

func TestAddCashbackRespectsCap(t *testing.T) {
	db := dbtest.New(t)
	repo := NewReferralRepository(db)
	u := newUser(t, db, domain.RoleFarmer)
	p := newProfile(t, db, u.ID, "", "")

	require.NoError(t, repo.AddCashback(p.ID, 7000, 10000))
	assert.ErrorIs(t, repo.AddCashback(p.ID, 5000, 10000), database.ErrConflict)
	require.NoError(t, repo.AddCashback(p.ID, 3000, 10000))

	got, err := repo.GetProfileByUserID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.TotalEarnedCreditCents)
	assert.Equal(t, int64(10000), got.RemainingCreditCents)
}

func TestConsumeFreeDeliveryNeverGoesNegative(t *testing.T) {
	db := dbtest.New(t)
	repo := NewReferralRepository(db)
	u := newUser(t, db, domain.RoleConsumer)
	p := newProfile(t, db, u.ID, "", "")
	require.NoError(t, repo.AddFreeDeliveries(p.ID, 1, 10))

	require.NoError(t, repo.ConsumeFreeDelivery(p.ID))
	assert.ErrorIs(t, repo.ConsumeFreeDelivery(p.ID), database.ErrConflict)

	got, err := repo.GetProfileByUserID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.FreeDeliveriesRemaining)
	assert.Equal(t, 1, got.TotalFreeDeliveries)
}

func TestHistoryIsUniquePerReferredAndSettledOnce(t *testing.T) {
	db := dbtest.New(t)
	repo := NewReferralRepository(db)
	referrer := newUser(t, db, domain.RoleFarmer)
	referred := newUser(t, db, domain.RoleFarmer)

	h := &models.ReferralHistory{
		ReferrerID:   referrer.ID,
		ReferredID:   referred.ID,
		ReferralCode: "FF00000001",
		ReferralType: domain.ReferralFarmerToFarmer,
		Status:       domain.HistoryPending,
	}
	require.NoError(t, repo.CreateHistory(h))
	dup := &models.ReferralHistory{
		ReferrerID:   referrer.ID,
		ReferredID:   referred.ID,
		ReferralCode: "FF00000001",
		ReferralType: domain.ReferralFarmerToFarmer,
		Status:       domain.HistoryPending,
	}
	assert.ErrorIs(t, repo.CreateHistory(dup), domain.ErrAlreadyReferred)

	settle := Settlement{
		Status:              domain.HistoryCompleted,
		ReferredRewardType:  domain.RewardCashback,
		ReferredRewardCents: 5000,
		QualificationEvent:  domain.QualificationFirstSale,
		QualificationDate:   time.Now(),
	}
	require.NoError(t, repo.SettleHistory(h.ID, settle))
	assert.ErrorIs(t, repo.SettleHistory(h.ID, settle), domain.ErrAlreadyCompleted)

	got, err := repo.GetHistoryByReferredID(referred.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HistoryCompleted, got.Status)
	assert.Equal(t, int64(5000), got.ReferredRewardCents)
	require.NotNil(t, got.QualificationEvent)
	assert.Equal(t, domain.QualificationFirstSale, *got.QualificationEvent)
	assert.Equal(t, referrer.ID, got.Referrer.ID)

	n, err := repo.CountByReferrerID(referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	list, err := repo.ListByReferrerID(referrer.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, referred.ID, list[0].Referred.ID)
}

func TestCompleteAndBlockProfile(t *testing.T) {
	db := dbtest.New(t)
	repo := NewReferralRepository(db)
	referrer := newUser(t, db, domain.RoleFarmer)
	u := newUser(t, db, domain.RoleFarmer)
	p := newProfile(t, db, u.ID, "", "")

	assert.ErrorIs(t, repo.CompleteProfile(p.ID), domain.ErrAlreadyCompleted, "pending profile cannot complete")
	require.NoError(t, repo.SetReferrer(p.ID, referrer.ID, domain.ReferralFarmerToFarmer))
	require.NoError(t, repo.CompleteProfile(p.ID))
	assert.ErrorIs(t, repo.CompleteProfile(p.ID), domain.ErrAlreadyCompleted)

	require.NoError(t, repo.BlockProfile(u.ID))
	assert.ErrorIs(t, repo.BlockProfile(uuid.New()), domain.ErrNotFound)
	got, err := repo.GetProfileByUserID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileBlocked, got.ReferralStatus)
}
