package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyReferral(t *testing.T) {
	cases := []struct {
		referrer, referred Role
		want               ReferralType
	}{
		{RoleFarmer, RoleFarmer, ReferralFarmerToFarmer},
		{RoleFarmer, RoleConsumer, ReferralFarmerToCustomer},
		{RoleConsumer, RoleFarmer, ReferralCustomerToFarmer},
		{RoleConsumer, RoleConsumer, ReferralCustomerToCustomer},
	}
	for _, tc := range cases {
		got, err := ClassifyReferral(tc.referrer, tc.referred)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.referrer, got.ReferrerRole())
		assert.Equal(t, tc.referred, got.ReferredRole())
	}
}

func TestClassifyReferralRejectsOtherRoles(t *testing.T) {
	pairs := [][2]Role{
		{RoleAdmin, RoleConsumer},
		{RoleFarmer, RoleDriver},
		{RoleDriver, RoleDriver},
		{"", RoleFarmer},
	}
	for _, p := range pairs {
		_, err := ClassifyReferral(p[0], p[1])
		assert.ErrorIs(t, err, ErrUnsupportedRoleCombination, "%s -> %s", p[0], p[1])
	}
}

func TestFreeDeliveryGrantClampsToCap(t *testing.T) {
	p := RewardPolicy{MaxLifetimeFreeDeliveries: 10, FreeDeliveriesPerReferral: 3}
	assert.Equal(t, 3, p.FreeDeliveryGrant(0))
	assert.Equal(t, 3, p.FreeDeliveryGrant(7))
	assert.Equal(t, 2, p.FreeDeliveryGrant(8))
	assert.Equal(t, 0, p.FreeDeliveryGrant(10))
	assert.Equal(t, 0, p.FreeDeliveryGrant(12))
}

func TestCashbackGrantClampsToCap(t *testing.T) {
	p := DefaultRewardPolicy()
	assert.Equal(t, int64(5000), p.CashbackGrant(0))
	assert.Equal(t, int64(5000), p.CashbackGrant(45000))
	assert.Equal(t, int64(1), p.CashbackGrant(49999))
	assert.Equal(t, int64(0), p.CashbackGrant(50000))
}

func TestHistoryStatusTerminal(t *testing.T) {
	assert.False(t, HistoryPending.Terminal())
	assert.True(t, HistoryCompleted.Terminal())
	assert.True(t, HistoryExpired.Terminal())
	assert.True(t, HistoryDeclined.Terminal())
}

func TestCodePrefixesAreDisjoint(t *testing.T) {
	assert.Equal(t, "FF", CodeKindFarmer.Prefix())
	assert.Equal(t, "FC", CodeKindCustomer.Prefix())
	assert.NotEqual(t, CodeKindFarmer.Prefix(), CodeKindCustomer.Prefix())
}

func TestIsBusiness(t *testing.T) {
	assert.True(t, IsBusiness(ErrCapReached))
	assert.True(t, IsBusiness(errors.Join(errors.New("ctx"), ErrSelfReferral)))
	assert.False(t, IsBusiness(ErrExhaustedRetries))
	assert.False(t, IsBusiness(errors.New("connection reset")))
	assert.False(t, IsBusiness(nil))
}
