package domain

import "fmt"

// Role is a marketplace user role as reported by the user directory.
type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleConsumer Role = "consumer"
	RoleAdmin    Role = "admin"
	RoleDriver   Role = "driver"
)

// CanRefer reports whether the role takes part in the referral program.
func (r Role) CanRefer() bool {
	return r == RoleFarmer || r == RoleConsumer
}

// ReferralType classifies an attribution by (referrer role, referred role).
type ReferralType string

const (
	ReferralFarmerToFarmer     ReferralType = "farmer_to_farmer"
	ReferralFarmerToCustomer   ReferralType = "farmer_to_customer"
	ReferralCustomerToFarmer   ReferralType = "customer_to_farmer"
	ReferralCustomerToCustomer ReferralType = "customer_to_customer"
)

// ClassifyReferral maps the role pair onto a ReferralType.
// Any role outside {farmer, consumer} yields ErrUnsupportedRoleCombination.
func ClassifyReferral(referrer, referred Role) (ReferralType, error) {
	switch {
	case referrer == RoleFarmer && referred == RoleFarmer:
		return ReferralFarmerToFarmer, nil
	case referrer == RoleFarmer && referred == RoleConsumer:
		return ReferralFarmerToCustomer, nil
	case referrer == RoleConsumer && referred == RoleFarmer:
		return ReferralCustomerToFarmer, nil
	case referrer == RoleConsumer && referred == RoleConsumer:
		return ReferralCustomerToCustomer, nil
	}
	return "", fmt.Errorf("%w: %s -> %s", ErrUnsupportedRoleCombination, referrer, referred)
}

// ReferredRole returns the role of the referred party.
func (t ReferralType) ReferredRole() Role {
	switch t {
	case ReferralFarmerToFarmer, ReferralCustomerToFarmer:
		return RoleFarmer
	case ReferralFarmerToCustomer, ReferralCustomerToCustomer:
		return RoleConsumer
	}
	return ""
}

// ReferrerRole returns the role of the referrer.
func (t ReferralType) ReferrerRole() Role {
	switch t {
	case ReferralFarmerToFarmer, ReferralFarmerToCustomer:
		return RoleFarmer
	case ReferralCustomerToFarmer, ReferralCustomerToCustomer:
		return RoleConsumer
	}
	return ""
}

// ProfileStatus is the lifecycle state of a referral profile.
type ProfileStatus string

const (
	ProfilePending   ProfileStatus = "pending"
	ProfileActive    ProfileStatus = "active"
	ProfileCompleted ProfileStatus = "completed"
	ProfileBlocked   ProfileStatus = "blocked"
)

// HistoryStatus is the settlement state of a referral history row.
type HistoryStatus string

const (
	HistoryPending   HistoryStatus = "pending"
	HistoryCompleted HistoryStatus = "completed"
	HistoryExpired   HistoryStatus = "expired"
	HistoryDeclined  HistoryStatus = "declined"
)

// Terminal reports whether the row may no longer change.
func (s HistoryStatus) Terminal() bool {
	switch s {
	case HistoryCompleted, HistoryExpired, HistoryDeclined:
		return true
	case HistoryPending:
		return false
	}
	return false
}

// RewardType is what one side of a referral receives.
type RewardType string

const (
	RewardNone           RewardType = "none"
	RewardCashback       RewardType = "cashback"
	RewardFreeDeliveries RewardType = "free_deliveries"
)

// CodeKind says which audience a referral code targets.
type CodeKind string

const (
	CodeKindFarmer   CodeKind = "farmer"
	CodeKindCustomer CodeKind = "customer"
)

// Code prefixes. They are disjoint, so the two code columns never collide.
const (
	FarmerCodePrefix   = "FF"
	CustomerCodePrefix = "FC"
)

// Prefix returns the code prefix for the kind.
func (k CodeKind) Prefix() string {
	if k == CodeKindFarmer {
		return FarmerCodePrefix
	}
	return CustomerCodePrefix
}

// QualificationFirstSale is recorded when farmer cashback settles.
const QualificationFirstSale = "first_sale"

// QualificationSignup is recorded when consumer free deliveries settle at signup.
const QualificationSignup = "signup"

// RewardPolicy holds the referral reward constants. It is loaded once at
// startup and passed by value.
type RewardPolicy struct {
	MaxLifetimeFreeDeliveries      int   `toml:"max_lifetime_free_deliveries" validate:"gt=0"`
	MaxLifetimeCashbackCents       int64 `toml:"max_lifetime_cashback_cents" validate:"gt=0"`
	FreeDeliveriesPerReferral      int   `toml:"free_deliveries_per_referral" validate:"gt=0"`
	CashbackPerFarmerReferralCents int64 `toml:"cashback_per_farmer_referral_cents" validate:"gt=0"`
}

// DefaultRewardPolicy returns the production reward constants.
func DefaultRewardPolicy() RewardPolicy {
	return RewardPolicy{
		MaxLifetimeFreeDeliveries:      10,
		MaxLifetimeCashbackCents:       50000,
		FreeDeliveriesPerReferral:      2,
		CashbackPerFarmerReferralCents: 5000,
	}
}

// FreeDeliveryGrant returns how many deliveries a profile with the given
// lifetime total may still receive for one referral.
func (p RewardPolicy) FreeDeliveryGrant(total int) int {
	room := p.MaxLifetimeFreeDeliveries - total
	if room <= 0 {
		return 0
	}
	if p.FreeDeliveriesPerReferral < room {
		return p.FreeDeliveriesPerReferral
	}
	return room
}

// CashbackGrant returns the bounded cashback for a profile with the given
// lifetime earned total.
func (p RewardPolicy) CashbackGrant(totalCents int64) int64 {
	room := p.MaxLifetimeCashbackCents - totalCents
	if room <= 0 {
		return 0
	}
	if p.CashbackPerFarmerReferralCents < room {
		return p.CashbackPerFarmerReferralCents
	}
	return room
}
