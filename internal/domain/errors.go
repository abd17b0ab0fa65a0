package domain

import "errors"

// Business-rule failures. Anything else returned by a service is an
// infrastructure failure.
var (
	ErrInvalidCode                = errors.New("invalid referral code")
	ErrSelfReferral               = errors.New("cannot use your own referral code")
	ErrAlreadyReferred            = errors.New("user has already been referred")
	ErrUnsupportedRoleCombination = errors.New("unsupported role combination for referral")
	ErrNotReferred                = errors.New("user was not referred")
	ErrAlreadyCompleted           = errors.New("referral reward already completed")
	ErrCapReached                 = errors.New("lifetime referral reward cap reached")
	ErrExhaustedRetries           = errors.New("could not generate a unique referral code")
	ErrNotFound                   = errors.New("referral profile not found")
	ErrUserNotFound               = errors.New("user not found")
	ErrOrderNotFound              = errors.New("order not found")
	ErrOrderMismatch              = errors.New("order does not belong to user")
	ErrProfileBlocked             = errors.New("referral profile is blocked")
)

var businessErrors = []error{
	ErrInvalidCode,
	ErrSelfReferral,
	ErrAlreadyReferred,
	ErrUnsupportedRoleCombination,
	ErrNotReferred,
	ErrAlreadyCompleted,
	ErrCapReached,
	ErrNotFound,
	ErrUserNotFound,
	ErrOrderNotFound,
	ErrOrderMismatch,
	ErrProfileBlocked,
}

// IsBusiness reports whether err is a business-rule failure.
// ErrExhaustedRetries is not one: it means the code space is saturated.
func IsBusiness(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
