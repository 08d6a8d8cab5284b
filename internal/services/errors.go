package services

import "errors"

// Domain errors surfaced to handlers. Validation errors map to 400/422,
// conflict errors to 409; anything else is an infrastructure failure.
var (
	ErrOrderNotEligible   = errors.New("order is not eligible for return")
	ErrNoItemsSelected    = errors.New("no items selected for return")
	ErrQuantityExceeded   = errors.New("return quantity exceeds remaining returnable quantity")
	ErrRefundTooLarge     = errors.New("refund amount exceeds returnable item subtotal")
	ErrAmountLocked       = errors.New("refund amount can no longer be adjusted")
	ErrTrackingNotOpen    = errors.New("tracking number can only be uploaded while approved")
	ErrNotRequestOwner    = errors.New("return request belongs to another user")
	ErrTransitionConflict = errors.New("return was modified concurrently, re-fetch and retry")
	ErrDuplicateGrant     = errors.New("referral reward already processed for this order")
	ErrInvalidSettings    = errors.New("invalid referral settings")
)

// IsValidationError reports whether err is caller input being rejected,
// as opposed to a state conflict or infrastructure failure.
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrOrderNotEligible),
		errors.Is(err, ErrNoItemsSelected),
		errors.Is(err, ErrQuantityExceeded),
		errors.Is(err, ErrRefundTooLarge),
		errors.Is(err, ErrInvalidSettings):
		return true
	}
	return false
}

// IsConflictError reports whether err means the caller raced another
// writer or attempted a stale state change.
func IsConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrAmountLocked),
		errors.Is(err, ErrTrackingNotOpen),
		errors.Is(err, ErrTransitionConflict),
		errors.Is(err, ErrDuplicateGrant):
		return true
	}
	return false
}
