package models

import (
	"time"

	"github.com/google/uuid"
)

// DiscountType of a coupon definition.
type DiscountType string

const (
	DiscountTypePercentage   DiscountType = "percentage"
	DiscountTypeFixed        DiscountType = "fixed"
	DiscountTypeFreeShipping DiscountType = "free_shipping"
	DiscountTypeBuyXGetY     DiscountType = "buy_x_get_y"
)

// Coupon is a reusable coupon definition.
type Coupon struct {
	BaseModel
	Code        string       `gorm:"uniqueIndex" json:"code"`
	Type        DiscountType `json:"type"`
	Value       float64      `json:"value"`
	MinAmount   float64      `json:"min_amount"`
	MaxDiscount float64      `json:"max_discount"`
	ValidFrom   time.Time    `json:"valid_from"`
	ValidUntil  time.Time    `json:"valid_until"`
	IsActive    bool         `gorm:"default:true" json:"is_active"`
}

// CouponState is the derived classification of a redemption. It is never
// stored.
type CouponState string

const (
	CouponStateAvailable CouponState = "available"
	CouponStateUsed      CouponState = "used"
	CouponStateExpired   CouponState = "expired"
)

// CouponRedemption is a user's claim on a coupon. ExpiresAt, when set,
// may be stricter than the coupon definition's window.
type CouponRedemption struct {
	BaseModel
	UserID       uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	CouponID     uuid.UUID  `gorm:"type:uuid;index" json:"coupon_id"`
	Coupon       Coupon     `json:"coupon"`
	IsUsed       bool       `gorm:"default:false" json:"is_used"`
	UsedAt       *time.Time `json:"used_at"`
	ObtainedFrom string     `json:"obtained_from"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// Classify buckets the redemption at the given instant. Exactly one of
// used/available/expired holds: used wins outright, available requires an
// active coupon inside every validity window, and everything else counts
// as expired.
func (r *CouponRedemption) Classify(now time.Time) CouponState {
	if r.IsUsed {
		return CouponStateUsed
	}
	if r.Coupon.IsActive &&
		!now.Before(r.Coupon.ValidFrom) && !now.After(r.Coupon.ValidUntil) &&
		(r.ExpiresAt == nil || !now.After(*r.ExpiresAt)) {
		return CouponStateAvailable
	}
	return CouponStateExpired
}
