package models

import (
	"time"

	"github.com/google/uuid"
)

// RewardType of the referral policy.
type RewardType string

const (
	RewardTypeFixed      RewardType = "fixed"
	RewardTypePercentage RewardType = "percentage"
)

// ReferralSettings is the global, admin-editable referral policy. A
// single row is kept; the payout engine reads it on every qualifying
// order, so updates apply to the next evaluated order.
type ReferralSettings struct {
	BaseModel
	Enabled              bool       `json:"enabled"`
	RewardType           RewardType `gorm:"default:fixed" json:"reward_type"`
	FixedAmount          float64    `json:"fixed_amount"`
	RewardPercentage     float64    `json:"reward_percentage"`
	MaxRewardPerOrder    *float64   `json:"max_reward_per_order"`
	MinOrderAmount       float64    `json:"min_order_amount"`
	MaxRewardsPerReferee int        `json:"max_rewards_per_referee"`
	CreditValidityDays   int        `gorm:"default:180" json:"credit_validity_days"`
	Description          string     `json:"description"`
}

// ReferralCode belongs to exactly one referrer.
type ReferralCode struct {
	BaseModel
	Code       string    `gorm:"uniqueIndex" json:"code"`
	ReferrerID uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"referrer_id"`
}

// ReferralSignup records that a referee was onboarded via a referral
// code. One per referee.
type ReferralSignup struct {
	BaseModel
	RefereeID      uuid.UUID    `gorm:"type:uuid;uniqueIndex" json:"referee_id"`
	ReferralCodeID uuid.UUID    `gorm:"type:uuid;index" json:"referral_code_id"`
	ReferralCode   ReferralCode `json:"referral_code"`
}

// ReferralUsage is one payout-engine evaluation of a qualifying order.
// The unique index on (referee, order) is the idempotency guard: a
// duplicate trigger for the same order fails the insert and the whole
// payout transaction with it.
type ReferralUsage struct {
	BaseModel
	ReferralCodeID uuid.UUID  `gorm:"type:uuid;index" json:"referral_code_id"`
	RefereeID      uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_referral_usages_referee_order" json:"referee_id"`
	OrderID        uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_referral_usages_referee_order" json:"order_id"`
	OrderAmount    float64    `json:"order_amount"`
	RewardGranted  bool       `gorm:"index" json:"reward_granted"`
	RewardAmount   float64    `json:"reward_amount"`
	StoreCreditID  *uuid.UUID `gorm:"type:uuid" json:"store_credit_id"`
	GrantedAt      *time.Time `json:"granted_at"`
}
