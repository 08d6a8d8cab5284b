package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditSource identifies what minted a store credit.
type CreditSource string

const (
	CreditSourceReferral     CreditSource = "referral"
	CreditSourceReturnRefund CreditSource = "return_refund"
	CreditSourceActivity     CreditSource = "activity"
	CreditSourceAdmin        CreditSource = "admin"
)

// StoreCredit is spendable, time-bounded value owned by a user. This
// service only issues credits; spending them (decrementing Balance,
// flipping IsUsed) belongs to the checkout flow.
type StoreCredit struct {
	BaseModel
	UserID           uuid.UUID    `gorm:"type:uuid;index" json:"user_id"`
	Amount           float64      `json:"amount"`
	Balance          float64      `json:"balance"`
	Source           CreditSource `gorm:"index" json:"source"`
	SourceID         *uuid.UUID   `gorm:"type:uuid;index" json:"source_id"`
	MinOrderAmount   float64      `json:"min_order_amount"`
	MaxUsagePerOrder *float64     `json:"max_usage_per_order"`
	ValidFrom        time.Time    `json:"valid_from"`
	ValidUntil       time.Time    `json:"valid_until"`
	IsActive         bool         `gorm:"default:true" json:"is_active"`
	IsUsed           bool         `gorm:"default:false" json:"is_used"`
}

// UsableAt is the single availability predicate shared by the wallet
// aggregation and the checkout read contract. An expired credit is
// unusable regardless of IsActive.
func (c *StoreCredit) UsableAt(now time.Time) bool {
	if !c.IsActive || c.Balance <= 0 {
		return false
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return false
	}
	return true
}
