package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus tracks an order through fulfilment.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// IsFulfilled reports whether the order reached a terminal fulfilled
// state, which is the precondition for requesting a return.
func (s OrderStatus) IsFulfilled() bool {
	return s == OrderStatusDelivered || s == OrderStatusCompleted
}

// IsReferralQualifying reports whether the order state counts as a
// qualifying completed order for the referral payout engine.
func (s OrderStatus) IsReferralQualifying() bool {
	return s == OrderStatusCompleted || s == OrderStatusDelivered
}

// IsValid reports whether s is one of the declared order statuses.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCompleted,
		OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// PaymentStatus is what the payment gateway reported for an order.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusFailed PaymentStatus = "failed"
)

type Order struct {
	BaseModel
	UserID         uuid.UUID     `gorm:"type:uuid;index" json:"user_id"`
	User           *User         `json:"user,omitempty"`
	OrderNumber    string        `gorm:"uniqueIndex" json:"order_number"`
	Status         OrderStatus   `gorm:"default:pending" json:"status"`
	PaymentStatus  PaymentStatus `gorm:"default:unpaid" json:"payment_status"`
	GatewayTradeNo string        `json:"gateway_trade_no"`
	PlacedAt       time.Time     `json:"placed_at"`
	Subtotal       float64       `json:"subtotal"`
	ShippingFee    float64       `json:"shipping_fee"`
	TotalAmount    float64       `json:"total_amount"`
	Currency       string        `json:"currency"`
	Notes          string        `json:"notes"`
	Items          []OrderItem   `json:"items,omitempty"`
}

// OrderItem carries product snapshots so orders stay readable after
// catalog changes. ReturnedQuantity counts units claimed by live return
// requests; it is only ever changed through guarded updates so that
// concurrent return submissions cannot claim the same unit twice.
type OrderItem struct {
	BaseModel
	OrderID          uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	ProductID        *uuid.UUID `gorm:"type:uuid" json:"product_id"`
	ProductName      string     `json:"product_name"`
	Size             string     `json:"size"`
	Color            string     `json:"color"`
	Quantity         int        `json:"quantity"`
	ReturnedQuantity int        `gorm:"default:0" json:"returned_quantity"`
	UnitPrice        float64    `json:"unit_price"`
	LineTotal        float64    `json:"line_total"`
}
