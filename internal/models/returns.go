package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReturnStatus is the customer-facing workflow state of a return request.
type ReturnStatus string

const (
	ReturnStatusRequested  ReturnStatus = "requested"
	ReturnStatusApproved   ReturnStatus = "approved"
	ReturnStatusReceived   ReturnStatus = "received"
	ReturnStatusProcessing ReturnStatus = "processing"
	ReturnStatusCompleted  ReturnStatus = "completed"
	ReturnStatusRejected   ReturnStatus = "rejected"
	ReturnStatusCancelled  ReturnStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s ReturnStatus) IsTerminal() bool {
	switch s {
	case ReturnStatusCompleted, ReturnStatusRejected, ReturnStatusCancelled:
		return true
	}
	return false
}

// returnTransitions is the admin-initiated transition table. Cancellation
// is handled separately: it is allowed from any non-terminal state.
var returnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnStatusRequested:  {ReturnStatusApproved, ReturnStatusRejected},
	ReturnStatusApproved:   {ReturnStatusReceived},
	ReturnStatusReceived:   {ReturnStatusProcessing},
	ReturnStatusProcessing: {ReturnStatusCompleted},
}

// InvalidTransitionError identifies a rejected state change.
type InvalidTransitionError struct {
	From ReturnStatus
	To   ReturnStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid return transition from %q to %q", e.From, e.To)
}

// CanTransition validates a status change against the transition table.
// Terminal states accept nothing; every non-terminal state accepts
// cancellation so an abandoned request can never get stuck.
func CanTransition(from, to ReturnStatus) error {
	if from.IsTerminal() {
		return &InvalidTransitionError{From: from, To: to}
	}
	if to == ReturnStatusCancelled {
		return nil
	}
	for _, next := range returnTransitions[from] {
		if next == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// RefundAmountEditable reports whether the refund amount may still be
// adjusted. Once processing starts the amount is locked.
func (s ReturnStatus) RefundAmountEditable() bool {
	return s == ReturnStatusRequested || s == ReturnStatusApproved
}

// RefundStatus tracks money movement, decoupled from the workflow status.
type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
)

// ReturnType distinguishes a refund return from an exchange.
type ReturnType string

const (
	ReturnTypeReturn   ReturnType = "return"
	ReturnTypeExchange ReturnType = "exchange"
)

// ReturnReason is the customer's stated reason.
type ReturnReason string

const (
	ReturnReasonDefective      ReturnReason = "defective"
	ReturnReasonWrongItem      ReturnReason = "wrong_item"
	ReturnReasonNotAsDescribed ReturnReason = "not_as_described"
	ReturnReasonSizeIssue      ReturnReason = "size_issue"
	ReturnReasonChangedMind    ReturnReason = "changed_mind"
	ReturnReasonOther          ReturnReason = "other"
)

// ReturnRequest is a customer claim to send back items from a fulfilled
// order. Requests are never deleted; cancellation is a terminal status.
type ReturnRequest struct {
	BaseModel
	ReturnNumber   string       `gorm:"uniqueIndex" json:"return_number"`
	OrderID        uuid.UUID    `gorm:"type:uuid;index" json:"order_id"`
	Order          *Order       `json:"order,omitempty"`
	UserID         uuid.UUID    `gorm:"type:uuid;index" json:"user_id"`
	Status         ReturnStatus `gorm:"index;default:requested" json:"status"`
	RefundStatus   RefundStatus `gorm:"default:pending" json:"refund_status"`
	RefundAmount   float64      `json:"refund_amount"`
	Type           ReturnType   `gorm:"default:return" json:"type"`
	Reason         ReturnReason `json:"reason"`
	Description    string       `json:"description"`
	TrackingNumber string       `json:"tracking_number"`
	AdminNotes     string       `json:"admin_notes"`
	SizeIssue      bool         `json:"size_issue"`
	RequestedSize  string       `json:"requested_size"`
	Items          []ReturnItem `json:"items,omitempty"`
	Notes          []ReturnNote `json:"notes,omitempty"`
}

// CountsTowardReturned reports whether this request's item quantities
// consume returnable quantity on the order. Rejected and cancelled
// requests release their claim.
func (r *ReturnRequest) CountsTowardReturned() bool {
	return r.Status != ReturnStatusRejected && r.Status != ReturnStatusCancelled
}

// ReturnItem snapshots one order item selected for return. Created
// atomically with its request and immutable afterwards.
type ReturnItem struct {
	BaseModel
	ReturnRequestID uuid.UUID    `gorm:"type:uuid;index" json:"return_request_id"`
	OrderItemID     uuid.UUID    `gorm:"type:uuid;index" json:"order_item_id"`
	ProductName     string       `json:"product_name"`
	Size            string       `json:"size"`
	Quantity        int          `json:"quantity"`
	UnitPrice       float64      `json:"unit_price"`
	Subtotal        float64      `json:"subtotal"`
	Reason          ReturnReason `json:"reason"`
}

// ReturnNote is one entry in the append-only admin note log. The latest
// note is mirrored onto ReturnRequest.AdminNotes for the storefront.
type ReturnNote struct {
	BaseModel
	ReturnRequestID uuid.UUID    `gorm:"type:uuid;index" json:"return_request_id"`
	ActorID         uuid.UUID    `gorm:"type:uuid" json:"actor_id"`
	Note            string       `json:"note"`
	ResultingStatus ReturnStatus `json:"resulting_status"`
	RecordedAt      time.Time    `json:"recorded_at"`
}
