package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/soleshop/internal/models"
)

// ReturnService owns the return request lifecycle: creation eligibility,
// tracking upload, the admin state machine, and the refund credit mint.
type ReturnService struct {
	db                 *gorm.DB
	line               *LINEService
	creditValidityDays int
}

// NewReturnService constructs ReturnService. creditValidityDays bounds
// the validity window of refund store credits.
func NewReturnService(db *gorm.DB, line *LINEService, creditValidityDays int) *ReturnService {
	if creditValidityDays <= 0 {
		creditValidityDays = 365
	}
	return &ReturnService{db: db, line: line, creditValidityDays: creditValidityDays}
}

// ReturnItemInput selects one order item and quantity for return.
type ReturnItemInput struct {
	OrderItemID uuid.UUID
	Quantity    int
	Reason      models.ReturnReason
}

// CreateReturnInput is the customer's return submission.
type CreateReturnInput struct {
	OrderID       uuid.UUID
	Items         []ReturnItemInput
	Type          models.ReturnType
	Reason        models.ReturnReason
	Description   string
	SizeIssue     bool
	RequestedSize string
}

// CreateReturnRequest validates eligibility and creates the request with
// its item snapshots in one transaction. The refund amount defaults to
// the sum of the selected item subtotals.
func (s *ReturnService) CreateReturnRequest(ctx context.Context, userID uuid.UUID, input CreateReturnInput) (*models.ReturnRequest, error) {
	if len(input.Items) == 0 {
		return nil, ErrNoItemsSelected
	}

	var request *models.ReturnRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Preload("Items").
			First(&order, "id = ? AND user_id = ?", input.OrderID, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotEligible
			}
			return err
		}
		if !order.Status.IsFulfilled() {
			return ErrOrderNotEligible
		}

		orderItems := make(map[uuid.UUID]models.OrderItem, len(order.Items))
		for _, item := range order.Items {
			orderItems[item.ID] = item
		}

		req := models.ReturnRequest{
			ReturnNumber:  generateReturnNumber(),
			OrderID:       order.ID,
			UserID:        userID,
			Status:        models.ReturnStatusRequested,
			RefundStatus:  models.RefundStatusPending,
			Type:          input.Type,
			Reason:        input.Reason,
			Description:   input.Description,
			SizeIssue:     input.SizeIssue,
			RequestedSize: input.RequestedSize,
		}
		if req.Type == "" {
			req.Type = models.ReturnTypeReturn
		}

		var refundTotal float64
		for _, sel := range input.Items {
			orderItem, ok := orderItems[sel.OrderItemID]
			if !ok {
				return ErrOrderNotEligible
			}
			if sel.Quantity <= 0 {
				return ErrQuantityExceeded
			}
			// Claim the units through a guarded update so two requests
			// racing on the same item cannot both take the last unit.
			// A failed claim, or any later error, rolls back with the
			// transaction.
			claim := tx.Model(&models.OrderItem{}).
				Where("id = ? AND quantity - returned_quantity >= ?", orderItem.ID, sel.Quantity).
				UpdateColumn("returned_quantity", gorm.Expr("returned_quantity + ?", sel.Quantity))
			if claim.Error != nil {
				return claim.Error
			}
			if claim.RowsAffected == 0 {
				return ErrQuantityExceeded
			}

			reason := sel.Reason
			if reason == "" {
				reason = input.Reason
			}
			subtotal := orderItem.UnitPrice * float64(sel.Quantity)
			refundTotal += subtotal
			req.Items = append(req.Items, models.ReturnItem{
				OrderItemID: orderItem.ID,
				ProductName: orderItem.ProductName,
				Size:        orderItem.Size,
				Quantity:    sel.Quantity,
				UnitPrice:   orderItem.UnitPrice,
				Subtotal:    subtotal,
				Reason:      reason,
			})
		}
		req.RefundAmount = refundTotal

		if err := tx.Create(&req).Error; err != nil {
			return err
		}
		request = &req
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.line != nil {
		go func(req models.ReturnRequest) {
			if err := s.line.NotifyReturnCreated(req); err != nil {
				log.Printf("[Return] LINE notification failed for %s: %v", req.ReturnNumber, err)
			}
		}(*request)
	}

	return request, nil
}

// UploadTracking stores the carrier tracking number on the customer's
// own approved request. The status does not change.
func (s *ReturnService) UploadTracking(ctx context.Context, userID, returnID uuid.UUID, trackingNumber string) (*models.ReturnRequest, error) {
	var req models.ReturnRequest
	if err := s.db.WithContext(ctx).First(&req, "id = ?", returnID).Error; err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, ErrNotRequestOwner
	}
	if req.Status != models.ReturnStatusApproved {
		return nil, ErrTrackingNotOpen
	}

	result := s.db.WithContext(ctx).Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", returnID, models.ReturnStatusApproved).
		Update("tracking_number", trackingNumber)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrTransitionConflict
	}

	req.TrackingNumber = trackingNumber
	return &req, nil
}

// TransitionInput is an admin-initiated status change.
type TransitionInput struct {
	Target       models.ReturnStatus
	AdminNote    string
	RefundAmount *float64
}

// Transition applies one admin state change. The status update is a
// compare-and-swap on the current status, so a concurrent admin loses
// with a conflict instead of silently double-applying. Completing a
// return mints the refund store credit in the same transaction; if the
// mint fails the request stays in processing.
func (s *ReturnService) Transition(ctx context.Context, adminID, returnID uuid.UUID, input TransitionInput) (*models.ReturnRequest, error) {
	var updated models.ReturnRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.ReturnRequest
		if err := tx.Preload("Items").First(&req, "id = ?", returnID).Error; err != nil {
			return err
		}

		if err := models.CanTransition(req.Status, input.Target); err != nil {
			return err
		}

		updates := map[string]any{"status": input.Target}

		if input.RefundAmount != nil {
			if !req.Status.RefundAmountEditable() {
				return ErrAmountLocked
			}
			var maxRefund float64
			for _, item := range req.Items {
				maxRefund += item.Subtotal
			}
			if *input.RefundAmount < 0 || *input.RefundAmount > maxRefund {
				return ErrRefundTooLarge
			}
			updates["refund_amount"] = *input.RefundAmount
			req.RefundAmount = *input.RefundAmount
		}

		switch input.Target {
		case models.ReturnStatusProcessing:
			updates["refund_status"] = models.RefundStatusProcessing
		case models.ReturnStatusCompleted:
			updates["refund_status"] = models.RefundStatusCompleted
		}

		if input.AdminNote != "" {
			updates["admin_notes"] = input.AdminNote
		}

		result := tx.Model(&models.ReturnRequest{}).
			Where("id = ? AND status = ?", returnID, req.Status).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTransitionConflict
		}

		// A rejected or cancelled request no longer holds its units;
		// both states are terminal and the status CAS above guarantees
		// the release runs once.
		if input.Target == models.ReturnStatusRejected || input.Target == models.ReturnStatusCancelled {
			for _, item := range req.Items {
				if err := tx.Model(&models.OrderItem{}).
					Where("id = ?", item.OrderItemID).
					UpdateColumn("returned_quantity", gorm.Expr("returned_quantity - ?", item.Quantity)).Error; err != nil {
					return err
				}
			}
		}

		if input.AdminNote != "" {
			note := models.ReturnNote{
				ReturnRequestID: req.ID,
				ActorID:         adminID,
				Note:            input.AdminNote,
				ResultingStatus: input.Target,
				RecordedAt:      time.Now(),
			}
			if err := tx.Create(&note).Error; err != nil {
				return err
			}
		}

		if input.Target == models.ReturnStatusCompleted {
			if err := s.mintRefundCredit(tx, &req); err != nil {
				return err
			}
		}

		if err := tx.Preload("Items").First(&updated, "id = ?", returnID).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.line != nil {
		go func(req models.ReturnRequest) {
			if err := s.line.NotifyReturnTransition(req); err != nil {
				log.Printf("[Return] LINE notification failed for %s: %v", req.ReturnNumber, err)
			}
		}(updated)
	}

	return &updated, nil
}

// mintRefundCredit issues the store credit for a completed return using
// the refund amount that was locked when processing started.
func (s *ReturnService) mintRefundCredit(tx *gorm.DB, req *models.ReturnRequest) error {
	now := time.Now()
	sourceID := req.ID
	credit := models.StoreCredit{
		UserID:     req.UserID,
		Amount:     req.RefundAmount,
		Balance:    req.RefundAmount,
		Source:     models.CreditSourceReturnRefund,
		SourceID:   &sourceID,
		ValidFrom:  now,
		ValidUntil: now.AddDate(0, 0, s.creditValidityDays),
		IsActive:   true,
	}
	return tx.Create(&credit).Error
}

// GetReturn loads one request with items and notes. When ownerID is
// non-nil the request must belong to that user.
func (s *ReturnService) GetReturn(ctx context.Context, returnID uuid.UUID, ownerID *uuid.UUID) (*models.ReturnRequest, error) {
	var req models.ReturnRequest
	if err := s.db.WithContext(ctx).
		Preload("Items").Preload("Notes").
		First(&req, "id = ?", returnID).Error; err != nil {
		return nil, err
	}
	if ownerID != nil && req.UserID != *ownerID {
		return nil, ErrNotRequestOwner
	}
	return &req, nil
}

// ListReturns returns requests with an optional owner and status filter.
func (s *ReturnService) ListReturns(ctx context.Context, ownerID *uuid.UUID, status models.ReturnStatus, limit, offset int) ([]models.ReturnRequest, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ReturnRequest{})
	if ownerID != nil {
		query = query.Where("user_id = ?", *ownerID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []models.ReturnRequest
	if err := query.Preload("Items").
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

func generateReturnNumber() string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("RT%s%X", time.Now().Format("060102150405"), suffix)
}
