package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/soleshop/internal/models"
)

func newReturnService(db *gorm.DB) *ReturnService {
	return NewReturnService(db, nil, 365)
}

func TestCreateReturnRequestDefaults(t *testing.T) {
	db := setupTestDB(t)
	svc := newReturnService(db)
	ctx := context.Background()

	user := seedUser(t, db, "0911000001")
	order := seedOrder(t, db, user, models.OrderStatusDelivered,
		seedItem{name: "Runner Pro", size: "US9", quantity: 2, unitPrice: 600},
		seedItem{name: "Canvas Low", size: "US8", quantity: 1, unitPrice: 1800},
	)

	req, err := svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: order.ID,
		Items: []ReturnItemInput{
			{OrderItemID: order.Items[0].ID, Quantity: 2},
		},
		Reason:      models.ReturnReasonDefective,
		Description: "sole came apart",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(req.ReturnNumber, "RT"))
	assert.Equal(t, models.ReturnStatusRequested, req.Status)
	assert.Equal(t, models.RefundStatusPending, req.RefundStatus)
	assert.Equal(t, models.ReturnTypeReturn, req.Type)
	assert.Equal(t, 1200.0, req.RefundAmount)

	require.Len(t, req.Items, 1)
	assert.Equal(t, "Runner Pro", req.Items[0].ProductName)
	assert.Equal(t, 2, req.Items[0].Quantity)
	assert.Equal(t, 1200.0, req.Items[0].Subtotal)
	// Per-item reason falls back to the request reason.
	assert.Equal(t, models.ReturnReasonDefective, req.Items[0].Reason)
}

func TestCreateReturnRequestValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := newReturnService(db)
	ctx := context.Background()

	user := seedUser(t, db, "0911000002")
	stranger := seedUser(t, db, "0911000003")
	delivered := seedOrder(t, db, user, models.OrderStatusDelivered,
		seedItem{name: "Runner Pro", size: "US9", quantity: 1, unitPrice: 1000})
	shipped := seedOrder(t, db, user, models.OrderStatusShipped,
		seedItem{name: "Runner Pro", size: "US9", quantity: 1, unitPrice: 1000})

	_, err := svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{OrderID: delivered.ID})
	assert.ErrorIs(t, err, ErrNoItemsSelected)

	_, err = svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: shipped.ID,
		Items:   []ReturnItemInput{{OrderItemID: shipped.Items[0].ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrOrderNotEligible)

	_, err = svc.CreateReturnRequest(ctx, stranger.ID, CreateReturnInput{
		OrderID: delivered.ID,
		Items:   []ReturnItemInput{{OrderItemID: delivered.Items[0].ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrOrderNotEligible)

	_, err = svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: delivered.ID,
		Items:   []ReturnItemInput{{OrderItemID: delivered.Items[0].ID, Quantity: 2}},
	})
	assert.ErrorIs(t, err, ErrQuantityExceeded)

	_, err = svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: delivered.ID,
		Items:   []ReturnItemInput{{OrderItemID: uuid.New(), Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrOrderNotEligible)
}

func TestOverReturnAcrossRequests(t *testing.T) {
	db := setupTestDB(t)
	svc := newReturnService(db)
	ctx := context.Background()
	admin := seedUser(t, db, "0900000000")

	user := seedUser(t, db, "0911000004")
	order := seedOrder(t, db, user, models.OrderStatusCompleted,
		seedItem{name: "Trail Max", size: "US10", quantity: 2, unitPrice: 900})
	itemID := order.Items[0].ID

	_, err := svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: order.ID,
		Items:   []ReturnItemInput{{OrderItemID: itemID, Quantity: 1}},
		Reason:  models.ReturnReasonChangedMind,
	})
	require.NoError(t, err)

	// Only one unit remains returnable while the first request is open.
	_, err = svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: order.ID,
		Items:   []ReturnItemInput{{OrderItemID: itemID, Quantity: 2}},
		Reason:  models.ReturnReasonChangedMind,
	})
	assert.ErrorIs(t, err, ErrQuantityExceeded)

	second, err := svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: order.ID,
		Items:   []ReturnItemInput{{OrderItemID: itemID, Quantity: 1}},
		Reason:  models.ReturnReasonChangedMind,
	})
	require.NoError(t, err)

	_, err = svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: order.ID,
		Items:   []ReturnItemInput{{OrderItemID: itemID, Quantity: 1}},
		Reason:  models.ReturnReasonChangedMind,
	})
	assert.ErrorIs(t, err, ErrQuantityExceeded)

	// Cancelling a request releases its claimed quantity.
	_, err = svc.Transition(ctx, admin.ID, second.ID, TransitionInput{Target: models.ReturnStatusCancelled})
	require.NoError(t, err)

	_, err = svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: order.ID,
		Items:   []ReturnItemInput{{OrderItemID: itemID, Quantity: 1}},
		Reason:  models.ReturnReasonChangedMind,
	})
	require.NoError(t, err)

	// A double claim inside one request is caught too.
	fresh := seedOrder(t, db, user, models.OrderStatusCompleted,
		seedItem{name: "Trail Max", size: "US10", quantity: 2, unitPrice: 900})
	_, err = svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: fresh.ID,
		Items: []ReturnItemInput{
			{OrderItemID: fresh.Items[0].ID, Quantity: 1},
			{OrderItemID: fresh.Items[0].ID, Quantity: 2},
		},
		Reason: models.ReturnReasonChangedMind,
	})
	assert.ErrorIs(t, err, ErrQuantityExceeded)
}

func TestConcurrentClaimCannotOverReturn(t *testing.T) {
	db := setupTestDB(t)
	svc := newReturnService(db)
	ctx := context.Background()

	user := seedUser(t, db, "0911000011")
	order := seedOrder(t, db, user, models.OrderStatusDelivered,
		seedItem{name: "Trail Max", size: "US10", quantity: 2, unitPrice: 900})
	itemID := order.Items[0].ID

	// Another request commits a claim for one unit after this submission
	// has already loaded the order. The guard re-checks the counter at
	// update time, so the stale view cannot take both units again.
	require.NoError(t, db.Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		UpdateColumn("returned_quantity", gorm.Expr("returned_quantity + ?", 1)).Error)

	_, err := svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: order.ID,
		Items:   []ReturnItemInput{{OrderItemID: itemID, Quantity: 2}},
		Reason:  models.ReturnReasonChangedMind,
	})
	assert.ErrorIs(t, err, ErrQuantityExceeded)

	// The failed submission leaves nothing behind.
	var requests int64
	require.NoError(t, db.Model(&models.ReturnRequest{}).Count(&requests).Error)
	assert.Equal(t, int64(0), requests)

	var item models.OrderItem
	require.NoError(t, db.First(&item, "id = ?", itemID).Error)
	assert.Equal(t, 1, item.ReturnedQuantity)

	// The remaining unit is still claimable.
	_, err = svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: order.ID,
		Items:   []ReturnItemInput{{OrderItemID: itemID, Quantity: 1}},
		Reason:  models.ReturnReasonChangedMind,
	})
	require.NoError(t, err)

	require.NoError(t, db.First(&item, "id = ?", itemID).Error)
	assert.Equal(t, 2, item.ReturnedQuantity)
}

func TestGenerateReturnNumber(t *testing.T) {
	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		number := generateReturnNumber()
		assert.True(t, strings.HasPrefix(number, "RT"))
		if _, dup := seen[number]; dup {
			t.Fatalf("duplicate return number %s", number)
		}
		seen[number] = struct{}{}
	}
}

func TestUploadTracking(t *testing.T) {
	db := setupTestDB(t)
	svc := newReturnService(db)
	ctx := context.Background()

	user := seedUser(t, db, "0911000005")
	stranger := seedUser(t, db, "0911000006")
	admin := seedUser(t, db, "0900000001")
	order := seedOrder(t, db, user, models.OrderStatusDelivered,
		seedItem{name: "Slide", size: "US9", quantity: 1, unitPrice: 500})

	req, err := svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: order.ID,
		Items:   []ReturnItemInput{{OrderItemID: order.Items[0].ID, Quantity: 1}},
		Reason:  models.ReturnReasonOther,
	})
	require.NoError(t, err)

	_, err = svc.UploadTracking(ctx, user.ID, req.ID, "TW123456789")
	assert.ErrorIs(t, err, ErrTrackingNotOpen)

	_, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{Target: models.ReturnStatusApproved})
	require.NoError(t, err)

	_, err = svc.UploadTracking(ctx, stranger.ID, req.ID, "TW123456789")
	assert.ErrorIs(t, err, ErrNotRequestOwner)

	updated, err := svc.UploadTracking(ctx, user.ID, req.ID, "TW123456789")
	require.NoError(t, err)
	assert.Equal(t, "TW123456789", updated.TrackingNumber)
	// Uploading tracking does not change the workflow status.
	assert.Equal(t, models.ReturnStatusApproved, updated.Status)
}

func TestReturnLifecycleEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	svc := newReturnService(db)
	ctx := context.Background()

	user := seedUser(t, db, "0911000007")
	admin := seedUser(t, db, "0900000002")
	order := seedOrder(t, db, user, models.OrderStatusDelivered,
		seedItem{name: "Court Classic", size: "US9", quantity: 1, unitPrice: 1200},
		seedItem{name: "Marathon Elite", size: "US9", quantity: 1, unitPrice: 1800},
	)
	require.Equal(t, 3000.0, order.TotalAmount)

	req, err := svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID:       order.ID,
		Items:         []ReturnItemInput{{OrderItemID: order.Items[0].ID, Quantity: 1}},
		Reason:        models.ReturnReasonSizeIssue,
		SizeIssue:     true,
		RequestedSize: "US9.5",
	})
	require.NoError(t, err)
	assert.Equal(t, 1200.0, req.RefundAmount)

	for _, target := range []models.ReturnStatus{
		models.ReturnStatusApproved,
		models.ReturnStatusReceived,
		models.ReturnStatusProcessing,
		models.ReturnStatusCompleted,
	} {
		req, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{Target: target})
		require.NoError(t, err, "transition to %s", target)
		assert.Equal(t, target, req.Status)
	}

	assert.Equal(t, models.RefundStatusCompleted, req.RefundStatus)

	var credits []models.StoreCredit
	require.NoError(t, db.Where("source = ?", models.CreditSourceReturnRefund).Find(&credits).Error)
	require.Len(t, credits, 1)

	credit := credits[0]
	assert.Equal(t, user.ID, credit.UserID)
	assert.Equal(t, 1200.0, credit.Amount)
	assert.Equal(t, 1200.0, credit.Balance)
	require.NotNil(t, credit.SourceID)
	assert.Equal(t, req.ID, *credit.SourceID)
	assert.True(t, credit.IsActive)
	assert.False(t, credit.IsUsed)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 365), credit.ValidUntil, time.Minute)
}

func TestRefundAmountLock(t *testing.T) {
	db := setupTestDB(t)
	svc := newReturnService(db)
	ctx := context.Background()

	user := seedUser(t, db, "0911000008")
	admin := seedUser(t, db, "0900000003")
	order := seedOrder(t, db, user, models.OrderStatusDelivered,
		seedItem{name: "Court Classic", size: "US9", quantity: 1, unitPrice: 2000})

	req, err := svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: order.ID,
		Items:   []ReturnItemInput{{OrderItemID: order.Items[0].ID, Quantity: 1}},
		Reason:  models.ReturnReasonDefective,
	})
	require.NoError(t, err)

	// Amount may be adjusted while requested or approved.
	lower := 1500.0
	req, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{
		Target:       models.ReturnStatusApproved,
		RefundAmount: &lower,
	})
	require.NoError(t, err)
	assert.Equal(t, 1500.0, req.RefundAmount)

	// But never above the selected item subtotal, and never negative.
	tooHigh := 2500.0
	_, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{
		Target:       models.ReturnStatusReceived,
		RefundAmount: &tooHigh,
	})
	assert.ErrorIs(t, err, ErrRefundTooLarge)

	req, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{Target: models.ReturnStatusReceived})
	require.NoError(t, err)

	// Once past approved the amount is locked.
	edit := 100.0
	_, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{
		Target:       models.ReturnStatusProcessing,
		RefundAmount: &edit,
	})
	assert.ErrorIs(t, err, ErrAmountLocked)

	req, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{Target: models.ReturnStatusProcessing})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{
		Target:       models.ReturnStatusCompleted,
		RefundAmount: &edit,
	})
	assert.ErrorIs(t, err, ErrAmountLocked)

	req, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{Target: models.ReturnStatusCompleted})
	require.NoError(t, err)

	// The credit equals the amount captured before processing began.
	var credit models.StoreCredit
	require.NoError(t, db.First(&credit, "source = ?", models.CreditSourceReturnRefund).Error)
	assert.Equal(t, 1500.0, credit.Amount)
}

func TestInvalidAndTerminalTransitions(t *testing.T) {
	db := setupTestDB(t)
	svc := newReturnService(db)
	ctx := context.Background()

	user := seedUser(t, db, "0911000009")
	admin := seedUser(t, db, "0900000004")
	order := seedOrder(t, db, user, models.OrderStatusDelivered,
		seedItem{name: "Slide", size: "US8", quantity: 1, unitPrice: 500})

	req, err := svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: order.ID,
		Items:   []ReturnItemInput{{OrderItemID: order.Items[0].ID, Quantity: 1}},
		Reason:  models.ReturnReasonOther,
	})
	require.NoError(t, err)

	// Skipping states is rejected.
	_, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{Target: models.ReturnStatusCompleted})
	var invalid *models.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.ReturnStatusRequested, invalid.From)

	_, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{Target: models.ReturnStatusRejected})
	require.NoError(t, err)

	// Terminal states accept nothing further.
	_, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{Target: models.ReturnStatusApproved})
	require.ErrorAs(t, err, &invalid)
	_, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{Target: models.ReturnStatusCancelled})
	require.ErrorAs(t, err, &invalid)
}

func TestAtomicRefundMint(t *testing.T) {
	db := setupTestDB(t)
	svc := newReturnService(db)
	ctx := context.Background()

	user := seedUser(t, db, "0911000010")
	admin := seedUser(t, db, "0900000005")
	order := seedOrder(t, db, user, models.OrderStatusDelivered,
		seedItem{name: "Runner Pro", size: "US9", quantity: 1, unitPrice: 800})

	req, err := svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: order.ID,
		Items:   []ReturnItemInput{{OrderItemID: order.Items[0].ID, Quantity: 1}},
		Reason:  models.ReturnReasonDefective,
	})
	require.NoError(t, err)

	for _, target := range []models.ReturnStatus{
		models.ReturnStatusApproved, models.ReturnStatusReceived, models.ReturnStatusProcessing,
	} {
		_, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{Target: target})
		require.NoError(t, err)
	}

	// Break the ledger so the mint fails mid-transaction.
	require.NoError(t, db.Migrator().DropTable(&models.StoreCredit{}))
	_, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{Target: models.ReturnStatusCompleted})
	require.Error(t, err)

	var current models.ReturnRequest
	require.NoError(t, db.First(&current, "id = ?", req.ID).Error)
	assert.Equal(t, models.ReturnStatusProcessing, current.Status)
	assert.Equal(t, models.RefundStatusProcessing, current.RefundStatus)

	// After the ledger recovers the same transition succeeds exactly once.
	require.NoError(t, db.AutoMigrate(&models.StoreCredit{}))
	updated, err := svc.Transition(ctx, admin.ID, req.ID, TransitionInput{Target: models.ReturnStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.ReturnStatusCompleted, updated.Status)

	var count int64
	require.NoError(t, db.Model(&models.StoreCredit{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAdminNoteLog(t *testing.T) {
	db := setupTestDB(t)
	svc := newReturnService(db)
	ctx := context.Background()

	user := seedUser(t, db, "0911000011")
	admin := seedUser(t, db, "0900000006")
	order := seedOrder(t, db, user, models.OrderStatusDelivered,
		seedItem{name: "Canvas Low", size: "US8", quantity: 1, unitPrice: 700})

	req, err := svc.CreateReturnRequest(ctx, user.ID, CreateReturnInput{
		OrderID: order.ID,
		Items:   []ReturnItemInput{{OrderItemID: order.Items[0].ID, Quantity: 1}},
		Reason:  models.ReturnReasonWrongItem,
	})
	require.NoError(t, err)

	req, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{
		Target:    models.ReturnStatusApproved,
		AdminNote: "photos verified",
	})
	require.NoError(t, err)
	assert.Equal(t, "photos verified", req.AdminNotes)

	req, err = svc.Transition(ctx, admin.ID, req.ID, TransitionInput{
		Target:    models.ReturnStatusReceived,
		AdminNote: "parcel arrived intact",
	})
	require.NoError(t, err)
	// The latest note replaces the visible field...
	assert.Equal(t, "parcel arrived intact", req.AdminNotes)

	// ...while the full history stays in the append-only log.
	var notes []models.ReturnNote
	require.NoError(t, db.Where("return_request_id = ?", req.ID).Order("recorded_at asc").Find(&notes).Error)
	require.Len(t, notes, 2)
	assert.Equal(t, "photos verified", notes[0].Note)
	assert.Equal(t, models.ReturnStatusApproved, notes[0].ResultingStatus)
	assert.Equal(t, "parcel arrived intact", notes[1].Note)
	assert.Equal(t, models.ReturnStatusReceived, notes[1].ResultingStatus)
	assert.Equal(t, admin.ID, notes[1].ActorID)
}
