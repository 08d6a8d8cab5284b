package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/soleshop/internal/models"
)

func seedCredit(t *testing.T, db *gorm.DB, userID uuid.UUID, credit models.StoreCredit) models.StoreCredit {
	t.Helper()
	credit.UserID = userID
	require.NoError(t, db.Create(&credit).Error)
	return credit
}

func TestAvailableCreditAmount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	ctx := context.Background()

	user := seedUser(t, db, "0933000001")
	other := seedUser(t, db, "0933000002")
	now := time.Now()

	// Counted: active, positive balance, inside the window.
	seedCredit(t, db, user.ID, models.StoreCredit{
		Amount: 300, Balance: 300, Source: models.CreditSourceReferral,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(24 * time.Hour), IsActive: true,
	})
	// Counted at its remaining balance, not the original amount.
	seedCredit(t, db, user.ID, models.StoreCredit{
		Amount: 500, Balance: 120, Source: models.CreditSourceReturnRefund,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(24 * time.Hour), IsActive: true,
	})
	// Expired one second ago, still flagged active.
	seedCredit(t, db, user.ID, models.StoreCredit{
		Amount: 200, Balance: 200, Source: models.CreditSourceActivity,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(-time.Second), IsActive: true,
	})
	// Not yet valid.
	seedCredit(t, db, user.ID, models.StoreCredit{
		Amount: 90, Balance: 90, Source: models.CreditSourceAdmin,
		ValidFrom: now.Add(time.Hour), ValidUntil: now.Add(48 * time.Hour), IsActive: true,
	})
	// Deactivated.
	seedCredit(t, db, user.ID, models.StoreCredit{
		Amount: 70, Balance: 70, Source: models.CreditSourceAdmin,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(24 * time.Hour), IsActive: false,
	})
	// Fully spent.
	seedCredit(t, db, user.ID, models.StoreCredit{
		Amount: 50, Balance: 0, Source: models.CreditSourceReferral,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(24 * time.Hour), IsActive: true, IsUsed: true,
	})
	// Someone else's credit never leaks in.
	seedCredit(t, db, other.ID, models.StoreCredit{
		Amount: 999, Balance: 999, Source: models.CreditSourceReferral,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(24 * time.Hour), IsActive: true,
	})

	total, err := svc.AvailableCreditAmount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 420.0, total)

	credits, err := svc.Credits(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, credits, 6)
}

func TestCouponsBuckets(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	ctx := context.Background()

	user := seedUser(t, db, "0933000003")
	now := time.Now()

	open := models.Coupon{
		Code: "SPRING10", Type: models.DiscountTypePercentage, Value: 10,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(24 * time.Hour), IsActive: true,
	}
	closed := models.Coupon{
		Code: "WINTER50", Type: models.DiscountTypeFixed, Value: 50,
		ValidFrom: now.Add(-48 * time.Hour), ValidUntil: now.Add(-time.Hour), IsActive: true,
	}
	require.NoError(t, db.Create(&open).Error)
	require.NoError(t, db.Create(&closed).Error)

	usedAt := now.Add(-time.Minute)
	shortExpiry := now.Add(-time.Second)
	redemptions := []models.CouponRedemption{
		{UserID: user.ID, CouponID: open.ID, ObtainedFrom: "signup"},
		{UserID: user.ID, CouponID: open.ID, IsUsed: true, UsedAt: &usedAt},
		{UserID: user.ID, CouponID: closed.ID},
		// Per-redemption expiry beats the coupon's open window.
		{UserID: user.ID, CouponID: open.ID, ExpiresAt: &shortExpiry},
	}
	for i := range redemptions {
		require.NoError(t, db.Create(&redemptions[i]).Error)
	}

	buckets, err := svc.Coupons(ctx, user.ID)
	require.NoError(t, err)

	assert.Len(t, buckets.Available, 1)
	assert.Len(t, buckets.Used, 1)
	assert.Len(t, buckets.Expired, 2)
	assert.Equal(t, "SPRING10", buckets.Available[0].Coupon.Code)
	assert.Equal(t,
		len(redemptions),
		len(buckets.Available)+len(buckets.Used)+len(buckets.Expired))
}

func TestCouponsEmptyWallet(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)

	user := seedUser(t, db, "0933000004")

	buckets, err := svc.Coupons(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, buckets.Available)
	assert.Empty(t, buckets.Available)
	assert.Empty(t, buckets.Used)
	assert.Empty(t, buckets.Expired)

	total, err := svc.AvailableCreditAmount(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, total)
}
