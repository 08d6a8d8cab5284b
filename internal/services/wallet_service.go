package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/soleshop/internal/models"
)

// WalletService is the read model over a user's store credits and coupon
// redemptions. It never mutates anything.
type WalletService struct {
	db *gorm.DB
}

// NewWalletService constructs WalletService.
func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{db: db}
}

// Credits lists the user's store credits newest first.
func (s *WalletService) Credits(ctx context.Context, userID uuid.UUID) ([]models.StoreCredit, error) {
	var credits []models.StoreCredit
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&credits).Error; err != nil {
		return nil, err
	}
	return credits, nil
}

// AvailableCreditAmount sums the balances of every credit that is usable
// right now, per the shared StoreCredit.UsableAt predicate.
func (s *WalletService) AvailableCreditAmount(ctx context.Context, userID uuid.UUID) (float64, error) {
	credits, err := s.Credits(ctx, userID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	var total float64
	for i := range credits {
		if credits[i].UsableAt(now) {
			total += credits[i].Balance
		}
	}
	return total, nil
}

// CouponBuckets is the user's redemptions grouped by derived state.
type CouponBuckets struct {
	Available []models.CouponRedemption `json:"available"`
	Used      []models.CouponRedemption `json:"used"`
	Expired   []models.CouponRedemption `json:"expired"`
}

// Coupons classifies every redemption of the user at the current
// instant. The three buckets partition the full set.
func (s *WalletService) Coupons(ctx context.Context, userID uuid.UUID) (*CouponBuckets, error) {
	var redemptions []models.CouponRedemption
	if err := s.db.WithContext(ctx).
		Preload("Coupon").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&redemptions).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	buckets := &CouponBuckets{
		Available: []models.CouponRedemption{},
		Used:      []models.CouponRedemption{},
		Expired:   []models.CouponRedemption{},
	}
	for _, r := range redemptions {
		switch r.Classify(now) {
		case models.CouponStateAvailable:
			buckets.Available = append(buckets.Available, r)
		case models.CouponStateUsed:
			buckets.Used = append(buckets.Used, r)
		default:
			buckets.Expired = append(buckets.Expired, r)
		}
	}
	return buckets, nil
}
