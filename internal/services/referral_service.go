package services

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/example/soleshop/internal/models"
)

// ReferralService grants referrer store credits for qualifying orders
// placed by referred users, and manages the global referral policy.
type ReferralService struct {
	db   *gorm.DB
	line *LINEService
}

// NewReferralService constructs ReferralService.
func NewReferralService(db *gorm.DB, line *LINEService) *ReferralService {
	return &ReferralService{db: db, line: line}
}

// HandleQualifyingOrder runs the payout engine for an order that reached
// a qualifying completed state. It returns the minted credit, or nil
// when the order produced no grant (no referral, engine disabled, cap
// reached, or not eligible). Reprocessing the same order returns
// ErrDuplicateGrant and mints nothing.
func (s *ReferralService) HandleQualifyingOrder(ctx context.Context, orderID uuid.UUID) (*models.StoreCredit, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	if !order.Status.IsReferralQualifying() {
		return nil, nil
	}

	var signup models.ReferralSignup
	err := s.db.WithContext(ctx).Preload("ReferralCode").
		First(&signup, "referee_id = ?", order.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, nil
	}

	var minted *models.StoreCredit
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.ReferralUsage{}).
			Where("referee_id = ? AND order_id = ?", order.UserID, order.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateGrant
		}

		usage := models.ReferralUsage{
			ReferralCodeID: signup.ReferralCodeID,
			RefereeID:      order.UserID,
			OrderID:        order.ID,
			OrderAmount:    order.TotalAmount,
		}

		var granted int64
		if err := tx.Model(&models.ReferralUsage{}).
			Where("referral_code_id = ? AND referee_id = ? AND reward_granted = ?",
				signup.ReferralCodeID, order.UserID, true).
			Count(&granted).Error; err != nil {
			return err
		}
		if settings.MaxRewardsPerReferee > 0 && granted >= int64(settings.MaxRewardsPerReferee) {
			return createUsage(tx, &usage)
		}

		reward, eligible := EvaluateReward(order.TotalAmount, PolicyFromSettings(settings))
		if !eligible {
			return createUsage(tx, &usage)
		}

		now := time.Now()
		credit := models.StoreCredit{
			UserID:     signup.ReferralCode.ReferrerID,
			Amount:     reward,
			Balance:    reward,
			Source:     models.CreditSourceReferral,
			ValidFrom:  now,
			ValidUntil: now.AddDate(0, 0, settings.CreditValidityDays),
			IsActive:   true,
		}
		if err := tx.Create(&credit).Error; err != nil {
			return err
		}

		usage.RewardGranted = true
		usage.RewardAmount = reward
		usage.StoreCreditID = &credit.ID
		usage.GrantedAt = &now
		if err := createUsage(tx, &usage); err != nil {
			return err
		}

		minted = &credit
		return nil
	})
	if err != nil {
		return nil, err
	}

	if minted != nil && s.line != nil {
		go func(credit models.StoreCredit, orderNumber string) {
			if err := s.line.NotifyCreditIssued(credit, orderNumber); err != nil {
				log.Printf("[Referral] LINE notification failed for credit %s: %v", credit.ID, err)
			}
		}(*minted, order.OrderNumber)
	}

	return minted, nil
}

// createUsage inserts the usage row, translating the unique-index race
// on (referee, order) into ErrDuplicateGrant for the losing writer.
func createUsage(tx *gorm.DB, usage *models.ReferralUsage) error {
	if err := tx.Create(usage).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateGrant
		}
		return err
	}
	return nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

// GetSettings loads the referral policy singleton, creating the default
// row on first use.
func (s *ReferralService) GetSettings(ctx context.Context) (*models.ReferralSettings, error) {
	var settings models.ReferralSettings
	err := s.db.WithContext(ctx).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.ReferralSettings{
			Enabled:            false,
			RewardType:         models.RewardTypeFixed,
			CreditValidityDays: 180,
		}
		if err := s.db.WithContext(ctx).Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSettings replaces the policy singleton after validation.
func (s *ReferralService) UpdateSettings(ctx context.Context, input models.ReferralSettings) (*models.ReferralSettings, error) {
	if input.RewardType != models.RewardTypeFixed && input.RewardType != models.RewardTypePercentage {
		return nil, ErrInvalidSettings
	}
	if input.RewardType == models.RewardTypePercentage {
		if input.RewardPercentage <= 0 || input.RewardPercentage > 100 {
			return nil, ErrInvalidSettings
		}
	}
	if input.RewardType == models.RewardTypeFixed && input.FixedAmount < 0 {
		return nil, ErrInvalidSettings
	}
	if input.CreditValidityDays <= 0 {
		return nil, ErrInvalidSettings
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	input.ID = settings.ID
	input.CreatedAt = settings.CreatedAt
	if err := s.db.WithContext(ctx).Save(&input).Error; err != nil {
		return nil, err
	}
	return &input, nil
}

// EnsureCodeForUser returns the user's referral code, generating one on
// first request.
func (s *ReferralService) EnsureCodeForUser(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error) {
	var code models.ReferralCode
	err := s.db.WithContext(ctx).First(&code, "referrer_id = ?", userID).Error
	if err == nil {
		return &code, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	generated, err := generateReferralCode()
	if err != nil {
		return nil, err
	}
	code = models.ReferralCode{Code: generated, ReferrerID: userID}
	if err := s.db.WithContext(ctx).Create(&code).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

// RegisterSignup links a new referee to the given referral code. A
// referee can only ever be linked once; an unknown code is ignored so
// registration never fails on a mistyped code.
func (s *ReferralService) RegisterSignup(ctx context.Context, refereeID uuid.UUID, codeValue string) error {
	var code models.ReferralCode
	err := s.db.WithContext(ctx).First(&code, "code = ?", codeValue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if code.ReferrerID == refereeID {
		return nil
	}

	signup := models.ReferralSignup{RefereeID: refereeID, ReferralCodeID: code.ID}
	if err := s.db.WithContext(ctx).Create(&signup).Error; err != nil && !isDuplicateKey(err) {
		return err
	}
	return nil
}

// ReferrerStat is one row of the admin referral statistics view.
type ReferrerStat struct {
	ReferrerID   uuid.UUID `json:"referrer_id"`
	Code         string    `json:"code"`
	GrantedCount int64     `json:"granted_count"`
	TotalReward  float64   `json:"total_reward"`
}

// ReferralStats is derived from the usage ledger on demand; nothing is
// separately maintained.
type ReferralStats struct {
	TotalSignups  int64          `json:"total_signups"`
	TotalGrants   int64          `json:"total_grants"`
	TotalRewarded float64        `json:"total_rewarded"`
	TopReferrers  []ReferrerStat `json:"top_referrers"`
}

// Stats aggregates referral activity for the admin console.
func (s *ReferralService) Stats(ctx context.Context, topN int) (*ReferralStats, error) {
	if topN <= 0 {
		topN = 10
	}

	var stats ReferralStats
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.ReferralSignup{}).Count(&stats.TotalSignups).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.ReferralUsage{}).
		Where("reward_granted = ?", true).
		Count(&stats.TotalGrants).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.ReferralUsage{}).
		Where("reward_granted = ?", true).
		Select("COALESCE(SUM(reward_amount), 0)").
		Scan(&stats.TotalRewarded).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.ReferralUsage{}).
		Select("referral_codes.referrer_id as referrer_id, referral_codes.code as code, COUNT(*) as granted_count, SUM(referral_usages.reward_amount) as total_reward").
		Joins("JOIN referral_codes ON referral_codes.id = referral_usages.referral_code_id").
		Where("referral_usages.reward_granted = ?", true).
		Group("referral_codes.referrer_id, referral_codes.code").
		Order("total_reward desc").
		Limit(topN).
		Scan(&stats.TopReferrers).Error; err != nil {
		return nil, err
	}

	return &stats, nil
}

func generateReferralCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	code := make([]byte, 8)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}
