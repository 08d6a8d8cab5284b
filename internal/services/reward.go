package services

import (
	"math"

	"github.com/example/soleshop/internal/models"
)

// RewardPolicy is the parameter set the reward evaluator runs against.
// It is passed in explicitly so the evaluator stays independent of the
// stored ReferralSettings row.
type RewardPolicy struct {
	Type              models.RewardType
	FixedAmount       float64
	Percentage        float64
	MaxRewardPerOrder *float64
	MinOrderAmount    float64
}

// PolicyFromSettings derives the evaluator policy from the stored
// referral settings.
func PolicyFromSettings(s *models.ReferralSettings) RewardPolicy {
	return RewardPolicy{
		Type:              s.RewardType,
		FixedAmount:       s.FixedAmount,
		Percentage:        s.RewardPercentage,
		MaxRewardPerOrder: s.MaxRewardPerOrder,
		MinOrderAmount:    s.MinOrderAmount,
	}
}

// EvaluateReward computes the reward for an order amount under the given
// policy. Returns the amount and whether the order is eligible at all.
// Deterministic and side-effect free. Amounts round down to the whole
// currency unit so a reward is never overpaid.
func EvaluateReward(orderAmount float64, policy RewardPolicy) (float64, bool) {
	if policy.MinOrderAmount > 0 && orderAmount < policy.MinOrderAmount {
		return 0, false
	}

	var reward float64
	switch policy.Type {
	case models.RewardTypeFixed:
		reward = policy.FixedAmount
	case models.RewardTypePercentage:
		reward = orderAmount * policy.Percentage / 100
		if policy.MaxRewardPerOrder != nil && reward > *policy.MaxRewardPerOrder {
			reward = *policy.MaxRewardPerOrder
		}
	default:
		return 0, false
	}

	reward = math.Floor(reward)
	if reward <= 0 {
		return 0, false
	}
	return reward, true
}
