// Package billing maps Stripe subscription state onto HydraChat tiers and
// keeps the local subscriber snapshot in sync with the billing provider.
package billing

import (
	"hydrachat/internal/config"
	"hydrachat/internal/types"
)

// TierQuota pairs a tier with its daily message limit.
type TierQuota struct {
	Tier              types.Tier
	DailyMessageLimit int
}

// BaseDailyLimit is the free-tier daily message allowance.
const BaseDailyLimit = 100

// amountTiers maps a subscription price (minor currency units per month) to
// the tier it buys. Pricing changes mean a new price amount, so the mapping
// is keyed on amount rather than price ID; price IDs differ between test and
// live mode.
var amountTiers = map[int64]TierQuota{
	500: {Tier: types.TierPlus, DailyMessageLimit: 300},
	800: {Tier: types.TierProPlus, DailyMessageLimit: 500},
}

// BaseQuota returns the free-tier quota.
func BaseQuota() TierQuota {
	return TierQuota{Tier: types.TierBase, DailyMessageLimit: BaseDailyLimit}
}

// QuotaForAmount maps a subscription amount to its tier and limit. Unknown
// amounts report ok=false and fall back to the base quota so a new price in
// Stripe degrades service level rather than breaking sends.
func QuotaForAmount(amountMinor int64) (TierQuota, bool) {
	if quota, ok := amountTiers[amountMinor]; ok {
		return quota, true
	}
	return BaseQuota(), false
}

// QuotaForTier returns the quota for a known tier, or the base quota for
// anything unrecognized.
func QuotaForTier(tier types.Tier) TierQuota {
	for _, quota := range amountTiers {
		if quota.Tier == tier {
			return quota
		}
	}
	return BaseQuota()
}

// Plan is a client-supplied checkout plan identifier.
const (
	PlanPlus    = "plus"
	PlanProPlus = "pro_plus"
)

// PriceIDForPlan maps a checkout plan name to its configured Stripe price ID.
func PriceIDForPlan(cfg config.BillingConfig, plan string) (string, error) {
	switch plan {
	case PlanPlus:
		return cfg.PlusPriceID, nil
	case PlanProPlus:
		return cfg.ProPlusPriceID, nil
	default:
		return "", types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidPlan,
			"plan must be one of: plus, pro_plus",
			nil,
			map[string]any{"plan": plan},
		)
	}
}
