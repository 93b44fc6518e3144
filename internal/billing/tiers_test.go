package billing

import (
	"errors"
	"testing"

	"hydrachat/internal/config"
	"hydrachat/internal/types"
)

func TestQuotaForAmount(t *testing.T) {
	tests := []struct {
		name      string
		amount    int64
		wantTier  types.Tier
		wantLimit int
		wantKnown bool
	}{
		{"plus", 500, types.TierPlus, 300, true},
		{"pro plus", 800, types.TierProPlus, 500, true},
		{"zero", 0, types.TierBase, 100, false},
		{"unmapped amount", 1200, types.TierBase, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quota, known := QuotaForAmount(tt.amount)
			if quota.Tier != tt.wantTier {
				t.Errorf("tier = %q, want %q", quota.Tier, tt.wantTier)
			}
			if quota.DailyMessageLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", quota.DailyMessageLimit, tt.wantLimit)
			}
			if known != tt.wantKnown {
				t.Errorf("known = %v, want %v", known, tt.wantKnown)
			}
		})
	}
}

func TestQuotaForTier(t *testing.T) {
	if got := QuotaForTier(types.TierPlus).DailyMessageLimit; got != 300 {
		t.Errorf("Plus limit = %d, want 300", got)
	}
	if got := QuotaForTier(types.TierProPlus).DailyMessageLimit; got != 500 {
		t.Errorf("Pro Plus limit = %d, want 500", got)
	}
	if got := QuotaForTier(types.Tier("bogus")).DailyMessageLimit; got != 100 {
		t.Errorf("unknown tier limit = %d, want 100", got)
	}
}

func TestPriceIDForPlan(t *testing.T) {
	cfg := config.BillingConfig{
		PlusPriceID:    "price_plus",
		ProPlusPriceID: "price_pro_plus",
	}

	id, err := PriceIDForPlan(cfg, PlanPlus)
	if err != nil || id != "price_plus" {
		t.Errorf("PriceIDForPlan(plus) = %q, %v", id, err)
	}

	id, err = PriceIDForPlan(cfg, PlanProPlus)
	if err != nil || id != "price_pro_plus" {
		t.Errorf("PriceIDForPlan(pro_plus) = %q, %v", id, err)
	}

	_, err = PriceIDForPlan(cfg, "enterprise")
	if err == nil {
		t.Fatal("expected error for unknown plan")
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeValidationInvalidPlan {
		t.Errorf("unknown plan error = %v, want %s", err, types.ErrCodeValidationInvalidPlan)
	}
}
