package chat

import (
	"context"
	"log/slog"

	"hydrachat/internal/billing"
	"hydrachat/internal/types"
)

// quotaStore is the slice of the subscriber repository the tracker needs.
type quotaStore interface {
	GetByEmail(ctx context.Context, email string) (*types.Subscriber, error)
	ResetIfNewDay(ctx context.Context, email string) error
	IncrementUsage(ctx context.Context, email string, userID string, defaultTier types.Tier, defaultLimit int) (int, int, error)
}

// Tracker enforces the per-account daily message limit. It fails closed: a
// storage error denies the send rather than risking unmetered usage.
type Tracker struct {
	subscribers quotaStore
	logger      *slog.Logger
}

// NewTracker creates a quota Tracker.
func NewTracker(subscribers quotaStore, logger *slog.Logger) *Tracker {
	return &Tracker{subscribers: subscribers, logger: logger}
}

// CheckQuota reports whether the account may send another message today.
// Accounts with no subscriber row get the base quota; the row is created
// lazily by the first RecordUsage.
func (t *Tracker) CheckQuota(ctx context.Context, email string) (types.QuotaStatus, error) {
	if err := t.subscribers.ResetIfNewDay(ctx, email); err != nil {
		return types.QuotaStatus{}, err
	}

	row, err := t.subscribers.GetByEmail(ctx, email)
	if err != nil {
		return types.QuotaStatus{}, err
	}

	count := 0
	limit := billing.BaseDailyLimit
	if row != nil {
		count = row.DailyMessageCount
		if row.DailyMessageLimit > 0 {
			limit = row.DailyMessageLimit
		}
	}

	status := types.QuotaStatus{
		Allowed: count < limit,
		Count:   count,
		Limit:   limit,
	}
	if status.Allowed {
		status.Remaining = limit - count
	}
	return status, nil
}

// RecordUsage charges one message against the account's daily allowance,
// creating the subscriber row with base defaults when absent. Returns the
// post-charge status.
func (t *Tracker) RecordUsage(ctx context.Context, email string, userID string) (types.QuotaStatus, error) {
	count, limit, err := t.subscribers.IncrementUsage(ctx, email, userID, types.TierBase, billing.BaseDailyLimit)
	if err != nil {
		return types.QuotaStatus{}, err
	}

	status := types.QuotaStatus{
		Allowed: count <= limit,
		Count:   count,
		Limit:   limit,
	}
	if count < limit {
		status.Remaining = limit - count
	}
	return status, nil
}
