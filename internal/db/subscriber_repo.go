package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"hydrachat/internal/types"
)

// SubscriberRepository manages the per-user billing and metering rows.
// The table is keyed by email (unique); the daily_message_count column is
// written only by the usage methods here, never by UpsertState, so a
// subscription refresh can never clobber in-flight metering.
type SubscriberRepository struct {
	db DBTX
}

// NewSubscriberRepository creates a new SubscriberRepository backed by the
// given database connection (pool or transaction).
func NewSubscriberRepository(db DBTX) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

const subscriberColumns = `s.email, s.user_id, s.stripe_customer_id, s.subscribed, s.tier,
	s.daily_message_count, s.daily_message_limit, s.subscription_end, s.updated_at`

// GetByEmail retrieves the subscriber row for an email.
// Returns (nil, nil) when no row exists; absence is an expected state for
// accounts that have never sent a message or been billed.
func (r *SubscriberRepository) GetByEmail(ctx context.Context, email string) (*types.Subscriber, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriberColumns+`
		 FROM subscribers s
		 WHERE s.email = $1`,
		email,
	)

	var s types.Subscriber
	err := row.Scan(
		&s.Email,
		&s.UserID,
		&s.StripeCustomerID,
		&s.Subscribed,
		&s.Tier,
		&s.DailyMessageCount,
		&s.DailyMessageLimit,
		&s.SubscriptionEnd,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscriber", err)
	}
	return &s, nil
}

// GetByCustomerID retrieves the subscriber row linked to a Stripe customer.
// Returns (nil, nil) when no row carries the customer ID; webhook events can
// arrive before the first resolve links the customer.
func (r *SubscriberRepository) GetByCustomerID(ctx context.Context, customerID string) (*types.Subscriber, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriberColumns+`
		 FROM subscribers s
		 WHERE s.stripe_customer_id = $1`,
		customerID,
	)

	var s types.Subscriber
	err := row.Scan(
		&s.Email,
		&s.UserID,
		&s.StripeCustomerID,
		&s.Subscribed,
		&s.Tier,
		&s.DailyMessageCount,
		&s.DailyMessageLimit,
		&s.SubscriptionEnd,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscriber by customer", err)
	}
	return &s, nil
}

// UpsertState writes the billing-provider state onto the subscriber row,
// creating it if absent. daily_message_count is deliberately excluded from
// the update column list.
func (r *SubscriberRepository) UpsertState(ctx context.Context, update *types.SubscriptionUpdate) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscribers
		     (email, user_id, stripe_customer_id, subscribed, tier,
		      daily_message_count, daily_message_limit, subscription_end, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 0, $6, $7, NOW())
		 ON CONFLICT (email) DO UPDATE SET
		     user_id            = EXCLUDED.user_id,
		     stripe_customer_id = EXCLUDED.stripe_customer_id,
		     subscribed         = EXCLUDED.subscribed,
		     tier               = EXCLUDED.tier,
		     daily_message_limit = EXCLUDED.daily_message_limit,
		     subscription_end   = EXCLUDED.subscription_end,
		     updated_at         = NOW()`,
		update.Email,
		update.UserID,
		update.StripeCustomerID,
		update.Subscribed,
		update.Tier,
		update.MessageLimit,
		update.SubscriptionEnd,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert subscriber state", err)
	}
	return nil
}

// IncrementUsage atomically adds one to the daily message count, creating the
// row with the default tier when absent. The single upsert-increment statement
// makes concurrent sends from the same account serialize on the row instead of
// losing increments to a read-modify-write race.
//
// Returns the post-increment count and the row's limit.
func (r *SubscriberRepository) IncrementUsage(ctx context.Context, email string, userID string, defaultTier types.Tier, defaultLimit int) (int, int, error) {
	var count, limit int
	err := r.db.QueryRow(ctx,
		`INSERT INTO subscribers
		     (email, user_id, subscribed, tier, daily_message_count, daily_message_limit, updated_at)
		 VALUES ($1, $2, FALSE, $3, 1, $4, NOW())
		 ON CONFLICT (email) DO UPDATE SET
		     daily_message_count = subscribers.daily_message_count + 1,
		     updated_at          = NOW()
		 RETURNING daily_message_count, daily_message_limit`,
		email,
		userID,
		defaultTier,
		defaultLimit,
	).Scan(&count, &limit)
	if err != nil {
		return 0, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to increment usage", err)
	}
	return count, limit, nil
}

// ResetIfNewDay zeroes the daily count when the row was last touched on an
// earlier UTC calendar day. Callers invoke this before any quota read so the
// first activity of a new day starts from a fresh count.
func (r *SubscriberRepository) ResetIfNewDay(ctx context.Context, email string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE subscribers
		 SET daily_message_count = 0, updated_at = NOW()
		 WHERE email = $1
		   AND (updated_at AT TIME ZONE 'UTC')::date < (NOW() AT TIME ZONE 'UTC')::date`,
		email,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reset daily count", err)
	}
	return nil
}

// ResetStaleDailyCounts zeroes the daily count for every row last touched
// before the current UTC day. Intended for a periodic maintenance sweep;
// per-request correctness does not depend on it because ResetIfNewDay runs
// lazily on access.
func (r *SubscriberRepository) ResetStaleDailyCounts(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscribers
		 SET daily_message_count = 0, updated_at = NOW()
		 WHERE daily_message_count > 0
		   AND (updated_at AT TIME ZONE 'UTC')::date < (NOW() AT TIME ZONE 'UTC')::date`,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to reset stale daily counts", err)
	}
	return tag.RowsAffected(), nil
}
