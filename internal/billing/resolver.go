package billing

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"hydrachat/internal/external"
	"hydrachat/internal/types"
)

// stripeGateway is the slice of the Stripe client the resolver needs.
type stripeGateway interface {
	FindCustomerByEmail(ctx context.Context, email string) (string, error)
	GetActiveSubscription(ctx context.Context, customerID string) (*external.SubscriptionInfo, error)
}

// subscriberStore is the slice of the subscriber repository the resolver needs.
// UpsertState never writes the daily count, so a refresh cannot clobber
// in-flight metering.
type subscriberStore interface {
	GetByEmail(ctx context.Context, email string) (*types.Subscriber, error)
	UpsertState(ctx context.Context, update *types.SubscriptionUpdate) error
	ResetIfNewDay(ctx context.Context, email string) error
}

// Resolver reconciles an account's subscription with Stripe and returns the
// client-facing snapshot. Stripe is the source of truth for tier and end date;
// the local row is a cache that also carries the daily usage count.
type Resolver struct {
	stripe      stripeGateway
	subscribers subscriberStore
	group       singleflight.Group
	logger      *slog.Logger
}

// NewResolver creates a subscription Resolver.
func NewResolver(stripe stripeGateway, subscribers subscriberStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		stripe:      stripe,
		subscribers: subscribers,
		logger:      logger,
	}
}

// Resolve refreshes the subscriber row from Stripe and returns the resulting
// state. Concurrent resolves for the same email share one Stripe round trip.
func (r *Resolver) Resolve(ctx context.Context, actor types.Actor) (*types.SubscriptionState, error) {
	v, err, _ := r.group.Do(actor.Email, func() (any, error) {
		return r.resolve(ctx, actor)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.SubscriptionState), nil
}

func (r *Resolver) resolve(ctx context.Context, actor types.Actor) (*types.SubscriptionState, error) {
	// A stale count from a previous day must not survive into today's snapshot.
	if err := r.subscribers.ResetIfNewDay(ctx, actor.Email); err != nil {
		return nil, err
	}

	update := &types.SubscriptionUpdate{
		Email:        actor.Email,
		UserID:       actor.ID,
		Subscribed:   false,
		Tier:         types.TierBase,
		MessageLimit: BaseDailyLimit,
	}

	customerID, err := r.stripe.FindCustomerByEmail(ctx, actor.Email)
	if err != nil {
		return nil, err
	}

	if customerID != "" {
		update.StripeCustomerID = &customerID

		sub, err := r.stripe.GetActiveSubscription(ctx, customerID)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			quota, known := QuotaForAmount(sub.AmountMinor)
			if !known {
				r.logger.WarnContext(ctx, "subscription amount has no tier mapping",
					slog.Int64("amount_minor", sub.AmountMinor),
					slog.String("price_id", sub.PriceID),
				)
			}
			end := sub.CurrentPeriodEnd
			update.Subscribed = true
			update.Tier = quota.Tier
			update.MessageLimit = quota.DailyMessageLimit
			update.SubscriptionEnd = &end
		}
	}

	if err := r.subscribers.UpsertState(ctx, update); err != nil {
		return nil, err
	}

	row, err := r.subscribers.GetByEmail(ctx, actor.Email)
	if err != nil {
		return nil, err
	}
	if row == nil {
		// Upsert just wrote the row; treat a racing delete as a fresh account.
		return &types.SubscriptionState{
			Subscribed:        update.Subscribed,
			Tier:              update.Tier,
			SubscriptionEnd:   update.SubscriptionEnd,
			DailyMessageCount: 0,
			DailyMessageLimit: update.MessageLimit,
		}, nil
	}

	return &types.SubscriptionState{
		Subscribed:        row.Subscribed,
		Tier:              row.Tier,
		SubscriptionEnd:   row.SubscriptionEnd,
		DailyMessageCount: row.DailyMessageCount,
		DailyMessageLimit: row.DailyMessageLimit,
	}, nil
}

// CustomerID returns the Stripe customer ID for an account, looking at the
// cached row first and falling back to a Stripe search. Returns "" when the
// account has never checked out.
func (r *Resolver) CustomerID(ctx context.Context, email string) (string, error) {
	row, err := r.subscribers.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if row != nil && row.StripeCustomerID != nil && *row.StripeCustomerID != "" {
		return *row.StripeCustomerID, nil
	}
	return r.stripe.FindCustomerByEmail(ctx, email)
}
