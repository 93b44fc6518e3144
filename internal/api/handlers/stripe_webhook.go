package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hydrachat/internal/config"
	"hydrachat/internal/core"
	"hydrachat/internal/types"
)

// maxWebhookBody caps the Stripe event payload size. Real events are a few KB.
const maxWebhookBody = 64 * 1024

// WebhookVerifier checks a payload against its signature header.
type WebhookVerifier interface {
	Verify(payload []byte, header string, secret string) error
}

// WebhookResolver re-syncs a user's billing state after a Stripe event.
type WebhookResolver interface {
	Resolve(ctx context.Context, actor types.Actor) (*types.SubscriptionState, error)
}

// WebhookSubscriberStore correlates event payloads with local accounts.
type WebhookSubscriberStore interface {
	GetByEmail(ctx context.Context, email string) (*types.Subscriber, error)
	GetByCustomerID(ctx context.Context, customerID string) (*types.Subscriber, error)
}

// stripeEvent is the subset of a Stripe event payload the handler reads.
// Checkout sessions carry customer_email or customer_details.email;
// subscription events carry only the customer ID.
type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			Customer        string `json:"customer"`
			CustomerEmail   string `json:"customer_email"`
			CustomerDetails struct {
				Email string `json:"email"`
			} `json:"customer_details"`
		} `json:"object"`
	} `json:"data"`
}

// relevantEventTypes lists the event types that change subscription state.
// Everything else is acknowledged and dropped.
var relevantEventTypes = map[string]bool{
	"checkout.session.completed":    true,
	"customer.subscription.created": true,
	"customer.subscription.updated": true,
	"customer.subscription.deleted": true,
}

// StripeWebhookHandler receives Stripe webhook events. It treats every event
// as a hint to re-read the subscription state from the Stripe API rather than
// trusting the event payload, so out-of-order delivery cannot apply stale
// state.
type StripeWebhookHandler struct {
	verifier    WebhookVerifier
	resolver    WebhookResolver
	subscribers WebhookSubscriberStore
	secret      config.SecretString
	logger      *slog.Logger
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler.
func NewStripeWebhookHandler(
	verifier WebhookVerifier,
	resolver WebhookResolver,
	subscribers WebhookSubscriberStore,
	cfg config.BillingConfig,
	l *slog.Logger,
) *StripeWebhookHandler {
	if l == nil {
		l = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier:    verifier,
		resolver:    resolver,
		subscribers: subscribers,
		secret:      cfg.StripeWebhookSecret,
		logger:      l,
	}
}

// RegisterRoutes mounts the webhook endpoint. The path is on the auth
// middleware's public list; Stripe authenticates with the signature header
// instead of a session.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/webhook", h.Receive)
}

// Receive handles POST /v1/billing/webhook. Signature failures are rejected
// with 400; everything after verification answers 200 even when processing
// fails, because Stripe retries non-2xx responses for days and the next
// resolve repairs the state anyway.
func (h *StripeWebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationBody, "failed to read webhook payload", err))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.verifier.Verify(payload, signature, h.secret.Unmask()); err != nil {
		h.logger.WarnContext(r.Context(), "rejected webhook with invalid signature", slog.Any("error", err))
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationWebhookSig, "invalid webhook signature", err))
		return
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.WarnContext(r.Context(), "received unparseable webhook payload", slog.Any("error", err))
		h.acknowledge(w, r)
		return
	}

	if !relevantEventTypes[event.Type] {
		h.acknowledge(w, r)
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe event",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
	)

	if err := h.process(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to process stripe event",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.Type),
			slog.Any("error", err),
		)
	}

	h.acknowledge(w, r)
}

// process correlates the event with a local account and re-resolves its
// subscription state.
func (h *StripeWebhookHandler) process(ctx context.Context, event *stripeEvent) error {
	email := event.Data.Object.CustomerEmail
	if email == "" {
		email = event.Data.Object.CustomerDetails.Email
	}
	if email == "" && event.Data.Object.Customer != "" {
		sub, err := h.subscribers.GetByCustomerID(ctx, event.Data.Object.Customer)
		if err != nil {
			return err
		}
		if sub != nil {
			email = sub.Email
		}
	}
	if email == "" {
		h.logger.WarnContext(ctx, "stripe event carries no resolvable account",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.Type),
		)
		return nil
	}

	sub, err := h.subscribers.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	actor := types.Actor{Email: email}
	if sub != nil {
		actor.ID = sub.UserID
	}

	_, err = h.resolver.Resolve(ctx, actor)
	return err
}

func (h *StripeWebhookHandler) acknowledge(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, map[string]bool{"received": true})
}
