package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hydrachat/internal/billing"
	"hydrachat/internal/config"
	"hydrachat/internal/core"
	"hydrachat/internal/types"
)

// SubscriptionResolver reconciles billing state with the payment provider.
type SubscriptionResolver interface {
	Resolve(ctx context.Context, actor types.Actor) (*types.SubscriptionState, error)
	CustomerID(ctx context.Context, email string) (string, error)
}

// CheckoutService creates Stripe-hosted payment pages.
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, email string, priceID string, successURL string, cancelURL string) (string, error)
	CreatePortalSession(ctx context.Context, customerID string, returnURL string) (string, error)
}

// CreateCheckoutRequest is the request body for POST /v1/billing/checkout-session.
type CreateCheckoutRequest struct {
	Plan string `json:"plan" validate:"required"`
}

// RedirectResponse carries a Stripe-hosted page URL.
type RedirectResponse struct {
	URL string `json:"url"`
}

// SubscriptionHandler serves the subscription snapshot and the checkout and
// portal redirects.
type SubscriptionHandler struct {
	resolver  SubscriptionResolver
	checkout  CheckoutService
	billing   config.BillingConfig
	appURL    string
	validator *core.Validator
	logger    *slog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler. Redirect targets
// are built from the configured app URL; client-supplied URLs are never
// accepted.
func NewSubscriptionHandler(
	resolver SubscriptionResolver,
	checkout CheckoutService,
	cfg *config.Config,
	v *core.Validator,
	l *slog.Logger,
) *SubscriptionHandler {
	if l == nil {
		l = slog.Default()
	}

	appURL := ""
	var billingCfg config.BillingConfig
	if cfg != nil {
		appURL = cfg.Server.AppURL
		billingCfg = cfg.Billing
	}

	return &SubscriptionHandler{
		resolver:  resolver,
		checkout:  checkout,
		billing:   billingCfg,
		appURL:    appURL,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the subscription and billing endpoints. All require
// authentication; the Stripe webhook lives in its own handler.
func (h *SubscriptionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/subscription", h.GetSubscription)
	r.Post("/billing/checkout-session", h.CreateCheckoutSession)
	r.Post("/billing/portal-session", h.CreatePortalSession)
}

// GetSubscription handles GET /v1/subscription. The response is the legacy
// flat shape rather than the data envelope. Every call re-syncs with Stripe;
// the local row is only a cache.
func (h *SubscriptionHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	state, err := h.resolver.Resolve(r.Context(), actor)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, state)
}

// CreateCheckoutSession handles POST /v1/billing/checkout-session.
func (h *SubscriptionHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req CreateCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	priceID, err := billing.PriceIDForPlan(h.billing, req.Plan)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	url, err := h.checkout.CreateCheckoutSession(r.Context(),
		actor.Email, priceID,
		h.appURL+"/?checkout=success",
		h.appURL+"/?checkout=cancelled",
	)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create checkout session",
			slog.String("plan", req.Plan),
			slog.Any("error", err),
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: RedirectResponse{URL: url}})
}

// CreatePortalSession handles POST /v1/billing/portal-session. Only accounts
// with a Stripe customer can open the portal.
func (h *SubscriptionHandler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	customerID, err := h.resolver.CustomerID(r.Context(), actor.Email)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if customerID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundSubscriber,
			"no billing account exists for this user",
			nil,
		))
		return
	}

	url, err := h.checkout.CreatePortalSession(r.Context(), customerID, h.appURL)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create portal session", slog.Any("error", err))
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: RedirectResponse{URL: url}})
}
