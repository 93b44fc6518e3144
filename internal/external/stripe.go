package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"hydrachat/internal/config"
	"hydrachat/internal/types"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeClientConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	Billing config.BillingConfig
	BaseURL string // Override for testing; defaults to stripeAPIBase
	Logger  *slog.Logger
}

// SubscriptionInfo is the slice of a Stripe subscription the billing resolver
// needs: what the customer pays and when the current period ends.
type SubscriptionInfo struct {
	SubscriptionID   string
	PriceID          string
	AmountMinor      int64 // unit_amount in the currency's minor unit
	CurrentPeriodEnd time.Time
}

// StripeClient talks to the Stripe REST API through BaseClient. Direct HTTP
// keeps all requests on the platform's resilience infrastructure and makes
// testing with httptest straightforward.
type StripeClient struct {
	base      *BaseClient
	secretKey string
	baseURL   string
	logger    *slog.Logger
}

// NewStripeClient creates a new StripeClient.
func NewStripeClient(httpClient *http.Client, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StripeClient{
		base:      NewBaseClient(httpClient, "stripe", "HydraChat/1.0"),
		secretKey: cfg.Billing.StripeSecretKey.Unmask(),
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// NewStripeClientWithBase creates a StripeClient with a pre-configured
// BaseClient. Useful for tests that control the breaker.
func NewStripeClientWithBase(base *BaseClient, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StripeClient{
		base:      base,
		secretKey: cfg.Billing.StripeSecretKey.Unmask(),
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// FindCustomerByEmail returns the Stripe customer ID for an email, or "" when
// no customer exists. Absence is an expected state: accounts that never
// checked out have no customer.
func (s *StripeClient) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	params := url.Values{}
	params.Set("email", email)
	params.Set("limit", "1")

	resp, err := s.doGet(ctx, "/v1/customers", params)
	if err != nil {
		return "", s.wrapStripeError("FindCustomerByEmail", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "FindCustomerByEmail")
	}

	var list stripeCustomerList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamStripe, "failed to decode Stripe customer list", err)
	}

	if len(list.Data) == 0 {
		return "", nil
	}
	return list.Data[0].ID, nil
}

// GetActiveSubscription returns the customer's active subscription, or nil
// when there is none. The price amount is read from the embedded price object
// and, when Stripe omits it, fetched from the prices endpoint.
func (s *StripeClient) GetActiveSubscription(ctx context.Context, customerID string) (*SubscriptionInfo, error) {
	params := url.Values{}
	params.Set("customer", customerID)
	params.Set("status", "active")
	params.Set("limit", "1")

	resp, err := s.doGet(ctx, "/v1/subscriptions", params)
	if err != nil {
		return nil, s.wrapStripeError("GetActiveSubscription", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "GetActiveSubscription")
	}

	var list stripeSubscriptionList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStripe, "failed to decode Stripe subscription list", err)
	}

	if len(list.Data) == 0 {
		return nil, nil
	}

	sub := list.Data[0]
	if len(sub.Items.Data) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamStripe, "Stripe subscription has no items", nil)
	}

	price := sub.Items.Data[0].Price
	amount := price.UnitAmount
	if amount == 0 && price.ID != "" {
		amount, err = s.getPriceAmount(ctx, price.ID)
		if err != nil {
			return nil, err
		}
	}

	return &SubscriptionInfo{
		SubscriptionID:   sub.ID,
		PriceID:          price.ID,
		AmountMinor:      amount,
		CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}, nil
}

// getPriceAmount retrieves a price's unit_amount.
func (s *StripeClient) getPriceAmount(ctx context.Context, priceID string) (int64, error) {
	resp, err := s.doGet(ctx, "/v1/prices/"+priceID, nil)
	if err != nil {
		return 0, s.wrapStripeError("GetPriceAmount", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, s.handleErrorResponse(resp, "GetPriceAmount")
	}

	var price stripePrice
	if err := json.NewDecoder(resp.Body).Decode(&price); err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamStripe, "failed to decode Stripe price", err)
	}
	return price.UnitAmount, nil
}

// CreateCheckoutSession generates a subscription checkout URL for the given
// price. The customer is identified by email; Stripe creates or reuses the
// customer at checkout time.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, email string, priceID string, successURL string, cancelURL string) (string, error) {
	params := url.Values{}
	params.Set("mode", "subscription")
	params.Set("customer_email", email)
	params.Set("success_url", successURL)
	params.Set("cancel_url", cancelURL)
	params.Set("line_items[0][price]", priceID)
	params.Set("line_items[0][quantity]", "1")

	resp, err := s.doPost(ctx, "/v1/checkout/sessions", params)
	if err != nil {
		return "", s.wrapStripeError("CreateCheckoutSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "CreateCheckoutSession")
	}

	var session stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamStripe, "failed to decode Stripe checkout session", err)
	}
	return session.URL, nil
}

// CreatePortalSession generates a Stripe Billing Portal URL for an existing
// customer.
func (s *StripeClient) CreatePortalSession(ctx context.Context, customerID string, returnURL string) (string, error) {
	params := url.Values{}
	params.Set("customer", customerID)
	params.Set("return_url", returnURL)

	resp, err := s.doPost(ctx, "/v1/billing_portal/sessions", params)
	if err != nil {
		return "", s.wrapStripeError("CreatePortalSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "CreatePortalSession")
	}

	var session stripePortalSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamStripe, "failed to decode Stripe portal session", err)
	}
	return session.URL, nil
}

// ---------------------------------------------------------------------------
// HTTP Helpers
// ---------------------------------------------------------------------------

func (s *StripeClient) doGet(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := s.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

func (s *StripeClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)
}

// ---------------------------------------------------------------------------
// Error Handling
// ---------------------------------------------------------------------------

type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleErrorResponse reads a Stripe error response and maps it to a
// types.AppError.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode),
			jsonErr,
		)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: Stripe rate limit exceeded", operation),
			nil,
		)
	case resp.StatusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s: Stripe server error: %s", operation, stripeErr.Error.Message),
			nil,
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe error (%d): %s", operation, resp.StatusCode, stripeErr.Error.Message),
			nil,
		)
	}
}

// wrapStripeError wraps a BaseClient transport error with context.
func (s *StripeClient) wrapStripeError(operation string, err error) error {
	var appErr *types.AppError
	if isAppError(err, &appErr) {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamStripe,
		fmt.Sprintf("%s: Stripe request failed", operation),
		err,
	)
}

// ---------------------------------------------------------------------------
// Stripe Response Types (for JSON deserialization)
// ---------------------------------------------------------------------------

type stripeCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type stripeCustomerList struct {
	Data []stripeCustomer `json:"data"`
}

type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripePortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripePrice struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
}

type stripeSubscription struct {
	ID               string                  `json:"id"`
	Status           string                  `json:"status"`
	CurrentPeriodEnd int64                   `json:"current_period_end"`
	Items            stripeSubscriptionItems `json:"items"`
}

type stripeSubscriptionItems struct {
	Data []stripeSubscriptionItem `json:"data"`
}

type stripeSubscriptionItem struct {
	Price stripePrice `json:"price"`
}

type stripeSubscriptionList struct {
	Data []stripeSubscription `json:"data"`
}

// ---------------------------------------------------------------------------
// Webhook Verification
// ---------------------------------------------------------------------------

// StripeVerifier validates webhook payloads using stripe-go's HMAC-SHA256
// signature check with timestamp tolerance.
type StripeVerifier struct{}

// Verify validates a Stripe webhook payload against the signature header and
// signing secret.
func (v *StripeVerifier) Verify(payload []byte, header string, secret string) error {
	return stripe.ValidatePayload(payload, header, secret)
}
