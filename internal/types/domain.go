// Package types defines the domain model, error taxonomy, and request-scoped
// context helpers shared across the HydraChat backend. It has no dependencies
// on other internal packages so that every layer can import it freely.
package types

import "time"

// User is an authenticated account. Authentication is email + password; the
// password is stored as a bcrypt hash and never leaves the auth layer.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is an opaque bearer-token login session. Only the SHA-256 digest of
// the token is persisted; the raw token is returned to the client once.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Chat is a named, ordered thread of messages belonging to one user.
// Deleting a chat cascades to its messages.
type Chat struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single transcript entry. Messages are immutable once created
// and totally ordered by CreatedAt within their chat.
type Message struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chat_id"`
	OwnerID   string      `json:"owner_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// Subscriber is the per-user billing and metering record, upserted keyed by
// email. Exactly one row exists per account email. The daily message count is
// owned by the quota tracker; the subscription resolver must never touch it.
type Subscriber struct {
	Email             string
	UserID            string
	StripeCustomerID  *string
	Subscribed        bool
	Tier              Tier
	DailyMessageCount int
	DailyMessageLimit int
	SubscriptionEnd   *time.Time
	UpdatedAt         time.Time
}

// SubscriptionUpdate carries the billing-provider state to be upserted onto a
// Subscriber row. It deliberately has no count field.
type SubscriptionUpdate struct {
	Email            string
	UserID           string
	StripeCustomerID *string
	Subscribed       bool
	Tier             Tier
	MessageLimit     int
	SubscriptionEnd  *time.Time
}

// SubscriptionState is the client-facing snapshot returned by the
// subscription endpoint and refreshed after every send.
type SubscriptionState struct {
	Subscribed        bool       `json:"subscribed"`
	Tier              Tier       `json:"subscription_tier"`
	SubscriptionEnd   *time.Time `json:"subscription_end"`
	DailyMessageCount int        `json:"daily_message_count"`
	DailyMessageLimit int        `json:"daily_message_limit"`
}

// QuotaStatus is the result of a quota check against the daily message limit.
type QuotaStatus struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
}

// ChatTurn is a role/content pair as sent to the completion provider.
type ChatTurn struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}
