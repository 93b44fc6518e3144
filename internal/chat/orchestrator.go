package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"hydrachat/internal/types"
)

// fallbackReply is persisted as the assistant turn when the completion
// provider fails. The user's message is already stored by then; the
// conversation stays well formed and the send still succeeds.
const fallbackReply = "I'm having trouble connecting to the AI service right now. Please try again."

// chatStore is the slice of the chat repository the orchestrator needs.
type chatStore interface {
	Create(ctx context.Context, chat *types.Chat) error
	GetByID(ctx context.Context, id string, ownerID string) (*types.Chat, error)
	UpdateTitle(ctx context.Context, id string, ownerID string, title string) error
	Touch(ctx context.Context, id string, ownerID string) error
}

// messageStore is the slice of the message repository the orchestrator needs.
type messageStore interface {
	Insert(ctx context.Context, msg *types.Message) error
	ListByChat(ctx context.Context, chatID string, ownerID string) ([]types.Message, error)
	CountByChat(ctx context.Context, chatID string, ownerID string) (int, error)
}

// completer produces an assistant reply for a conversation.
type completer interface {
	Complete(ctx context.Context, history []types.ChatTurn, userMessage string) (string, error)
}

// quotaKeeper checks and charges the daily message allowance.
type quotaKeeper interface {
	CheckQuota(ctx context.Context, email string) (types.QuotaStatus, error)
	RecordUsage(ctx context.Context, email string, userID string) (types.QuotaStatus, error)
}

// subscriptionRefresher re-syncs billing state after a send. Failures are
// logged, never surfaced; the send already happened.
type subscriptionRefresher interface {
	Resolve(ctx context.Context, actor types.Actor) (*types.SubscriptionState, error)
}

// SendInput is one user message aimed at a chat. An empty ChatID starts a new
// chat.
type SendInput struct {
	ChatID  string
	Message string
}

// SendResult is the outcome of a send: the persisted reply, the chat it landed
// in, the post-charge quota, and the refreshed subscription snapshot when the
// refresh succeeded.
type SendResult struct {
	Chat         *types.Chat
	Reply        string
	Quota        types.QuotaStatus
	Subscription *types.SubscriptionState
}

// Orchestrator runs the send pipeline. Sends to the same chat serialize on a
// per-chat mutex so transcript order matches completion order.
type Orchestrator struct {
	chats    chatStore
	messages messageStore
	complete completer
	quota    quotaKeeper
	billing  subscriptionRefresher
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrchestrator creates a send Orchestrator.
func NewOrchestrator(
	chats chatStore,
	messages messageStore,
	complete completer,
	quota quotaKeeper,
	billing subscriptionRefresher,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		chats:    chats,
		messages: messages,
		complete: complete,
		quota:    quota,
		billing:  billing,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Send runs one message through the pipeline:
//
//  1. Deny when the daily quota is spent.
//  2. Resolve or create the target chat.
//  3. Persist the user turn, complete against the prior transcript, persist
//     the assistant turn (the fixed fallback when the provider fails).
//  4. Title the chat on its first exchange.
//  5. Charge the quota exactly once, provider outcome notwithstanding.
//
// Quota is charged per user message, including fallback turns: the account
// consumed a send either way.
func (o *Orchestrator) Send(ctx context.Context, actor types.Actor, input SendInput) (*SendResult, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, types.NewAppError(types.ErrCodeValidationEmptyMessage, "message must not be empty", nil)
	}

	status, err := o.quota.CheckQuota(ctx, actor.Email)
	if err != nil {
		return nil, err
	}
	if !status.Allowed {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeLimitDailyMessages,
			"daily message limit reached",
			nil,
			map[string]any{"count": status.Count, "limit": status.Limit},
		)
	}

	chat, err := o.resolveChat(ctx, actor, input.ChatID)
	if err != nil {
		return nil, err
	}

	unlock := o.lockChat(chat.ID)
	defer unlock()

	priorCount, err := o.messages.CountByChat(ctx, chat.ID, actor.ID)
	if err != nil {
		return nil, err
	}
	firstTurn := priorCount == 0

	history, err := o.loadHistory(ctx, chat.ID, actor.ID)
	if err != nil {
		return nil, err
	}

	userMsg := &types.Message{
		ID:      uuid.NewString(),
		ChatID:  chat.ID,
		OwnerID: actor.ID,
		Role:    types.RoleUser,
		Content: message,
	}
	if err := o.messages.Insert(ctx, userMsg); err != nil {
		return nil, err
	}

	reply, completeErr := o.complete.Complete(ctx, history, message)
	if completeErr != nil {
		o.logger.WarnContext(ctx, "completion failed, persisting fallback reply",
			slog.String("chat_id", chat.ID),
			slog.Any("error", completeErr),
		)
		reply = fallbackReply
	}

	assistantMsg := &types.Message{
		ID:      uuid.NewString(),
		ChatID:  chat.ID,
		OwnerID: actor.ID,
		Role:    types.RoleAssistant,
		Content: reply,
	}
	if err := o.messages.Insert(ctx, assistantMsg); err != nil {
		return nil, err
	}

	if err := o.chats.Touch(ctx, chat.ID, actor.ID); err != nil {
		o.logger.WarnContext(ctx, "failed to touch chat", slog.String("chat_id", chat.ID), slog.Any("error", err))
	}

	if firstTurn {
		title := SynthesizeTitle(message)
		if title != chat.Title {
			if err := o.chats.UpdateTitle(ctx, chat.ID, actor.ID, title); err != nil {
				o.logger.WarnContext(ctx, "failed to set chat title", slog.String("chat_id", chat.ID), slog.Any("error", err))
			} else {
				chat.Title = title
			}
		}
	}

	quota, err := o.quota.RecordUsage(ctx, actor.Email, actor.ID)
	if err != nil {
		// The reply is already persisted; report the send as successful and
		// let the next CheckQuota read whatever count actually landed.
		o.logger.ErrorContext(ctx, "failed to record usage", slog.String("chat_id", chat.ID), slog.Any("error", err))
		quota = status
	}

	result := &SendResult{Chat: chat, Reply: reply, Quota: quota}

	if state, err := o.billing.Resolve(ctx, actor); err != nil {
		o.logger.WarnContext(ctx, "subscription refresh failed", slog.Any("error", err))
	} else {
		result.Subscription = state
	}

	return result, nil
}

func (o *Orchestrator) resolveChat(ctx context.Context, actor types.Actor, chatID string) (*types.Chat, error) {
	if chatID != "" {
		return o.chats.GetByID(ctx, chatID, actor.ID)
	}

	chat := &types.Chat{
		ID:      uuid.NewString(),
		OwnerID: actor.ID,
		Title:   DefaultTitle,
	}
	if err := o.chats.Create(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, chatID string, ownerID string) ([]types.ChatTurn, error) {
	messages, err := o.messages.ListByChat(ctx, chatID, ownerID)
	if err != nil {
		return nil, err
	}

	history := make([]types.ChatTurn, 0, len(messages))
	for _, m := range messages {
		history = append(history, types.ChatTurn{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

// lockChat serializes sends per chat. Mutex entries are never reclaimed; the
// map grows with the number of distinct chats a process has served, which is
// bounded by request volume and reset on deploy.
func (o *Orchestrator) lockChat(chatID string) func() {
	o.mu.Lock()
	m, ok := o.locks[chatID]
	if !ok {
		m = &sync.Mutex{}
		o.locks[chatID] = m
	}
	o.mu.Unlock()

	m.Lock()
	return m.Unlock
}
