package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hydrachat/internal/chat"
	"hydrachat/internal/core"
	"hydrachat/internal/types"
)

// MessageSender runs the orchestrated send pipeline.
type MessageSender interface {
	Send(ctx context.Context, actor types.Actor, input chat.SendInput) (*chat.SendResult, error)
}

// ChatStore is the thread CRUD contract the chat handler needs.
type ChatStore interface {
	Create(ctx context.Context, c *types.Chat) error
	GetByID(ctx context.Context, id string, ownerID string) (*types.Chat, error)
	ListByOwner(ctx context.Context, ownerID string) ([]types.Chat, error)
	UpdateTitle(ctx context.Context, id string, ownerID string, title string) error
	Delete(ctx context.Context, id string, ownerID string) error
}

// TranscriptReader lists a chat's messages.
type TranscriptReader interface {
	ListByChat(ctx context.Context, chatID string, ownerID string) ([]types.Message, error)
}

// CompletionRequest is the request body for POST /v1/chat/completions.
// The messages field is accepted for wire compatibility with older clients
// but ignored; the server-side transcript is authoritative.
type CompletionRequest struct {
	Message  string           `json:"message"`
	Messages []types.ChatTurn `json:"messages"`
	ChatID   string           `json:"chat_id"`
}

// CompletionResponse is the legacy-shaped response for POST
// /v1/chat/completions: the assistant text at the top level, plus the chat ID
// so a client that started a new thread can keep posting to it.
type CompletionResponse struct {
	Message string `json:"message"`
	ChatID  string `json:"chat_id"`
}

// RenameChatRequest is the request body for PATCH /v1/chats/{chatID}.
type RenameChatRequest struct {
	Title string `json:"title" validate:"required,max=100"`
}

// ChatHandler handles the completion endpoint and chat thread CRUD.
type ChatHandler struct {
	sender    MessageSender
	chats     ChatStore
	messages  TranscriptReader
	validator *core.Validator
	logger    *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(
	sender MessageSender,
	chats ChatStore,
	messages TranscriptReader,
	v *core.Validator,
	l *slog.Logger,
) *ChatHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ChatHandler{
		sender:    sender,
		chats:     chats,
		messages:  messages,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the completion and chat CRUD endpoints. All require
// authentication.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/completions", h.Complete)
	r.Get("/chats", h.ListChats)
	r.Post("/chats", h.CreateChat)
	r.Get("/chats/{chatID}/messages", h.ListMessages)
	r.Patch("/chats/{chatID}", h.RenameChat)
	r.Delete("/chats/{chatID}", h.DeleteChat)
}

// Complete handles POST /v1/chat/completions. Provider failures surface as a
// normal response carrying the fallback text, never as an error status; the
// turn is persisted either way.
func (h *ChatHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req CompletionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.sender.Send(r.Context(), actor, chat.SendInput{
		ChatID:  req.ChatID,
		Message: req.Message,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, CompletionResponse{
		Message: result.Reply,
		ChatID:  result.Chat.ID,
	})
}

// ListChats handles GET /v1/chats, newest activity first.
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	chats, err := h.chats.ListByOwner(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: chats})
}

// CreateChat handles POST /v1/chats. New chats start with the placeholder
// title; the first send renames them.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	c := &types.Chat{
		ID:      uuid.NewString(),
		OwnerID: actor.ID,
		Title:   chat.DefaultTitle,
	}
	if err := h.chats.Create(r.Context(), c); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: c})
}

// ListMessages handles GET /v1/chats/{chatID}/messages in chronological
// order. The chat lookup enforces ownership before the transcript is read.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	chatID := chi.URLParam(r, "chatID")
	if _, err := h.chats.GetByID(r.Context(), chatID, actor.ID); err != nil {
		core.Error(w, r, err)
		return
	}

	messages, err := h.messages.ListByChat(r.Context(), chatID, actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: messages})
}

// RenameChat handles PATCH /v1/chats/{chatID}.
func (h *ChatHandler) RenameChat(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req RenameChatRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	chatID := chi.URLParam(r, "chatID")
	if err := h.chats.UpdateTitle(r.Context(), chatID, actor.ID, req.Title); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{
		"id":    chatID,
		"title": req.Title,
	}})
}

// DeleteChat handles DELETE /v1/chats/{chatID}. Messages go with the chat.
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	chatID := chi.URLParam(r, "chatID")
	if err := h.chats.Delete(r.Context(), chatID, actor.ID); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
