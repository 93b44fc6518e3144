package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hydrachat/internal/chat"
	"hydrachat/internal/core"
	"hydrachat/internal/types"
)

type mockMessageSender struct {
	mock.Mock
}

func (m *mockMessageSender) Send(ctx context.Context, actor types.Actor, input chat.SendInput) (*chat.SendResult, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.SendResult), args.Error(1)
}

type mockChatStore struct {
	mock.Mock
}

func (m *mockChatStore) Create(ctx context.Context, c *types.Chat) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockChatStore) GetByID(ctx context.Context, id string, ownerID string) (*types.Chat, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Chat), args.Error(1)
}

func (m *mockChatStore) ListByOwner(ctx context.Context, ownerID string) ([]types.Chat, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Chat), args.Error(1)
}

func (m *mockChatStore) UpdateTitle(ctx context.Context, id string, ownerID string, title string) error {
	return m.Called(ctx, id, ownerID, title).Error(0)
}

func (m *mockChatStore) Delete(ctx context.Context, id string, ownerID string) error {
	return m.Called(ctx, id, ownerID).Error(0)
}

type mockTranscriptReader struct {
	mock.Mock
}

func (m *mockTranscriptReader) ListByChat(ctx context.Context, chatID string, ownerID string) ([]types.Message, error) {
	args := m.Called(ctx, chatID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Message), args.Error(1)
}

type chatHandlerFixture struct {
	sender   *mockMessageSender
	chats    *mockChatStore
	messages *mockTranscriptReader
	router   chi.Router
}

func newChatFixture() *chatHandlerFixture {
	f := &chatHandlerFixture{
		sender:   &mockMessageSender{},
		chats:    &mockChatStore{},
		messages: &mockTranscriptReader{},
	}
	h := NewChatHandler(f.sender, f.chats, f.messages, core.NewValidator(nil), nil)
	f.router = chi.NewRouter()
	h.RegisterRoutes(f.router)
	return f
}

var testActor = types.Actor{ID: "user-1", Email: "alice@example.com"}

func authedRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(types.WithActor(req.Context(), testActor))
}

func TestChatHandler_Complete_FlatResponseShape(t *testing.T) {
	f := newChatFixture()
	f.sender.On("Send", mock.Anything, testActor, chat.SendInput{ChatID: "", Message: "hello"}).
		Return(&chat.SendResult{
			Chat:  &types.Chat{ID: "chat-1", OwnerID: "user-1", Title: "Hello"},
			Reply: "hi there",
		}, nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/chat/completions", CompletionRequest{Message: "hello"}))

	require.Equal(t, http.StatusOK, rec.Code)

	// The completion endpoint keeps the legacy flat shape: no data envelope.
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hi there", resp["message"])
	assert.Equal(t, "chat-1", resp["chat_id"])
	assert.NotContains(t, resp, "data")
	f.sender.AssertExpectations(t)
}

func TestChatHandler_Complete_QuotaExceeded(t *testing.T) {
	f := newChatFixture()
	f.sender.On("Send", mock.Anything, testActor, mock.Anything).
		Return(nil, types.NewAppErrorWithDetails(
			types.ErrCodeLimitDailyMessages,
			"daily message limit reached",
			nil,
			map[string]any{"count": 100, "limit": 100},
		))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/chat/completions", CompletionRequest{Message: "hello"}))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, string(types.ErrCodeLimitDailyMessages), decodeErrorCode(t, rec))
}

func TestChatHandler_Complete_Unauthenticated(t *testing.T) {
	f := newChatFixture()

	raw, _ := json.Marshal(CompletionRequest{Message: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/chat/completions", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	f.sender.AssertNotCalled(t, "Send")
}

func TestChatHandler_ListChats(t *testing.T) {
	f := newChatFixture()
	f.chats.On("ListByOwner", mock.Anything, "user-1").
		Return([]types.Chat{
			{ID: "chat-2", OwnerID: "user-1", Title: "Plant Tomatoes Indoors"},
			{ID: "chat-1", OwnerID: "user-1", Title: "New Chat"},
		}, nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/chats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []types.Chat `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "chat-2", resp.Data[0].ID)
}

func TestChatHandler_CreateChat(t *testing.T) {
	f := newChatFixture()
	f.chats.On("Create", mock.Anything, mock.MatchedBy(func(c *types.Chat) bool {
		return c.OwnerID == "user-1" && c.Title == chat.DefaultTitle && c.ID != ""
	})).Return(nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/chats", nil))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data types.Chat `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, chat.DefaultTitle, resp.Data.Title)
	f.chats.AssertExpectations(t)
}

func TestChatHandler_ListMessages(t *testing.T) {
	f := newChatFixture()
	f.chats.On("GetByID", mock.Anything, "chat-1", "user-1").
		Return(&types.Chat{ID: "chat-1", OwnerID: "user-1"}, nil)
	f.messages.On("ListByChat", mock.Anything, "chat-1", "user-1").
		Return([]types.Message{
			{ID: "msg-1", ChatID: "chat-1", Role: types.RoleUser, Content: "hello"},
			{ID: "msg-2", ChatID: "chat-1", Role: types.RoleAssistant, Content: "hi"},
		}, nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/chats/chat-1/messages", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []types.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, types.RoleUser, resp.Data[0].Role)
}

func TestChatHandler_ListMessages_ForeignChat(t *testing.T) {
	f := newChatFixture()
	f.chats.On("GetByID", mock.Anything, "chat-other", "user-1").
		Return(nil, types.NewAppError(types.ErrCodeNotFoundChat, "chat not found", nil))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/chats/chat-other/messages", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	f.messages.AssertNotCalled(t, "ListByChat")
}

func TestChatHandler_RenameChat(t *testing.T) {
	f := newChatFixture()
	f.chats.On("UpdateTitle", mock.Anything, "chat-1", "user-1", "Garden Notes").Return(nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, authedRequest(t, http.MethodPatch, "/chats/chat-1", RenameChatRequest{Title: "Garden Notes"}))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Garden Notes", resp.Data["title"])
	f.chats.AssertExpectations(t)
}

func TestChatHandler_RenameChat_EmptyTitle(t *testing.T) {
	f := newChatFixture()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, authedRequest(t, http.MethodPatch, "/chats/chat-1", RenameChatRequest{Title: ""}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	f.chats.AssertNotCalled(t, "UpdateTitle")
}

func TestChatHandler_DeleteChat(t *testing.T) {
	f := newChatFixture()
	f.chats.On("Delete", mock.Anything, "chat-1", "user-1").Return(nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, authedRequest(t, http.MethodDelete, "/chats/chat-1", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	f.chats.AssertExpectations(t)
}

func TestChatHandler_DeleteChat_NotFound(t *testing.T) {
	f := newChatFixture()
	f.chats.On("Delete", mock.Anything, "chat-missing", "user-1").
		Return(types.NewAppError(types.ErrCodeNotFoundChat, "chat not found", nil))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, authedRequest(t, http.MethodDelete, "/chats/chat-missing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}
