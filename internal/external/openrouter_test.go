package external

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydrachat/internal/config"
	"hydrachat/internal/types"
)

func newOpenRouterClient(t *testing.T, server *httptest.Server) *OpenRouterClient {
	t.Helper()
	return NewOpenRouterClient(server.Client(), config.CompletionConfig{
		APIKey:  config.SecretString("sk-or-test"),
		Model:   "deepseek/deepseek-r1",
		BaseURL: server.URL,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOpenRouterClient_Complete_Success(t *testing.T) {
	var gotReq completionRequest
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		gotHeaders = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello! How can I help?"}}]}`))
	}))
	defer server.Close()

	client := newOpenRouterClient(t, server)

	history := []types.ChatTurn{
		{Role: types.RoleUser, Content: "hi"},
		{Role: types.RoleAssistant, Content: "hello"},
	}
	reply, err := client.Complete(context.Background(), history, "what can you do?")
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", reply)

	assert.Equal(t, "Bearer sk-or-test", gotHeaders.Get("Authorization"))
	assert.Equal(t, "https://hydrachat.app", gotHeaders.Get("HTTP-Referer"))
	assert.Equal(t, "HYDRACHAT", gotHeaders.Get("X-Title"))

	assert.Equal(t, "deepseek/deepseek-r1", gotReq.Model)
	assert.Equal(t, 0.7, gotReq.Temperature)
	assert.Equal(t, 1000, gotReq.MaxTokens)

	// System prompt first, prior turns in order, new user message last.
	require.Len(t, gotReq.Messages, 4)
	assert.Equal(t, types.RoleSystem, gotReq.Messages[0].Role)
	assert.Equal(t, types.RoleUser, gotReq.Messages[1].Role)
	assert.Equal(t, types.RoleAssistant, gotReq.Messages[2].Role)
	assert.Equal(t, types.ChatTurn{Role: types.RoleUser, Content: "what can you do?"}, gotReq.Messages[3])
}

func TestOpenRouterClient_Complete_EmptyChoicesIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := newOpenRouterClient(t, server)

	reply, err := client.Complete(context.Background(), nil, "hello")
	require.NoError(t, err)
	assert.Equal(t, emptyChoiceReply, reply)
}

func TestOpenRouterClient_Complete_BlankContentIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"   "}}]}`))
	}))
	defer server.Close()

	client := newOpenRouterClient(t, server)

	reply, err := client.Complete(context.Background(), nil, "hello")
	require.NoError(t, err)
	assert.Equal(t, emptyChoiceReply, reply)
}

func TestOpenRouterClient_Complete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newOpenRouterClient(t, server)

	_, err := client.Complete(context.Background(), nil, "hello")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamCompletion, appErr.Code)
}

func TestOpenRouterClient_Complete_RateLimitPreserved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newOpenRouterClient(t, server)

	_, err := client.Complete(context.Background(), nil, "hello")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamRateLimited, appErr.Code)
}

func TestOpenRouterClient_Complete_ClientErrorMapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	client := newOpenRouterClient(t, server)

	_, err := client.Complete(context.Background(), nil, "hello")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamCompletion, appErr.Code)
}
