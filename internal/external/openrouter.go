package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"hydrachat/internal/config"
	"hydrachat/internal/types"
)

// openRouterAPIBase is the default OpenRouter API base URL.
// Overridable in tests via the config BaseURL.
const openRouterAPIBase = "https://openrouter.ai"

// Attribution headers OpenRouter uses for app ranking.
const (
	openRouterReferer = "https://hydrachat.app"
	openRouterTitle   = "HYDRACHAT"
)

// systemPrompt is prepended to every completion request.
const systemPrompt = "You are a helpful AI assistant. Provide clear, concise, and helpful responses."

// emptyChoiceReply is returned when the provider responds 200 with no usable
// choice. It is a normal assistant turn, not an error.
const emptyChoiceReply = "I received your message but couldn't generate a proper response."

// OpenRouterClient implements the completion provider by making direct HTTP
// calls to the OpenRouter chat completions API through BaseClient.
type OpenRouterClient struct {
	base    *BaseClient
	apiKey  string
	model   string
	baseURL string
	logger  *slog.Logger
}

// NewOpenRouterClient creates a new OpenRouterClient. The httpClient timeout
// bounds the whole completion round trip and should come from
// CompletionConfig.Timeout.
func NewOpenRouterClient(httpClient *http.Client, cfg config.CompletionConfig, logger *slog.Logger) *OpenRouterClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openRouterAPIBase
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenRouterClient{
		base:    NewBaseClient(httpClient, "openrouter", "HydraChat/1.0"),
		apiKey:  cfg.APIKey.Unmask(),
		model:   cfg.Model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// NewOpenRouterClientWithBase creates an OpenRouterClient with a
// pre-configured BaseClient. Useful for tests that share a breaker.
func NewOpenRouterClientWithBase(base *BaseClient, cfg config.CompletionConfig, logger *slog.Logger) *OpenRouterClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openRouterAPIBase
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenRouterClient{
		base:    base,
		apiKey:  cfg.APIKey.Unmask(),
		model:   cfg.Model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

type completionRequest struct {
	Model       string           `json:"model"`
	Messages    []types.ChatTurn `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

type completionResponse struct {
	Choices []completionChoice `json:"choices"`
}

type completionChoice struct {
	Message types.ChatTurn `json:"message"`
}

// Complete sends the conversation to the completion model and returns the
// assistant's reply. The system prompt is prepended and the new user message
// appended, so history carries only the prior persisted turns.
//
// A 200 with no usable choice is not an error; the fixed emptyChoiceReply is
// returned so the conversation still gets an assistant turn.
func (c *OpenRouterClient) Complete(ctx context.Context, history []types.ChatTurn, userMessage string) (string, error) {
	messages := make([]types.ChatTurn, 0, len(history)+2)
	messages = append(messages, types.ChatTurn{Role: types.RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, types.ChatTurn{Role: types.RoleUser, Content: userMessage})

	reqBody := completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   1000,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to serialize completion request", err)
	}

	url := c.baseURL + "/api/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", openRouterReferer)
	req.Header.Set("X-Title", openRouterTitle)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", c.wrapError(err)
	}
	defer resp.Body.Close()

	// BaseClient returns 4xx (other than 429) as-is.
	if resp.StatusCode >= 400 {
		return "", c.handleErrorResponse(ctx, resp)
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamCompletion, "failed to decode completion response", err)
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		c.logger.WarnContext(ctx, "completion returned no usable choice", slog.String("model", c.model))
		return emptyChoiceReply, nil
	}

	return completion.Choices[0].Message.Content, nil
}

func (c *OpenRouterClient) handleErrorResponse(ctx context.Context, resp *http.Response) error {
	c.logger.ErrorContext(ctx, "completion provider error",
		slog.Int("status_code", resp.StatusCode),
		slog.String("model", c.model),
	)
	return types.NewAppError(
		types.ErrCodeUpstreamCompletion,
		fmt.Sprintf("completion provider returned %d", resp.StatusCode),
		nil,
	)
}

// wrapError converts BaseClient transport errors into completion errors while
// preserving the rate-limited code.
func (c *OpenRouterClient) wrapError(err error) error {
	var appErr *types.AppError
	if isAppError(err, &appErr) {
		if appErr.Code == types.ErrCodeUpstreamRateLimited {
			return err
		}
		return types.NewAppError(types.ErrCodeUpstreamCompletion, appErr.Message, appErr.Err)
	}
	return types.NewAppError(types.ErrCodeUpstreamCompletion, "completion request failed", err)
}
