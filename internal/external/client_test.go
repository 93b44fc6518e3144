package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydrachat/internal/types"
)

func newRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func TestBaseClient_Do_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "HydraChat/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewBaseClient(server.Client(), "test", "HydraChat/1.0")

	resp, err := client.Do(newRequest(t, server.URL))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBaseClient_Do_PropagatesRequestID(t *testing.T) {
	var gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = r.Header.Get("X-Request-Id")
	}))
	defer server.Close()

	client := NewBaseClient(server.Client(), "test", "HydraChat/1.0")

	ctx := types.WithRequestID(context.Background(), "req-abc")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-abc", gotRequestID)
}

func TestBaseClient_Do_ClientErrorPassedThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewBaseClient(server.Client(), "test", "")

	// 4xx other than 429 is the caller's problem, not a transport failure.
	resp, err := client.Do(newRequest(t, server.URL))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBaseClient_Do_ServerErrorMapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewBaseClient(server.Client(), "test", "")

	_, err := client.Do(newRequest(t, server.URL))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, appErr.Code)
}

func TestBaseClient_Do_RateLimitMapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewBaseClient(server.Client(), "test", "")

	_, err := client.Do(newRequest(t, server.URL))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamRateLimited, appErr.Code)
}

func TestBaseClient_Do_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewBaseClient(server.Client(), "test", "")

	// Trips after more than 5 consecutive failures.
	for i := 0; i < 6; i++ {
		_, err := client.Do(newRequest(t, server.URL))
		require.Error(t, err)
	}

	_, err := client.Do(newRequest(t, server.URL))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, appErr.Code)
	assert.Equal(t, 6, hits)
}
