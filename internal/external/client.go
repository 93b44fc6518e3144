// Package external provides the anti-corruption layer between HydraChat domain
// logic and third-party vendor APIs. All outbound HTTP calls are routed through
// the BaseClient, which enforces consistent resilience patterns: circuit
// breaking, trace propagation, and error mapping.
//
// The BaseClient deliberately does not retry. A completion request that times
// out has usually already been billed and generated upstream; replaying it
// doubles cost and latency for the same user message. Callers that want a
// second attempt make one explicitly.
package external

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"hydrachat/internal/types"
)

// BaseClient wraps an *http.Client and a circuit breaker to enforce consistent
// resilience patterns on all outbound HTTP calls. Provider clients (OpenRouter,
// Stripe) embed BaseClient to inherit this behavior.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewBaseClient creates a BaseClient with the given http client, circuit
// breaker name, and user agent string.
func NewBaseClient(httpClient *http.Client, breakerName string, userAgent string) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &BaseClient{
		client:    httpClient,
		breaker:   cb,
		userAgent: userAgent,
	}
}

// Do executes the HTTP request with:
//  1. Trace ID injection (X-Request-Id from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping
//  4. Error mapping to types.AppError
//
// On success (any status below 500 other than 429), Do returns the response
// as-is and the caller is responsible for closing the body. A 429, a 5xx, a
// transport failure, or an open breaker returns a types.AppError with the
// appropriate upstream error code.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if requestID := types.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// 5xx and 429 count as failures for the breaker.
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err == nil {
		return resp, nil
	}

	if resp != nil {
		resp.Body.Close()
	}
	return nil, c.mapError(resp, err)
}

// mapError translates HTTP-level failures into domain-level AppErrors.
func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; upstream service unavailable",
			err,
		)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(
				types.ErrCodeUpstreamRateLimited,
				"upstream rate limit exceeded",
				err,
			)
		case resp.StatusCode >= 500:
			return types.NewAppError(
				types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("upstream returned %d", resp.StatusCode),
				err,
			)
		}
	}

	// Network error, DNS failure, timeout.
	return types.NewAppError(
		types.ErrCodeUpstreamUnavailable,
		"upstream request failed",
		err,
	)
}

// isAppError checks if err is an *types.AppError and extracts it.
func isAppError(err error, target **types.AppError) bool {
	var ae *types.AppError
	if errors.As(err, &ae) {
		*target = ae
		return true
	}
	return false
}
