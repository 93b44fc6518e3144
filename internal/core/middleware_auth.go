package core

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"hydrachat/internal/types"
)

// Authenticator decouples the HTTP layer from the session store, allowing for
// easy mocking in tests.
type Authenticator interface {
	// ResolveToken resolves an opaque bearer token to the Actor owning the
	// session.
	//
	// Distinct Error Codes:
	// - Return ErrCodeAuthTokenInvalid if the token is malformed or not found.
	// - Return ErrCodeAuthTokenExpired if the session exists but has expired.
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// authPublicPaths lists URL paths that are exempt from authentication.
// Requests to these paths bypass the AuthMiddleware entirely.
var authPublicPaths = map[string]bool{
	"/health":             true,
	"/v1/auth/signup":     true,
	"/v1/auth/login":      true,
	"/v1/billing/webhook": true, // Verified via Stripe signature instead.
}

// AuthMiddleware wraps handlers requiring authentication.
//
//  1. Extracts the Bearer token from the Authorization header.
//  2. Calls Authenticator.ResolveToken to resolve the token to an Actor.
//  3. Injects the Actor into the request context via types.WithActor.
//  4. Returns 401 Unauthorized on failure with distinct error codes:
//     - auth_token_missing: No Authorization header or empty Bearer token.
//     - auth_token_invalid: Token is malformed or not found.
//     - auth_token_expired: Session exists but has expired.
//
// If the Authenticator field on Server is nil (e.g., during tests that don't
// inject one), the middleware passes through without authentication.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// If no authenticator is configured, pass through.
		if s.Authenticator == nil {
			next.ServeHTTP(w, r)
			return
		}

		// Skip authentication for public paths.
		if authPublicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Authorization header is required")
			return
		}

		token := extractBearerToken(authHeader)
		if token == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer token is required")
			return
		}

		actor, err := s.Authenticator.ResolveToken(r.Context(), token)
		if err != nil {
			s.handleAuthError(w, r, err)
			return
		}

		if actor == nil {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid authentication token")
			return
		}

		ctx := types.WithActor(r.Context(), *actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken parses the Authorization header value and returns
// the token string. It expects the format "Bearer <token>" (case-insensitive
// scheme per RFC 7235). Returns empty string if the format is invalid.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	// Case-insensitive comparison of the "Bearer " scheme prefix per RFC 7235.
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	token := authHeader[len(prefix):]
	return strings.TrimSpace(token)
}

// handleAuthError inspects the error from Authenticator.ResolveToken and
// writes the appropriate 401 response with the correct error code.
func (s *Server) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeAuthTokenExpired:
			s.Logger.Warn("authentication failed: token expired",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthTokenExpired, "Authentication token has expired")
			return
		case types.ErrCodeAuthTokenInvalid:
			s.Logger.Warn("authentication failed: token invalid",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid authentication token")
			return
		}
	}

	// Generic error: log it but don't leak internal details.
	s.Logger.Error("authentication failed: unexpected error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Authentication failed")
}

// writeAuthError writes a 401 Unauthorized JSON response with the given error code.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	requestID := types.GetRequestID(r.Context())
	resp := APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: requestID,
		},
	}
	JSON(w, r, http.StatusUnauthorized, resp)
}
