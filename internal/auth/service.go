// Package auth implements account registration and opaque-token session
// authentication. Tokens are random 256-bit values handed to the client once;
// the database stores only their SHA-256 digest, so a leaked sessions table
// cannot be replayed.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"hydrachat/internal/config"
	"hydrachat/internal/db"
	"hydrachat/internal/types"
)

// userStore is the subset of the user repository the auth service needs.
type userStore interface {
	Create(ctx context.Context, user *types.User) error
	GetByEmail(ctx context.Context, email string) (*types.User, error)
}

// sessionStore is the subset of the session repository the auth service needs.
type sessionStore interface {
	Create(ctx context.Context, session *types.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*db.SessionWithUser, error)
	Delete(ctx context.Context, tokenHash string) error
}

// Token is a freshly issued session credential. The plaintext value exists
// only in this struct and the HTTP response carrying it to the client.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Service implements signup, login, logout and token resolution. It satisfies
// the server's Authenticator contract via ResolveToken.
type Service struct {
	users    userStore
	sessions sessionStore
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService creates an auth Service.
func NewService(users userStore, sessions sessionStore, cfg config.AuthConfig, logger *slog.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		ttl:      cfg.SessionTTL,
		logger:   logger,
	}
}

// Signup registers a new account and immediately issues a session so the
// client does not need a follow-up login call. Email uniqueness is enforced
// by the users table; a duplicate surfaces as a conflict error.
func (s *Service) Signup(ctx context.Context, email, password string) (*Token, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}

	user := &types.User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return s.issueSession(ctx, user.ID)
}

// Login verifies credentials and issues a new session token. Unknown email
// and wrong password produce the same error code so the endpoint does not
// reveal which accounts exist.
func (s *Service) Login(ctx context.Context, email, password string) (*Token, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundUser {
			return nil, types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)
	}

	return s.issueSession(ctx, user.ID)
}

// Logout revokes the session behind the given token. Unknown tokens are a
// no-op; logout never fails for lack of a session.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, hashToken(token))
}

// ResolveToken maps a bearer token to the acting user. Expired sessions are
// reported with a distinct code so clients can tell re-login from a malformed
// credential.
func (s *Service) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	session, err := s.sessions.GetByTokenHash(ctx, hashToken(token))
	if err != nil {
		return nil, err
	}

	if time.Now().After(session.ExpiresAt) {
		// Best effort cleanup; the maintenance sweep catches anything missed.
		if delErr := s.sessions.Delete(ctx, hashToken(token)); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete expired session", slog.Any("error", delErr))
		}
		return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "session has expired", nil)
	}

	return &types.Actor{ID: session.UserID, Email: session.Email}, nil
}

func (s *Service) issueSession(ctx context.Context, userID string) (*Token, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate session token", err)
	}
	token := hex.EncodeToString(raw)

	session := &types.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hashToken(token),
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return &Token{Value: token, ExpiresAt: session.ExpiresAt}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
