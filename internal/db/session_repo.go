package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"hydrachat/internal/types"
)

// SessionRepository provides data access for the sessions table. Only the
// SHA-256 digest of a session token is stored; lookups are by digest.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new SessionRepository backed by the given
// database connection (pool or transaction).
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, session *types.Session) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO sessions (id, user_id, token_hash, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.ExpiresAt,
	)
	if err := row.Scan(&session.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create session", err)
	}
	return nil
}

// SessionWithUser is a session row joined with the owning user's email, the
// two pieces the auth layer needs to build an Actor in one round trip.
type SessionWithUser struct {
	SessionID string
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// GetByTokenHash retrieves a session by its token digest, joined with the
// user's email. Returns ErrCodeAuthTokenInvalid if no such session exists;
// expiry is the caller's decision so an expired session can produce a
// distinct error code.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*SessionWithUser, error) {
	var s SessionWithUser
	err := r.db.QueryRow(ctx,
		`SELECT s.id, s.user_id, u.email, s.expires_at
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.token_hash = $1`,
		tokenHash,
	).Scan(&s.SessionID, &s.UserID, &s.Email, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "session not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve session", err)
	}
	return &s, nil
}

// Delete removes a session by its token digest. Deleting an already-absent
// session is a no-op so logout is idempotent.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM sessions WHERE token_hash = $1`,
		tokenHash,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete session", err)
	}
	return nil
}

// DeleteExpired removes all sessions whose expiry has passed. Intended for a
// periodic maintenance sweep.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at < NOW()`,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete expired sessions", err)
	}
	return tag.RowsAffected(), nil
}
