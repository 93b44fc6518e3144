package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"hydrachat/internal/types"
)

// UserRepository provides data access for the users table.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given
// database connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `u.id, u.email, u.password_hash, u.created_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user account.
// Returns ErrCodeConflictEmail (409) if a user with the same email already
// exists (unique constraint violation on users.email).
func (r *UserRepository) Create(ctx context.Context, user *types.User) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		user.ID,
		user.Email,
		user.PasswordHash,
	)
	if err := row.Scan(&user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictEmail, "an account with this email already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create user", err)
	}
	return nil
}

// GetByEmail retrieves a user by their email address.
// Returns ErrCodeNotFoundUser if no user exists.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.email = $1`,
		email,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user by email", err)
	}
	return u, nil
}

// GetByID retrieves a user by their ID.
// Returns ErrCodeNotFoundUser if no user exists.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.id = $1`,
		id,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return u, nil
}
