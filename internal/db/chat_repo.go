package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"hydrachat/internal/types"
)

// ChatRepository provides data access for the chats table. All reads and
// writes are scoped to the owning user so one account can never observe or
// mutate another account's threads.
type ChatRepository struct {
	db DBTX
}

// NewChatRepository creates a new ChatRepository backed by the given
// database connection (pool or transaction).
func NewChatRepository(db DBTX) *ChatRepository {
	return &ChatRepository{db: db}
}

// chatColumns defines the standard set of columns selected for chat queries.
// Used consistently across all query methods to avoid column drift.
const chatColumns = `c.id, c.owner_id, c.title, c.created_at, c.updated_at`

// scanChat scans a single chat row into a types.Chat struct.
// The columns must match the order defined in chatColumns.
func scanChat(row pgx.Row) (*types.Chat, error) {
	var c types.Chat
	err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new chat. The caller supplies the ID and title; timestamps
// default to NOW() in the database.
func (r *ChatRepository) Create(ctx context.Context, chat *types.Chat) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO chats (id, owner_id, title)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		chat.ID,
		chat.OwnerID,
		chat.Title,
	)
	if err := row.Scan(&chat.CreatedAt, &chat.UpdatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create chat", err)
	}
	return nil
}

// GetByID retrieves a chat by its ID scoped to the owner.
// Returns ErrCodeNotFoundChat if no such chat exists for this owner; a chat
// belonging to a different user is indistinguishable from a missing one.
func (r *ChatRepository) GetByID(ctx context.Context, id string, ownerID string) (*types.Chat, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+chatColumns+`
		 FROM chats c
		 WHERE c.id = $1 AND c.owner_id = $2`,
		id,
		ownerID,
	)

	c, err := scanChat(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundChat, "chat not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve chat", err)
	}
	return c, nil
}

// ListByOwner returns all chats for a user, most recently active first.
func (r *ChatRepository) ListByOwner(ctx context.Context, ownerID string) ([]types.Chat, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+chatColumns+`
		 FROM chats c
		 WHERE c.owner_id = $1
		 ORDER BY c.updated_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list chats", err)
	}
	defer rows.Close()

	chats := make([]types.Chat, 0)
	for rows.Next() {
		var c types.Chat
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan chat row", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate chat rows", err)
	}
	return chats, nil
}

// UpdateTitle renames a chat. Returns ErrCodeNotFoundChat if the chat does
// not exist for this owner.
func (r *ChatRepository) UpdateTitle(ctx context.Context, id string, ownerID string, title string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE chats SET title = $1, updated_at = NOW()
		 WHERE id = $2 AND owner_id = $3`,
		title,
		id,
		ownerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update chat title", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundChat, "chat not found", nil)
	}
	return nil
}

// Touch bumps the chat's updated_at so it sorts to the top of the owner's
// list after new activity.
func (r *ChatRepository) Touch(ctx context.Context, id string, ownerID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE chats SET updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2`,
		id,
		ownerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to touch chat", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundChat, "chat not found", nil)
	}
	return nil
}

// Delete removes a chat. Messages are removed by the ON DELETE CASCADE
// constraint on messages.chat_id.
func (r *ChatRepository) Delete(ctx context.Context, id string, ownerID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM chats WHERE id = $1 AND owner_id = $2`,
		id,
		ownerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete chat", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundChat, "chat not found", nil)
	}
	return nil
}
