package db

import (
	"context"

	"hydrachat/internal/types"
)

// MessageRepository provides data access for the messages table. Messages are
// append-only; there are no update or single-delete operations.
type MessageRepository struct {
	db DBTX
}

// NewMessageRepository creates a new MessageRepository backed by the given
// database connection (pool or transaction).
func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert appends a message to its chat. Timestamps default to NOW() in the
// database and are returned so callers observe the persisted order.
func (r *MessageRepository) Insert(ctx context.Context, msg *types.Message) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO messages (id, chat_id, owner_id, role, content)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		msg.ID,
		msg.ChatID,
		msg.OwnerID,
		msg.Role,
		msg.Content,
	)
	if err := row.Scan(&msg.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert message", err)
	}
	return nil
}

// ListByChat returns the full transcript of a chat in chronological order.
// Scoped to the owner so a foreign chat ID yields an empty transcript rather
// than another user's messages.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID string, ownerID string) ([]types.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT m.id, m.chat_id, m.owner_id, m.role, m.content, m.created_at
		 FROM messages m
		 WHERE m.chat_id = $1 AND m.owner_id = $2
		 ORDER BY m.created_at ASC`,
		chatID,
		ownerID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list messages", err)
	}
	defer rows.Close()

	messages := make([]types.Message, 0)
	for rows.Next() {
		var m types.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.OwnerID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan message row", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate message rows", err)
	}
	return messages, nil
}

// CountByChat returns the number of messages in a chat. Used to detect a
// chat's first exchange, which triggers title generation.
func (r *MessageRepository) CountByChat(ctx context.Context, chatID string, ownerID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE chat_id = $1 AND owner_id = $2`,
		chatID,
		ownerID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count messages", err)
	}
	return count, nil
}
