package messages

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborchat/harbor/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const messageColumns = `id, channel_id, author_id, body, parent_id, mentions, created_at, updated_at, deleted_at`

// GetByID fetches one message, including soft-deleted rows.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("messages: get: %w", err)
	}
	return msg, nil
}

// Create inserts a new message.
func (r *Repository) Create(ctx context.Context, msg Message) (*Message, error) {
	created, err := scanMessage(r.pool.QueryRow(ctx,
		`INSERT INTO messages (channel_id, author_id, body, parent_id, mentions)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+messageColumns,
		msg.ChannelID, msg.AuthorID, msg.Body, msg.ParentID, msg.Mentions))
	if err != nil {
		return nil, fmt.Errorf("messages: create: %w", err)
	}
	return created, nil
}

// UpdateBody replaces the body and refreshed mentions of a message.
func (r *Repository) UpdateBody(ctx context.Context, id int64, body string, mentions []string) (*Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx,
		`UPDATE messages SET body = $2, mentions = $3, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+messageColumns,
		id, body, mentions))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("messages: update: %w", err)
	}
	return msg, nil
}

// SoftDelete marks a message deleted without removing the row.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("messages: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListChannel returns one page of a channel's top-level messages, newest first.
func (r *Repository) ListChannel(ctx context.Context, channelID int64, limit, offset int) ([]Message, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE channel_id = $1 AND parent_id IS NULL AND deleted_at IS NULL`,
		channelID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("messages: count: %w", err)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE channel_id = $1 AND parent_id IS NULL AND deleted_at IS NULL
		 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		channelID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("messages: list: %w", err)
	}
	defer rows.Close()
	list, err := collectMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListThread returns all replies to a thread root, oldest first.
func (r *Repository) ListThread(ctx context.Context, parentID int64) ([]Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE parent_id = $1 AND deleted_at IS NULL
		 ORDER BY id`,
		parentID)
	if err != nil {
		return nil, fmt.Errorf("messages: thread: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// AddReaction upserts a reaction.
func (r *Repository) AddReaction(ctx context.Context, re Reaction) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO reactions (message_id, user_id, emoji)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (message_id, user_id, emoji) DO NOTHING`,
		re.MessageID, re.UserID, re.Emoji)
	if err != nil {
		return fmt.Errorf("messages: add reaction: %w", err)
	}
	return nil
}

// RemoveReaction deletes a reaction if present.
func (r *Repository) RemoveReaction(ctx context.Context, re Reaction) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`,
		re.MessageID, re.UserID, re.Emoji)
	if err != nil {
		return fmt.Errorf("messages: remove reaction: %w", err)
	}
	return nil
}

// ListReactions returns all reactions on a message.
func (r *Repository) ListReactions(ctx context.Context, messageID int64) ([]Reaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT message_id, user_id, emoji, created_at FROM reactions WHERE message_id = $1 ORDER BY created_at`,
		messageID)
	if err != nil {
		return nil, fmt.Errorf("messages: list reactions: %w", err)
	}
	defer rows.Close()
	var out []Reaction
	for rows.Next() {
		var re Reaction
		if err := rows.Scan(&re.MessageID, &re.UserID, &re.Emoji, &re.CreatedAt); err != nil {
			return nil, fmt.Errorf("messages: scan reaction: %w", err)
		}
		out = append(out, re)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages: list reactions: %w", err)
	}
	return out, nil
}

func collectMessages(rows pgx.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("messages: scan: %w", err)
		}
		out = append(out, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages: rows: %w", err)
	}
	return out, nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	var msg Message
	if err := row.Scan(&msg.ID, &msg.ChannelID, &msg.AuthorID, &msg.Body, &msg.ParentID,
		&msg.Mentions, &msg.CreatedAt, &msg.UpdatedAt, &msg.DeletedAt); err != nil {
		return nil, err
	}
	return &msg, nil
}
