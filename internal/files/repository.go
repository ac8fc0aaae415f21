package files

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

const attachmentColumns = `id, message_id, name, key, size_bytes, content_type, uploaded_by, created_at`

// Create inserts attachment metadata.
func (r *Repository) Create(ctx context.Context, att Attachment) (*Attachment, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO files (message_id, name, key, size_bytes, content_type, uploaded_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+attachmentColumns,
		att.MessageID, att.Name, att.Key, att.SizeBytes, att.ContentType, att.UploadedBy)
	created, err := scanAttachment(row)
	if err != nil {
		return nil, fmt.Errorf("files: create: %w", err)
	}
	return created, nil
}

// GetByID fetches one attachment.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Attachment, error) {
	att, err := scanAttachment(r.pool.QueryRow(ctx,
		`SELECT `+attachmentColumns+` FROM files WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("files: get: %w", err)
	}
	return att, nil
}

// ListByMessage returns a message's attachments.
func (r *Repository) ListByMessage(ctx context.Context, messageID int64) ([]Attachment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attachmentColumns+` FROM files WHERE message_id = $1 ORDER BY id`, messageID)
	if err != nil {
		return nil, fmt.Errorf("files: list: %w", err)
	}
	defer rows.Close()
	var out []Attachment
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("files: scan: %w", err)
		}
		out = append(out, *att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("files: list: %w", err)
	}
	return out, nil
}

func scanAttachment(row pgx.Row) (*Attachment, error) {
	var att Attachment
	if err := row.Scan(&att.ID, &att.MessageID, &att.Name, &att.Key, &att.SizeBytes,
		&att.ContentType, &att.UploadedBy, &att.CreatedAt); err != nil {
		return nil, err
	}
	return &att, nil
}
