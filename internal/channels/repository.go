package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborchat/harbor/internal/shared"
)

// ErrDuplicateName indicates a channel name collision.
var ErrDuplicateName = errors.New("channels: channel name already exists")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const channelColumns = `id, name, topic, visibility, allowed_roles, created_by, created_at, updated_at`

// List returns all channels ordered by name.
func (r *Repository) List(ctx context.Context) ([]Channel, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+channelColumns+` FROM channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("channels: list: %w", err)
	}
	defer rows.Close()
	var out []Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("channels: scan: %w", err)
		}
		out = append(out, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("channels: list: %w", err)
	}
	return out, nil
}

// GetByID fetches one channel.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Channel, error) {
	ch, err := scanChannel(r.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("channels: get: %w", err)
	}
	return ch, nil
}

// Create inserts a new channel.
func (r *Repository) Create(ctx context.Context, ch Channel) (*Channel, error) {
	created, err := scanChannel(r.pool.QueryRow(ctx,
		`INSERT INTO channels (name, topic, visibility, allowed_roles, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+channelColumns,
		ch.Name, ch.Topic, ch.Visibility, ch.AllowedRoles, ch.CreatedBy))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("channels: create: %w", err)
	}
	return created, nil
}

// Update replaces topic, visibility and allowed roles.
func (r *Repository) Update(ctx context.Context, ch Channel) (*Channel, error) {
	updated, err := scanChannel(r.pool.QueryRow(ctx,
		`UPDATE channels
		 SET topic = $2, visibility = $3, allowed_roles = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING `+channelColumns,
		ch.ID, ch.Topic, ch.Visibility, ch.AllowedRoles))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("channels: update: %w", err)
	}
	return updated, nil
}

// Delete removes a channel. Returns shared.ErrNotFound if nothing was deleted.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("channels: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanChannel(row pgx.Row) (*Channel, error) {
	var ch Channel
	if err := row.Scan(&ch.ID, &ch.Name, &ch.Topic, &ch.Visibility, &ch.AllowedRoles,
		&ch.CreatedBy, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
		return nil, err
	}
	return &ch, nil
}
