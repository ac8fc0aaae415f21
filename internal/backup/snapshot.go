package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborchat/harbor/internal/platform/db"
)

// trackedTables is the fixed set of tables included in every snapshot.
var trackedTables = []string{"users", "roles", "channels", "messages"}

// Snapshotter produces backup artifacts.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*Artifact, error)
}

// StoreSnapshotter reads the tracked tables from PostgreSQL into a JSON
// artifact on local disk. Any table read error discards the partial file and
// fails the whole snapshot; a partial snapshot is never uploaded.
type StoreSnapshotter struct {
	pool *pgxpool.Pool
	dir  string
}

// NewStoreSnapshotter constructs a snapshotter writing artifacts under dir
// (os.TempDir when empty).
func NewStoreSnapshotter(pool *pgxpool.Pool, dir string) *StoreSnapshotter {
	if dir == "" {
		dir = os.TempDir()
	}
	return &StoreSnapshotter{pool: pool, dir: dir}
}

type snapshotDocument struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	Tables      map[string][]map[string]any `json:"tables"`
}

// Snapshot exports all rows of every tracked table. The tables are read
// inside one RepeatableRead transaction so the artifact is a consistent cut.
func (s *StoreSnapshotter) Snapshot(ctx context.Context) (*Artifact, error) {
	now := time.Now().UTC()
	doc := snapshotDocument{GeneratedAt: now, Tables: make(map[string][]map[string]any, len(trackedTables))}
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, table := range trackedTables {
			rows, err := readTable(ctx, tx, table)
			if err != nil {
				return fmt.Errorf("backup: snapshot %s: %w", table, err)
			}
			doc.Tables[table] = rows
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, fmt.Sprintf("harbor-%s-%s.json", now.Format("20060102T150405Z"), uuid.NewString()[:8]))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("backup: create artifact: %w", err)
	}
	if err := json.NewEncoder(file).Encode(doc); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("backup: encode artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("backup: close artifact: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("backup: stat artifact: %w", err)
	}
	return &Artifact{Path: path, Timestamp: now, SizeBytes: info.Size()}, nil
}

// readTable streams one table into generic row maps.
func readTable(ctx context.Context, tx pgx.Tx, table string) ([]map[string]any, error) {
	// Table names come from the fixed trackedTables list, never from input.
	rows, err := tx.Query(ctx, `SELECT * FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		record := make(map[string]any, len(fields))
		for i, field := range fields {
			record[field.Name] = values[i]
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
