package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planwright/planwright/internal/domain"
	"github.com/planwright/planwright/internal/port/snapshot"
)

// Store implements the snapshot port on a single JSONB row per handle.
// Each manager instance owns one handle; concurrent writers to the same
// handle are serialized by the manager's mutex, not by the database.
type Store struct {
	pool   *pgxpool.Pool
	handle string
}

// NewStore creates a snapshot store for one workflow handle.
func NewStore(pool *pgxpool.Pool, handle string) *Store {
	return &Store{pool: pool, handle: handle}
}

// Load reads the snapshot row for the handle. A missing row or a row whose
// payload no longer unmarshals yields an empty snapshot and a warning.
func (s *Store) Load(ctx context.Context) (*snapshot.Snapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM workflow_snapshots WHERE handle = $1`, s.handle,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return snapshot.Empty(), nil
		}
		return nil, fmt.Errorf("postgres: load snapshot: %w: %w", domain.ErrPersistence, err)
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("snapshot corrupt, starting empty", "handle", s.handle, "error", err)
		return snapshot.Empty(), nil
	}
	return &snap, nil
}

// Save upserts the snapshot row. The row swap is atomic at the database
// level, which satisfies the crash-consistency contract of the port.
func (s *Store) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("postgres: marshal snapshot: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO workflow_snapshots (handle, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (handle)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		s.handle, data,
	)
	if err != nil {
		return fmt.Errorf("postgres: save snapshot: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Close releases nothing: the pool is owned by the caller and may back
// multiple handles.
func (s *Store) Close() error { return nil }
