// Package jsonfile implements the snapshot port as a single JSON file with
// atomic write-temp-then-rename saves.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/planwright/planwright/internal/domain"
	"github.com/planwright/planwright/internal/domain/plan"
	"github.com/planwright/planwright/internal/port/snapshot"
)

// Store persists snapshots to one JSON file on the local filesystem.
type Store struct {
	path string
}

// New creates a Store writing to the given path. The parent directory is
// created if it does not exist.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("jsonfile: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: create dir: %w", err)
	}
	return &Store{path: path}, nil
}

// Load reads the snapshot file. A missing or corrupt file yields an empty
// snapshot and a warning, never an error: startup must not be blocked by a
// bad durable copy.
func (s *Store) Load(_ context.Context) (*snapshot.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return snapshot.Empty(), nil
		}
		slog.Warn("snapshot unreadable, starting empty", "path", s.path, "error", err)
		return snapshot.Empty(), nil
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("snapshot corrupt, starting empty", "path", s.path, "error", err)
		return snapshot.Empty(), nil
	}
	if snap.History == nil {
		snap.History = []plan.Plan{}
	}
	return &snap, nil
}

// Save writes the snapshot atomically: marshal, write to a temp file in the
// same directory, fsync, then rename over the destination.
func (s *Store) Save(_ context.Context, snap *snapshot.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: %w: %w", domain.ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("jsonfile: write: %w: %w", domain.ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("jsonfile: sync: %w: %w", domain.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("jsonfile: close: %w: %w", domain.ErrPersistence, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("jsonfile: rename: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *Store) Close() error { return nil }
