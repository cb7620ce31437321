// Package snapshot defines the port interface for durable workflow state.
package snapshot

import (
	"context"
	"time"

	"github.com/planwright/planwright/internal/domain/plan"
)

// SchemaVersion is written into every snapshot's metadata.
const SchemaVersion = 1

// Metadata describes the snapshot itself.
type Metadata struct {
	Version     int       `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

// Snapshot is the full persisted representation of the engine's state: the
// current plan, the bounded history of archived plans, and metadata.
type Snapshot struct {
	CurrentPlan *plan.Plan  `json:"current_plan,omitempty"`
	History     []plan.Plan `json:"history"`
	Metadata    Metadata    `json:"metadata"`
}

// Empty returns a fresh snapshot with no plans.
func Empty() *Snapshot {
	return &Snapshot{
		History:  []plan.Plan{},
		Metadata: Metadata{Version: SchemaVersion},
	}
}

// Store is the port interface for loading and saving snapshots.
//
// Save must be atomic: a crash mid-write never corrupts the durable copy.
// Load on a missing or corrupt source returns an empty snapshot and logs a
// warning — corruption is never fatal to startup.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Close() error
}
