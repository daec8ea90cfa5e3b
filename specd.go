// Package specd provides a minimal public API for extending sd with
// custom tooling.
//
// Most extensions should use direct SQL queries against sd's database.
// This package exports only the essential types and functions needed for
// Go-based extensions that want to use sd's storage layer
// programmatically.
package specd

import (
	"context"

	"github.com/sddlab/specd/internal/storage"
	"github.com/sddlab/specd/internal/storage/sqlite"
	"github.com/sddlab/specd/internal/types"
)

// Core types for working with records
type (
	Record      = types.Record
	Phase       = types.Phase
	SyncMapping = types.SyncMapping
	EntityType  = types.EntityType
)

// Phase constants, in lifecycle order
const (
	PhaseRequirements   = types.PhaseRequirements
	PhaseDesign         = types.PhaseDesign
	PhaseTasks          = types.PhaseTasks
	PhaseImplementation = types.PhaseImplementation
	PhaseCompleted      = types.PhaseCompleted
)

// EntityType constants
const (
	EntityRecord            = types.EntityRecord
	EntitySubIssue          = types.EntitySubIssue
	EntityProjectMembership = types.EntityProjectMembership
)

// Store provides the minimal interface for extension tooling
type Store = storage.Store

// NewSQLiteStore opens an sd SQLite database for programmatic access.
func NewSQLiteStore(ctx context.Context, dbPath string) (Store, error) {
	return sqlite.New(ctx, dbPath)
}
