// Package storage defines the persistence interface for records and
// sync mappings. Implementations live in subpackages (sqlite).
package storage

import (
	"context"

	"github.com/sddlab/specd/internal/types"
)

// Store is the local durability boundary. All mutation goes through it;
// there is no application-level locking. Concurrent callers on the same
// entity are arbitrated by the store's uniqueness constraints alone.
type Store interface {
	// Record operations.
	CreateRecord(ctx context.Context, record *types.Record) error
	GetRecord(ctx context.Context, id string) (*types.Record, error)
	ListRecords(ctx context.Context) ([]*types.Record, error)
	UpdateRecord(ctx context.Context, record *types.Record) error
	UpdateRecordPhase(ctx context.Context, id string, phase types.Phase) error
	// DeleteRecord removes a record and cascades to its sync mappings.
	DeleteRecord(ctx context.Context, id string) error

	// Sync mapping operations. CreateMapping fails with ErrConflict when
	// a mapping for (EntityType, LocalID) already exists: the unique
	// index is the sole arbiter of creation races.
	CreateMapping(ctx context.Context, mapping *types.SyncMapping) error
	GetMapping(ctx context.Context, entityType types.EntityType, localID string) (*types.SyncMapping, error)
	GetMappingByNumber(ctx context.Context, entityType types.EntityType, remoteNumber int) (*types.SyncMapping, error)
	ListMappings(ctx context.Context, localID string) ([]*types.SyncMapping, error)
	UpdateMapping(ctx context.Context, mapping *types.SyncMapping) error
	DeleteMapping(ctx context.Context, entityType types.EntityType, localID string) error

	// Config operations (integration keys, status mapping overrides).
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, error)
	ListConfig(ctx context.Context) (map[string]string, error)

	// RunInTransaction executes fn atomically. A returned error rolls
	// everything back.
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	Close() error
}

// Transaction exposes the mutating operations available inside
// RunInTransaction.
type Transaction interface {
	CreateRecord(ctx context.Context, record *types.Record) error
	UpdateRecord(ctx context.Context, record *types.Record) error
	UpdateRecordPhase(ctx context.Context, id string, phase types.Phase) error
	DeleteRecord(ctx context.Context, id string) error
	CreateMapping(ctx context.Context, mapping *types.SyncMapping) error
	UpdateMapping(ctx context.Context, mapping *types.SyncMapping) error
	DeleteMapping(ctx context.Context, entityType types.EntityType, localID string) error
}
