package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sddlab/specd/internal/types"
)

// CreateMapping inserts a new sync mapping. The primary key on
// (entity_type, local_id) rejects the second of two racing inserts with
// ErrConflict; callers translate that into "already synced".
func (s *SQLiteStore) CreateMapping(ctx context.Context, mapping *types.SyncMapping) error {
	return createMapping(ctx, s.db, mapping)
}

// GetMapping retrieves a mapping by its local identity.
func (s *SQLiteStore) GetMapping(ctx context.Context, entityType types.EntityType, localID string) (*types.SyncMapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entity_type, local_id, remote_id, remote_number, node_id,
		       parent_number, last_synced_at, status, error_detail
		FROM sync_mappings WHERE entity_type = ? AND local_id = ?`,
		string(entityType), localID)

	mapping, err := scanMapping(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("get mapping %s/%s", entityType, localID), err)
	}
	return mapping, nil
}

// GetMappingByNumber retrieves a mapping by its remote issue number.
// Used by the inverse sync direction, which starts from the remote side.
func (s *SQLiteStore) GetMappingByNumber(ctx context.Context, entityType types.EntityType, remoteNumber int) (*types.SyncMapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entity_type, local_id, remote_id, remote_number, node_id,
		       parent_number, last_synced_at, status, error_detail
		FROM sync_mappings WHERE entity_type = ? AND remote_number = ?`,
		string(entityType), remoteNumber)

	mapping, err := scanMapping(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("get mapping %s/#%d", entityType, remoteNumber), err)
	}
	return mapping, nil
}

// ListMappings returns all mappings for a local ID, across entity types.
func (s *SQLiteStore) ListMappings(ctx context.Context, localID string) ([]*types.SyncMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, local_id, remote_id, remote_number, node_id,
		       parent_number, last_synced_at, status, error_detail
		FROM sync_mappings WHERE local_id = ? ORDER BY entity_type`, localID)
	if err != nil {
		return nil, wrapDBError("list mappings", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []*types.SyncMapping
	for rows.Next() {
		mapping, err := scanMapping(rows)
		if err != nil {
			return nil, wrapDBError("scan mapping", err)
		}
		mappings = append(mappings, mapping)
	}
	return mappings, wrapDBError("list mappings", rows.Err())
}

// UpdateMapping updates an existing mapping after a successful sync.
func (s *SQLiteStore) UpdateMapping(ctx context.Context, mapping *types.SyncMapping) error {
	return updateMapping(ctx, s.db, mapping)
}

// DeleteMapping removes a mapping by its local identity.
func (s *SQLiteStore) DeleteMapping(ctx context.Context, entityType types.EntityType, localID string) error {
	return deleteMapping(ctx, s.db, entityType, localID)
}

func scanMapping(sc scanner) (*types.SyncMapping, error) {
	var m types.SyncMapping
	var entityType, status string
	err := sc.Scan(&entityType, &m.LocalID, &m.RemoteID, &m.RemoteNumber,
		&m.NodeID, &m.ParentNumber, &m.LastSyncedAt, &status, &m.ErrorDetail)
	if err != nil {
		return nil, err
	}
	m.EntityType = types.EntityType(entityType)
	m.Status = types.SyncStatus(status)
	return &m, nil
}

func createMapping(ctx context.Context, db execer, mapping *types.SyncMapping) error {
	if err := mapping.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if mapping.LastSyncedAt.IsZero() {
		mapping.LastSyncedAt = time.Now()
	}
	if mapping.Status == "" {
		mapping.Status = types.SyncSuccess
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_mappings (entity_type, local_id, remote_id, remote_number,
		                           node_id, parent_number, last_synced_at, status, error_detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(mapping.EntityType), mapping.LocalID, mapping.RemoteID,
		mapping.RemoteNumber, mapping.NodeID, mapping.ParentNumber,
		mapping.LastSyncedAt, string(mapping.Status), mapping.ErrorDetail)
	return wrapDBError(fmt.Sprintf("create mapping %s/%s", mapping.EntityType, mapping.LocalID), err)
}

func updateMapping(ctx context.Context, db execer, mapping *types.SyncMapping) error {
	if err := mapping.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	mapping.LastSyncedAt = time.Now()

	result, err := db.ExecContext(ctx, `
		UPDATE sync_mappings
		SET remote_id = ?, remote_number = ?, node_id = ?, parent_number = ?,
		    last_synced_at = ?, status = ?, error_detail = ?
		WHERE entity_type = ? AND local_id = ?`,
		mapping.RemoteID, mapping.RemoteNumber, mapping.NodeID, mapping.ParentNumber,
		mapping.LastSyncedAt, string(mapping.Status), mapping.ErrorDetail,
		string(mapping.EntityType), mapping.LocalID)
	if err != nil {
		return wrapDBError(fmt.Sprintf("update mapping %s/%s", mapping.EntityType, mapping.LocalID), err)
	}
	return requireRowAffected(result, fmt.Sprintf("update mapping %s/%s", mapping.EntityType, mapping.LocalID))
}

func deleteMapping(ctx context.Context, db execer, entityType types.EntityType, localID string) error {
	result, err := db.ExecContext(ctx, `
		DELETE FROM sync_mappings WHERE entity_type = ? AND local_id = ?`,
		string(entityType), localID)
	if err != nil {
		return wrapDBError(fmt.Sprintf("delete mapping %s/%s", entityType, localID), err)
	}
	return requireRowAffected(result, fmt.Sprintf("delete mapping %s/%s", entityType, localID))
}
