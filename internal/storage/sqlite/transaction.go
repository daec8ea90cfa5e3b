package sqlite

import (
	"context"
	"database/sql"

	"github.com/sddlab/specd/internal/storage"
	"github.com/sddlab/specd/internal/types"
)

// Verify sqliteTx implements storage.Transaction at compile time.
var _ storage.Transaction = (*sqliteTx)(nil)

// sqliteTx implements storage.Transaction over a dedicated connection
// with an open transaction. All operations reuse the package-level query
// helpers, so transactional and direct paths cannot drift.
type sqliteTx struct {
	conn *sql.Conn
}

func (t *sqliteTx) CreateRecord(ctx context.Context, record *types.Record) error {
	return createRecord(ctx, t.conn, record)
}

func (t *sqliteTx) UpdateRecord(ctx context.Context, record *types.Record) error {
	return updateRecord(ctx, t.conn, record)
}

func (t *sqliteTx) UpdateRecordPhase(ctx context.Context, id string, phase types.Phase) error {
	return updateRecordPhase(ctx, t.conn, id, phase)
}

func (t *sqliteTx) DeleteRecord(ctx context.Context, id string) error {
	return deleteRecord(ctx, t.conn, id)
}

func (t *sqliteTx) CreateMapping(ctx context.Context, mapping *types.SyncMapping) error {
	return createMapping(ctx, t.conn, mapping)
}

func (t *sqliteTx) UpdateMapping(ctx context.Context, mapping *types.SyncMapping) error {
	return updateMapping(ctx, t.conn, mapping)
}

func (t *sqliteTx) DeleteMapping(ctx context.Context, entityType types.EntityType, localID string) error {
	return deleteMapping(ctx, t.conn, entityType, localID)
}
