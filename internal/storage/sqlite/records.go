package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sddlab/specd/internal/storage"
	"github.com/sddlab/specd/internal/types"
)

// CreateRecord inserts a new record. Timestamps are set if zero.
func (s *SQLiteStore) CreateRecord(ctx context.Context, record *types.Record) error {
	return createRecord(ctx, s.db, record)
}

// GetRecord retrieves a record by ID.
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*types.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, phase, branch, created_at, updated_at
		FROM records WHERE id = ?`, id)

	record, err := scanRecord(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("get record %s", id), err)
	}
	return record, nil
}

// ListRecords returns all records ordered by creation time.
func (s *SQLiteStore) ListRecords(ctx context.Context) ([]*types.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, phase, branch, created_at, updated_at
		FROM records ORDER BY created_at, id`)
	if err != nil {
		return nil, wrapDBError("list records", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*types.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, wrapDBError("scan record", err)
		}
		records = append(records, record)
	}
	return records, wrapDBError("list records", rows.Err())
}

// UpdateRecord updates all mutable fields of a record and bumps its
// updated timestamp.
func (s *SQLiteStore) UpdateRecord(ctx context.Context, record *types.Record) error {
	return updateRecord(ctx, s.db, record)
}

// UpdateRecordPhase updates only the phase and updated timestamp. The
// phase transition controller uses this for both the forward write and
// the rollback write.
func (s *SQLiteStore) UpdateRecordPhase(ctx context.Context, id string, phase types.Phase) error {
	return updateRecordPhase(ctx, s.db, id, phase)
}

// DeleteRecord removes a record and all sync mappings whose local ID is
// the record's (record and project-membership mappings cascade; sub-issue
// mappings are keyed by task ID and are removed via parent number).
func (s *SQLiteStore) DeleteRecord(ctx context.Context, id string) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.DeleteRecord(ctx, id)
	})
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*types.Record, error) {
	var record types.Record
	var phase string
	err := sc.Scan(&record.ID, &record.Name, &record.Description, &phase,
		&record.Branch, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}
	record.Phase = types.Phase(phase)
	return &record, nil
}

func createRecord(ctx context.Context, db execer, record *types.Record) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO records (id, name, description, phase, branch, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Name, record.Description, string(record.Phase),
		record.Branch, record.CreatedAt, record.UpdatedAt)
	return wrapDBError(fmt.Sprintf("create record %s", record.ID), err)
}

func updateRecord(ctx context.Context, db execer, record *types.Record) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	record.UpdatedAt = time.Now()

	result, err := db.ExecContext(ctx, `
		UPDATE records SET name = ?, description = ?, phase = ?, branch = ?, updated_at = ?
		WHERE id = ?`,
		record.Name, record.Description, string(record.Phase), record.Branch,
		record.UpdatedAt, record.ID)
	if err != nil {
		return wrapDBError(fmt.Sprintf("update record %s", record.ID), err)
	}
	return requireRowAffected(result, fmt.Sprintf("update record %s", record.ID))
}

func updateRecordPhase(ctx context.Context, db execer, id string, phase types.Phase) error {
	if !phase.IsValid() {
		return fmt.Errorf("invalid phase: %q", phase)
	}
	result, err := db.ExecContext(ctx, `
		UPDATE records SET phase = ?, updated_at = ? WHERE id = ?`,
		string(phase), time.Now(), id)
	if err != nil {
		return wrapDBError(fmt.Sprintf("update phase of %s", id), err)
	}
	return requireRowAffected(result, fmt.Sprintf("update phase of %s", id))
}

func deleteRecord(ctx context.Context, db execer, id string) error {
	// Cascade: record and project-membership mappings share the record's
	// local ID; sub-issue mappings reference it through remote_number of
	// the parent mapping.
	var parentNumber int
	row := db.QueryRowContext(ctx, `
		SELECT remote_number FROM sync_mappings WHERE entity_type = ? AND local_id = ?`,
		string(types.EntityRecord), id)
	if err := row.Scan(&parentNumber); err == nil && parentNumber > 0 {
		if _, err := db.ExecContext(ctx, `
			DELETE FROM sync_mappings WHERE entity_type = ? AND parent_number = ?`,
			string(types.EntitySubIssue), parentNumber); err != nil {
			return wrapDBError(fmt.Sprintf("cascade sub-issue mappings of %s", id), err)
		}
	}

	if _, err := db.ExecContext(ctx, `
		DELETE FROM sync_mappings WHERE local_id = ?`, id); err != nil {
		return wrapDBError(fmt.Sprintf("cascade mappings of %s", id), err)
	}

	result, err := db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return wrapDBError(fmt.Sprintf("delete record %s", id), err)
	}
	return requireRowAffected(result, fmt.Sprintf("delete record %s", id))
}
