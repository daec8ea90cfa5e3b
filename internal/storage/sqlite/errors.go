package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common database conditions.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique constraint violation. For sync
	// mappings this is the signal that another caller won a creation
	// race: the loser must surface "already synced", not a generic
	// failure.
	ErrConflict = errors.New("conflict")
)

// wrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows to ErrNotFound and unique violations to ErrConflict.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isUniqueConstraintError checks if an error is a UNIQUE constraint
// violation from the SQLite driver.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
