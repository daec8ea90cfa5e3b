package sqlite

import (
	"database/sql"
	"fmt"
)

// requireRowAffected converts a zero-row UPDATE/DELETE into ErrNotFound.
func requireRowAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
