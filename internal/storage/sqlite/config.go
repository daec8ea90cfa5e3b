package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SetConfig stores a configuration value, replacing any existing value.
func (s *SQLiteStore) SetConfig(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("config key is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return wrapDBError(fmt.Sprintf("set config %s", key), err)
}

// GetConfig retrieves a configuration value. Missing keys return an
// empty string, not an error: callers treat unset integration keys as
// "not configured".
func (s *SQLiteStore) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", wrapDBError(fmt.Sprintf("get config %s", key), err)
	}
	return value, nil
}

// ListConfig returns all configuration key/value pairs.
func (s *SQLiteStore) ListConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, wrapDBError("list config", err)
	}
	defer func() { _ = rows.Close() }()

	config := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, wrapDBError("scan config", err)
		}
		config[key] = value
	}
	return config, wrapDBError("list config", rows.Err())
}
