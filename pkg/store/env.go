package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/log"
)

// SetEnv encrypts and upserts one environment variable for a project
func (s *Store) SetEnv(ctx context.Context, actor, projectID int64, key, value string) error {
	blob, err := s.box.EncryptString(value)
	if err != nil {
		return fmt.Errorf("encrypt env %s: %w", key, err)
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO env_vars (project_id, key, value) VALUES (?, ?, ?)
			ON CONFLICT(project_id, key) DO UPDATE SET value = excluded.value`,
			projectID, key, blob)
		if err != nil {
			return fmt.Errorf("set env %s: %w", key, err)
		}
		// The value never reaches the audit trail
		return auditTx(tx, actor, "env.set", fmt.Sprintf("project:%d", projectID), key)
	})
}

// DeleteEnv removes one environment variable for a project
func (s *Store) DeleteEnv(ctx context.Context, actor, projectID int64, key string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`DELETE FROM env_vars WHERE project_id = ? AND key = ?`, projectID, key); err != nil {
			return fmt.Errorf("delete env %s: %w", key, err)
		}
		return auditTx(tx, actor, "env.delete", fmt.Sprintf("project:%d", projectID), key)
	})
}

// ListEnvKeys returns the project's environment variable names, sorted
func (s *Store) ListEnvKeys(ctx context.Context, projectID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM env_vars WHERE project_id = ? ORDER BY key`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list env keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// GetEnvDecrypted returns the project's environment with values decrypted.
// A value that fails to decrypt (key rotation, corruption) degrades to the
// empty string with a warning; the project can still start without it.
func (s *Store) GetEnvDecrypted(ctx context.Context, projectID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM env_vars WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	defer rows.Close()

	env := make(map[string]string)
	for rows.Next() {
		var key string
		var blob []byte
		if err := rows.Scan(&key, &blob); err != nil {
			return nil, err
		}
		value, err := s.box.DecryptString(blob)
		if err != nil {
			logger := log.WithProjectID(projectID)
			logger.Warn().
				Str("key", key).
				Err(err).
				Msg("Env value failed to decrypt, substituting empty string")
			value = ""
		}
		env[key] = value
	}
	return env, rows.Err()
}
