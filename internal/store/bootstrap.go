package store

import (
	"context"
	"fmt"
	"log"
)

// PasswordHasher hashes a plaintext password for storage.
type PasswordHasher func(password string) (string, error)

// Bootstrap creates the internal tables and seeds the default settings and the
// default administrator. It is idempotent: existing settings are never
// overwritten and the administrator is only created when no account exists.
// It reports whether this call initialized a fresh database.
func (s *Store) Bootstrap(ctx context.Context, hash PasswordHasher) (bool, error) {
	conn, err := s.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return false, MapError(err, "failed to begin bootstrap")
	}
	defer tx.Rollback()

	for _, stmt := range AllSchemaSQL() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return false, MapError(err, "failed to create internal tables")
		}
	}

	defaults := [][2]string{
		{SettingSecret, GenerateSecret()},
		{SettingAppName, "MooseDB"},
		{SettingRecordsPerPage, "100"},
	}
	for _, kv := range defaults {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO _configs (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return false, MapError(err, fmt.Sprintf("failed to seed setting %s", kv[0]))
		}
	}

	var admins int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM _super_admins`).Scan(&admins); err != nil {
		return false, MapError(err, "failed to count administrators")
	}

	fresh := admins == 0
	if fresh {
		hashed, err := hash(DefaultAdminPassword)
		if err != nil {
			return false, fmt.Errorf("store: failed to hash default password: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO _super_admins (name, email, password) VALUES (?, ?, ?)`,
			DefaultAdminName, DefaultAdminEmail, hashed); err != nil {
			return false, MapError(err, "failed to create default administrator")
		}
	}

	if err := tx.Commit(); err != nil {
		return false, MapError(err, "failed to commit bootstrap")
	}

	if fresh {
		log.Printf("store: initialized %s with default administrator %s", s.path, DefaultAdminEmail)
	}
	return fresh, nil
}

// LoadSettings reads every persisted setting.
func LoadSettings(ctx context.Context, q Queryer) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, value FROM _configs`)
	if err != nil {
		return nil, MapError(err, "failed to load settings")
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, MapError(err, "failed to scan setting")
		}
		settings[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err, "failed to load settings")
	}
	return settings, nil
}
