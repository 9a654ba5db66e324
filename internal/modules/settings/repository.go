// Package settings implements the local-first user preference store: a
// durable local snapshot that is authoritative for reads, with debounced
// write-behind sync to the remote preferences API.
package settings

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Repository persists the settings tree as a single msgpack snapshot row.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new settings repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Load reads the snapshot. found is false when no snapshot has ever been
// saved.
func (r *Repository) Load() (tree map[string]interface{}, found bool, err error) {
	var blob []byte
	err = r.db.QueryRow(`SELECT data FROM settings_snapshot WHERE id = 1`).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load settings snapshot: %w", err)
	}

	if err := msgpack.Unmarshal(blob, &tree); err != nil {
		return nil, false, fmt.Errorf("failed to decode settings snapshot: %w", err)
	}
	if tree == nil {
		tree = make(map[string]interface{})
	}
	return tree, true, nil
}

// Save replaces the snapshot.
func (r *Repository) Save(tree map[string]interface{}) error {
	blob, err := msgpack.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to encode settings snapshot: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO settings_snapshot (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save settings snapshot: %w", err)
	}
	return nil
}

// Clear deletes the snapshot.
func (r *Repository) Clear() error {
	if _, err := r.db.Exec(`DELETE FROM settings_snapshot WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to clear settings snapshot: %w", err)
	}
	return nil
}

// SetMeta stores a metadata value, used to track sync bookkeeping like the
// last successful remote reconcile.
func (r *Repository) SetMeta(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set settings meta %q: %w", key, err)
	}
	return nil
}

// GetMeta reads a metadata value; found is false when the key is absent.
func (r *Repository) GetMeta(key string) (value string, found bool, err error) {
	err = r.db.QueryRow(`SELECT value FROM settings_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get settings meta %q: %w", key, err)
	}
	return value, true, nil
}
