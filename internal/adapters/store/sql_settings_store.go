package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"listing-distance/internal/platform/obs"
	"strings"
)

// SQLSettingsStore is a Postgres-backed key/value store for extension settings.
type SQLSettingsStore struct {
	DB *sql.DB
}

func NewSQLSettingsStore(db *sql.DB) *SQLSettingsStore {
	return &SQLSettingsStore{DB: db}
}

// Fetch the raw values stored under the given keys.
func (s *SQLSettingsStore) Get(
	ctx context.Context,
	keys ...string,
) (_ map[string]json.RawMessage, err error) {
	defer obs.Time(ctx, "settings.sql.Get")(&err)

	if s.DB == nil {
		return nil, errors.New("settings store: db is nil")
	}

	uniq := uniqueKeys(keys)
	if len(uniq) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	q := `
	SELECT key, value
    FROM settings
    WHERE key = ANY($1::text[]);
	`

	rows, err := s.DB.QueryContext(ctx, q, uniq)
	if err != nil {
		return nil, fmt.Errorf("get settings: query settings table: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage, len(uniq))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("get settings: scan rows: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get settings: row iteration: %w", err)
	}

	return out, nil
}

// Store every key in values, replacing existing entries.
func (s *SQLSettingsStore) Set(ctx context.Context, values map[string]json.RawMessage) (err error) {
	defer obs.Time(ctx, "settings.sql.Set")(&err)

	if s.DB == nil {
		return errors.New("settings store: db is nil")
	}

	if len(values) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set settings: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO settings (key, value)
    VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE
	SET value = EXCLUDED.value;
	`)
	if err != nil {
		return fmt.Errorf("set settings: db prepare: %w", err)
	}
	defer stmt.Close()

	for key, v := range values {
		if strings.TrimSpace(key) == "" {
			return errors.New("set settings: empty key")
		}
		if !json.Valid(v) {
			return fmt.Errorf("set settings key=%q: value is not valid json", key)
		}

		if _, err := stmt.ExecContext(ctx, key, string(v)); err != nil {
			return fmt.Errorf("set settings key=%q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set settings commit: %w", err)
	}

	return nil
}
