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

// SQLite backed key/value store for extension settings.
type SqliteSettingsStore struct {
	DB *sql.DB
}

func NewSqliteSettingsStore(db *sql.DB) *SqliteSettingsStore {
	return &SqliteSettingsStore{DB: db}
}

// Fetch the raw values stored under the given keys.
func (s *SqliteSettingsStore) Get(
	ctx context.Context,
	keys ...string,
) (_ map[string]json.RawMessage, err error) {
	defer obs.Time(ctx, "settings.sqlite.Get")(&err)

	if s.DB == nil {
		return nil, errors.New("settings store: db is nil")
	}

	uniq := uniqueKeys(keys)
	if len(uniq) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	ph := make([]string, 0, len(uniq))
	args := make([]any, 0, len(uniq))
	for _, k := range uniq {
		ph = append(ph, "?")
		args = append(args, k)
	}

	// SQLite does not support binding slices directly in an IN (...) clause.
	// Only the placeholder structure is interpolated; all values remain parameterized.
	q := fmt.Sprintf(`
	SELECT
        key,
        value
    FROM settings
    WHERE key IN (%s);
	`, strings.Join(ph, ","))

	rows, err := s.DB.QueryContext(ctx, q, args...)
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
func (s *SqliteSettingsStore) Set(ctx context.Context, values map[string]json.RawMessage) (err error) {
	defer obs.Time(ctx, "settings.sqlite.Set")(&err)

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
	INSERT OR REPLACE INTO settings (
        key,
        value
    )
    VALUES (?, ?);
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

func uniqueKeys(keys []string) []string {
	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}

		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	return uniq
}
