package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"listing-distance/internal/ports"
	"os"
	"strings"
)

// Initialize the settings schema. The statements are valid for both SQLite and Postgres.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createSettingsQuery := `
	CREATE TABLE IF NOT EXISTS settings (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );
	`

	statements := []string{
		createSettingsQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// Populate the settings store from a JSON object file such as
//
//	{"apiKey": "...", "locations": [{"address": "Via Roma 1, Milano", "travelMode": "transit"}]}
//
// Every top-level key is written verbatim, so legacy shapes can be seeded too.
func SeedFromJSON(ctx context.Context, s ports.SettingsStore, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed settings: read %q: %w", jsonPath, err)
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed settings: parse json: %w", err)
	}

	values := make(map[string]json.RawMessage, len(data))
	for key, v := range data {
		key = strings.TrimSpace(key)
		if key == "" {
			return errors.New("seed settings: empty key")
		}
		values[key] = v
	}

	if err := s.Set(ctx, values); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}

	return nil
}
