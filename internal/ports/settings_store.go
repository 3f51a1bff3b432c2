package ports

import (
	"context"
	"encoding/json"
)

// Port: key/value persistence for extension settings.
//
// Values are stored as raw JSON so that legacy shapes (for example
// locations saved as plain strings) survive until the read path upgrades them.
type SettingsStore interface {
	// Return the raw values for the requested keys. Missing keys are absent from the map.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	// Upsert every key in values.
	Set(ctx context.Context, values map[string]json.RawMessage) error
}
