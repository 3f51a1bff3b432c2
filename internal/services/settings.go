package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"listing-distance/internal/domain"
	"listing-distance/internal/ports"
	"log"
	"strings"

	"github.com/samber/lo"
)

// Storage keys, named as the extension stored them.
const (
	KeyAPIKey     = "apiKey"
	KeyLocations  = "locations"
	KeyTravelMode = "travelMode" // legacy single mode for string-only locations
)

var (
	ErrMissingAPIKey     = errors.New("please enter an API key")
	ErrNoLocations       = errors.New("please add at least one location")
	ErrInvalidTravelMode = errors.New("invalid travel mode")
)

// LoadSettings reads the effective settings from the store.
//
// Locations saved by older versions as plain strings are upgraded in memory
// to {address, travelMode} using the stored legacy travelMode (or driving).
// The upgrade is not written back.
func LoadSettings(ctx context.Context, store ports.SettingsStore) (domain.Settings, error) {
	raw, err := store.Get(ctx, KeyAPIKey, KeyLocations, KeyTravelMode)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	var s domain.Settings
	if v, ok := raw[KeyAPIKey]; ok {
		if err := json.Unmarshal(v, &s.APIKey); err != nil {
			return domain.Settings{}, fmt.Errorf("load settings: decode %s: %w", KeyAPIKey, err)
		}
	}

	var legacyMode string
	if v, ok := raw[KeyTravelMode]; ok {
		if err := json.Unmarshal(v, &legacyMode); err != nil {
			return domain.Settings{}, fmt.Errorf("load settings: decode %s: %w", KeyTravelMode, err)
		}
	}

	locations, err := MigrateLocations(raw[KeyLocations], legacyMode)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	s.Locations = locations

	return s, nil
}

// MigrateLocations decodes a stored locations value that may be either the
// current array of objects or the legacy array of address strings.
func MigrateLocations(raw json.RawMessage, legacyMode string) ([]domain.Location, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode locations: %w", err)
	}

	fallback, err := domain.ParseTravelMode(legacyMode)
	if err != nil {
		log.Printf("settings: ignoring stored legacy travel mode %q", legacyMode)
		fallback = domain.TravelModeDriving
	}

	out := make([]domain.Location, 0, len(items))
	migrated := 0
	for i, item := range items {
		var address string
		if err := json.Unmarshal(item, &address); err == nil {
			if address = strings.TrimSpace(address); address != "" {
				out = append(out, domain.Location{Address: address, TravelMode: fallback})
				migrated++
			}
			continue
		}

		var obj struct {
			Address    string `json:"address"`
			TravelMode string `json:"travelMode"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, fmt.Errorf("decode locations: item %d: %w", i, err)
		}

		address = strings.TrimSpace(obj.Address)
		if address == "" {
			continue
		}

		mode, err := domain.ParseTravelMode(obj.TravelMode)
		if err != nil {
			log.Printf("settings: location %q has unknown travel mode %q, using driving", address, obj.TravelMode)
			mode = domain.TravelModeDriving
		}
		out = append(out, domain.Location{Address: address, TravelMode: mode})
	}

	if migrated > 0 {
		log.Printf("settings: migrated %d legacy locations mode=%s", migrated, fallback)
	}

	return out, nil
}

// Form values submitted by the settings UI.
type SettingsInput struct {
	APIKey    string
	Locations []LocationInput
}

type LocationInput struct {
	Address    string
	TravelMode string
}

// ValidateSettings normalizes submitted settings: trims values, drops empty
// locations and checks that an API key and at least one location remain.
func ValidateSettings(in SettingsInput) (domain.Settings, error) {
	apiKey := strings.TrimSpace(in.APIKey)
	if apiKey == "" {
		return domain.Settings{}, ErrMissingAPIKey
	}

	var modeErr error
	locations := lo.FilterMap(in.Locations, func(l LocationInput, _ int) (domain.Location, bool) {
		address := strings.TrimSpace(l.Address)
		if address == "" {
			return domain.Location{}, false
		}
		mode, err := domain.ParseTravelMode(l.TravelMode)
		if err != nil && modeErr == nil {
			modeErr = fmt.Errorf("%w %q for %q", ErrInvalidTravelMode, l.TravelMode, address)
		}
		return domain.Location{Address: address, TravelMode: mode}, true
	})
	if modeErr != nil {
		return domain.Settings{}, modeErr
	}

	if len(locations) == 0 {
		return domain.Settings{}, ErrNoLocations
	}

	return domain.Settings{APIKey: apiKey, Locations: locations}, nil
}

// SaveSettings validates and persists settings submitted by the settings UI.
func SaveSettings(ctx context.Context, store ports.SettingsStore, in SettingsInput) (domain.Settings, error) {
	s, err := ValidateSettings(in)
	if err != nil {
		return domain.Settings{}, err
	}

	apiKey, err := json.Marshal(s.APIKey)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: encode api key: %w", err)
	}
	locations, err := json.Marshal(s.Locations)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: encode locations: %w", err)
	}

	if err := store.Set(ctx, map[string]json.RawMessage{
		KeyAPIKey:    apiKey,
		KeyLocations: locations,
	}); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	return s, nil
}
