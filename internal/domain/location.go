package domain

import "strings"

// A user-configured origin. Identity is the address string; the position
// in Settings.Locations is the display order.
type Location struct {
	Address    string     `json:"address"`
	TravelMode TravelMode `json:"travelMode"`
}

// Label is the short origin name shown in a badge: the first comma-separated
// part of the address.
func (l Location) Label() string {
	return OriginLabel(l.Address)
}

func OriginLabel(address string) string {
	label, _, _ := strings.Cut(address, ",")
	return strings.TrimSpace(label)
}

// Settings is the persisted configuration read by the annotator.
type Settings struct {
	APIKey    string     `json:"apiKey"`
	Locations []Location `json:"locations"`
}

func (s Settings) HasAPIKey() bool { return strings.TrimSpace(s.APIKey) != "" }

func (s Settings) HasLocations() bool { return len(s.Locations) > 0 }
