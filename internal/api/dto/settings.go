package dto

import "listing-distance/internal/domain"

type LocationRequest struct {
	Address    string `json:"address"`
	TravelMode string `json:"travelMode"`
}

type SettingsRequest struct {
	APIKey    string            `json:"apiKey"`
	Locations []LocationRequest `json:"locations"`
}

type SettingsResponse struct {
	APIKey    string            `json:"apiKey"`
	Locations []domain.Location `json:"locations"`
}

// SaveSettingsResponse reports a successful save and how many open pages were told to reset.
type SaveSettingsResponse struct {
	Status   string `json:"status"`
	Notified int    `json:"notified"`
	SettingsResponse
}
