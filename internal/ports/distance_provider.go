package ports

import (
	"context"
	"listing-distance/internal/domain"
)

// One origin -> destination lookup for a travel mode.
// APIKey is supplied per call because it travels with the relay message.
type DistanceQuery struct {
	Origin      string
	Destination string
	TravelMode  domain.TravelMode
	APIKey      string
}

// Distance and travel duration between two locations, as display strings.
type DistanceResult struct {
	Distance string `json:"distance"`
	Duration string `json:"duration"`
}

// Contract for retrieving travel distance and duration between locations.
type DistanceProvider interface {
	// Return travel distance and estimated duration between two locations.
	GetDistance(ctx context.Context, q DistanceQuery) (DistanceResult, error)
}
