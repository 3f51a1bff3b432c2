package domain

import (
	"fmt"
	"strings"
)

// Mode of transport used by the distance matrix query.
type TravelMode string

const (
	TravelModeDriving   TravelMode = "driving"
	TravelModeTransit   TravelMode = "transit"
	TravelModeWalking   TravelMode = "walking"
	TravelModeBicycling TravelMode = "bicycling"
)

// Parse a stored or submitted travel mode.
// An empty value is the legacy default and maps to driving.
func ParseTravelMode(s string) (TravelMode, error) {
	switch m := TravelMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return TravelModeDriving, nil
	case TravelModeDriving, TravelModeTransit, TravelModeWalking, TravelModeBicycling:
		return m, nil
	default:
		return "", fmt.Errorf("parse travel mode: unknown mode %q", s)
	}
}

// Icon shown next to a result rendered for this mode.
func (m TravelMode) Icon() string {
	switch m {
	case TravelModeDriving:
		return "🚗"
	case TravelModeTransit:
		return "🚌"
	case TravelModeWalking:
		return "🚶"
	case TravelModeBicycling:
		return "🚴"
	default:
		return "📍"
	}
}
