package relay

import (
	"errors"
	"listing-distance/internal/domain"
)

const (
	ActionCalculateDistance = "calculateDistance"
	ActionSettingsUpdated   = "settingsUpdated"
)

// ErrRelayFailure is returned by the client when the relay answered with success=false.
var ErrRelayFailure = errors.New("relay failure")

// Message is the request sent from the annotator to the relay, and the
// payload-less notification pushed back over /events.
type Message struct {
	Action      string            `json:"action"`
	Origin      string            `json:"origin,omitempty"`
	Destination string            `json:"destination,omitempty"`
	TravelMode  domain.TravelMode `json:"travelMode,omitempty"`
	APIKey      string            `json:"apiKey,omitempty"`
}

type Distance struct {
	Distance string `json:"distance"`
	Duration string `json:"duration"`
}

// Response carries exactly one of Data (success) or Error (failure).
type Response struct {
	Success bool      `json:"success"`
	Data    *Distance `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
}

func Succeeded(d Distance) Response {
	return Response{Success: true, Data: &d}
}

func Failed(msg string) Response {
	return Response{Success: false, Error: msg}
}
