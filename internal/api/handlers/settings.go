package handlers

import (
	"errors"
	"listing-distance/internal/api/dto"
	"listing-distance/internal/domain"
	"listing-distance/internal/ports"
	"listing-distance/internal/relay"
	"listing-distance/internal/services"
	"log"
	"net/http"
)

// Broadcaster delivers a payload-less notification to the subscribed pages.
type Broadcaster interface {
	Broadcast(msg relay.Message) int
}

type SettingsHandler struct {
	Store ports.SettingsStore
	Hub   Broadcaster
}

// Get returns the effective settings with legacy locations already upgraded.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := services.LoadSettings(r.Context(), h.Store)
	if err != nil {
		log.Printf("load settings failed: req_id=%s err=%v", requestID(r), err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, toSettingsResponse(s))
}

// Save validates and persists the submitted settings, then tells every open
// page on the site to reset.
func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req dto.SettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := services.SettingsInput{APIKey: req.APIKey}
	for _, l := range req.Locations {
		in.Locations = append(in.Locations, services.LocationInput{Address: l.Address, TravelMode: l.TravelMode})
	}

	s, err := services.SaveSettings(r.Context(), h.Store, in)
	switch {
	case errors.Is(err, services.ErrMissingAPIKey),
		errors.Is(err, services.ErrNoLocations),
		errors.Is(err, services.ErrInvalidTravelMode):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("save settings failed: req_id=%s err=%v", requestID(r), err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	notified := 0
	if h.Hub != nil {
		notified = h.Hub.Broadcast(relay.Message{Action: relay.ActionSettingsUpdated})
	}
	log.Printf("settings saved: req_id=%s locations=%d notified=%d", requestID(r), len(s.Locations), notified)

	writeJSON(w, r, http.StatusOK, dto.SaveSettingsResponse{
		Status:           "saved",
		Notified:         notified,
		SettingsResponse: toSettingsResponse(s),
	})
}

func toSettingsResponse(s domain.Settings) dto.SettingsResponse {
	locations := s.Locations
	if locations == nil {
		locations = []domain.Location{}
	}
	return dto.SettingsResponse{APIKey: s.APIKey, Locations: locations}
}
