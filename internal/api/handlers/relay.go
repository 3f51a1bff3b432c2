package handlers

import (
	"listing-distance/internal/ports"
	"listing-distance/internal/relay"
	"log"
	"net/http"
	"strings"
)

// RelayHandler performs distance lookups for the annotator so the mapping
// API is only ever called from the server.
type RelayHandler struct {
	Provider ports.DistanceProvider
	// DefaultAPIKey is used when a message carries no key of its own.
	DefaultAPIKey string
}

// Relay answers every message with exactly one Response.
func (h *RelayHandler) Relay(w http.ResponseWriter, r *http.Request) {
	var msg relay.Message
	if !decodeJSONWith(r, &msg, func(status int, text string) {
		writeJSON(w, r, status, relay.Failed(text))
	}) {
		return
	}

	if msg.Action != relay.ActionCalculateDistance {
		writeJSON(w, r, http.StatusBadRequest, relay.Failed("unknown action: "+msg.Action))
		return
	}

	apiKey := strings.TrimSpace(msg.APIKey)
	if apiKey == "" {
		apiKey = h.DefaultAPIKey
	}

	res, err := h.Provider.GetDistance(r.Context(), ports.DistanceQuery{
		Origin:      msg.Origin,
		Destination: msg.Destination,
		TravelMode:  msg.TravelMode,
		APIKey:      apiKey,
	})
	if err != nil {
		log.Printf(
			"relay failed: req_id=%s origin=%q destination=%q mode=%s err=%v",
			requestID(r), msg.Origin, msg.Destination, msg.TravelMode, err,
		)
		writeJSON(w, r, http.StatusOK, relay.Failed(err.Error()))
		return
	}

	writeJSON(w, r, http.StatusOK, relay.Succeeded(relay.Distance{
		Distance: res.Distance,
		Duration: res.Duration,
	}))
}
