package api

import (
	"listing-distance/internal/api/handlers"
	"listing-distance/internal/ports"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Deps are the adapters the HTTP API is composed from.
type Deps struct {
	Store         ports.SettingsStore
	Provider      ports.DistanceProvider
	Hub           Hub
	DefaultAPIKey string
}

// Hub is the settings broadcast hub served at /events.
type Hub interface {
	handlers.Broadcaster
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	relayHandler := &handlers.RelayHandler{
		Provider:      d.Provider,
		DefaultAPIKey: d.DefaultAPIKey,
	}
	settingsHandler := &handlers.SettingsHandler{
		Store: d.Store,
		Hub:   d.Hub,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware)

	r.Get("/health", handlers.Health)
	r.Post("/relay", relayHandler.Relay)
	r.Get("/settings", settingsHandler.Get)
	r.Post("/settings", settingsHandler.Save)
	if d.Hub != nil {
		r.Get("/events", d.Hub.ServeWS)
	}

	return r
}
