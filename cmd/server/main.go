package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"listing-distance/internal/adapters/distance"
	"listing-distance/internal/adapters/store"
	"listing-distance/internal/api"
	"listing-distance/internal/config"
	"listing-distance/internal/platform/db"
	"listing-distance/internal/ports"
	"listing-distance/internal/relay"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// main is the application composition root.
// It wires concrete adapters (settings store, Google provider) behind ports and starts the HTTP server.
func main() {
	config.Load()
	cfg := config.LoadServer()

	conn, settings, err := openStore(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if seedPath := config.Get("SEED_PATH", ""); seedPath != "" {
		if err := store.SeedFromJSON(context.Background(), settings, seedPath); err != nil {
			log.Fatal(err)
		}
		log.Printf("Seeded settings path=%s", seedPath)
	}

	if cfg.MapsAPIKey == "" {
		log.Println("MAPS_API_KEY not set (relay uses the key sent with each message)")
	}

	provider := distance.NewGoogleDistanceProvider(cfg.MapsBaseURL, cfg.ProviderTimeout)
	hub := relay.NewHub(cfg.SiteHost)
	router := api.NewRouter(api.Deps{
		Store:         settings,
		Provider:      provider,
		Hub:           hub,
		DefaultAPIKey: cfg.MapsAPIKey,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Leaves room for one provider timeout per relay request.
		WriteTimeout: cfg.ProviderTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown failed: %v", err)
		}
	}()

	log.Printf("Server listening addr=:%s site=%s", cfg.Port, cfg.SiteHost)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// openStore uses Postgres when DATABASE_URL is set and the local SQLite file otherwise.
func openStore(cfg config.Server) (*sql.DB, ports.SettingsStore, error) {
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.InitSchema(conn); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		log.Println("Settings store: postgres")
		return conn, store.NewSQLSettingsStore(conn), nil
	}

	conn, err := db.OpenSqlite(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := store.InitSchema(conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	log.Printf("Settings store: sqlite path=%s", cfg.DBPath)
	return conn, store.NewSqliteSettingsStore(conn), nil
}
