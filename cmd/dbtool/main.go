package main

import (
	"context"
	"database/sql"
	"listing-distance/internal/adapters/store"
	"listing-distance/internal/config"
	"listing-distance/internal/platform/db"
	"log"
	"strings"
)

// dbtool prepares a Postgres settings store: schema plus optional seed.
func main() {
	config.Load()

	databaseURL := config.Get("DATABASE_URL", "")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	conn, err := db.Open(databaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/settings.json")
	if err := initAndSeed(conn, seedPath); err != nil {
		log.Fatal(err)
	}
}

func initAndSeed(conn *sql.DB, seedPath string) error {
	log.Println("Initializing database schema...")
	if err := store.InitSchema(conn); err != nil {
		return err
	}
	log.Println("Schema ready.")

	log.Printf("Seeding settings from %s...", seedPath)
	if err := store.SeedFromJSON(context.Background(), store.NewSQLSettingsStore(conn), seedPath); err != nil {
		return err
	}
	log.Println("Seeding complete.")

	return nil
}
