package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads a .env file when present. Real environment variables win.
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}
}

// Get returns the environment value for key or fallback when unset.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// GetDuration parses a Go duration string such as "15s". Invalid values fall back.
func GetDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("config: invalid duration key=%s value=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

// Server holds the relay server configuration.
type Server struct {
	Port            string
	DBPath          string
	DatabaseURL     string
	MapsAPIKey      string
	MapsBaseURL     string
	SiteHost        string
	ProviderTimeout time.Duration
}

func LoadServer() Server {
	return Server{
		Port:            Get("PORT", "8080"),
		DBPath:          Get("DB_PATH", "data/settings.db"),
		DatabaseURL:     Get("DATABASE_URL", ""),
		MapsAPIKey:      Get("MAPS_API_KEY", ""),
		MapsBaseURL:     Get("MAPS_BASE_URL", "https://maps.googleapis.com"),
		SiteHost:        Get("SITE_HOST", "idealista.it"),
		ProviderTimeout: GetDuration("PROVIDER_TIMEOUT", 10*time.Second),
	}
}

// Annotator holds the defaults for the annotator CLI; flags override them.
type Annotator struct {
	RelayURL     string
	RelayTimeout time.Duration
	UserAgent    string
}

func LoadAnnotator() Annotator {
	return Annotator{
		RelayURL:     Get("RELAY_URL", "http://localhost:8080"),
		RelayTimeout: GetDuration("RELAY_TIMEOUT", 15*time.Second),
		UserAgent: Get("USER_AGENT", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) "+
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	}
}
