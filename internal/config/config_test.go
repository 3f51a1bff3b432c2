package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	t.Setenv("LD_TEST_KEY", "  value ")
	assert.Equal(t, "value", Get("LD_TEST_KEY", "fallback"))

	t.Setenv("LD_TEST_KEY", "")
	assert.Equal(t, "fallback", Get("LD_TEST_KEY", "fallback"))
}

func TestGetDuration(t *testing.T) {
	t.Setenv("LD_TEST_DUR", "3s")
	assert.Equal(t, 3*time.Second, GetDuration("LD_TEST_DUR", time.Second))

	t.Setenv("LD_TEST_DUR", "soon")
	assert.Equal(t, time.Second, GetDuration("LD_TEST_DUR", time.Second))

	t.Setenv("LD_TEST_DUR", "-1s")
	assert.Equal(t, time.Second, GetDuration("LD_TEST_DUR", time.Second))
}

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SITE_HOST", "")
	t.Setenv("MAPS_BASE_URL", "")

	cfg := LoadServer()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "idealista.it", cfg.SiteHost)
	assert.Equal(t, "https://maps.googleapis.com", cfg.MapsBaseURL)
}
