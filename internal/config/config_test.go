package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://search.kakaku.com", cfg.Scraper.SearchBaseURL)
	assert.Equal(t, FetchStrategyBrowser, cfg.Scraper.FetchStrategy)
	assert.Equal(t, 8, cfg.Scraper.FallbackCount)
	assert.Equal(t, []string{"kakaku.k-img.com"}, cfg.Scraper.ImageCDNHosts)

	assert.Equal(t, 20, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 1, cfg.RateLimit.MaxConcurrent)
	assert.Equal(t, 3*time.Second, cfg.RateLimit.MinDelay)

	assert.True(t, cfg.Robots.Enabled)
	assert.False(t, cfg.Redis.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SCRAPER_FETCH_STRATEGY", "http")
	t.Setenv("RATELIMIT_MIN_DELAY", "5s")
	t.Setenv("SCRAPER_IMAGE_CDN_HOSTS", "kakaku.k-img.com, img.example.com")
	t.Setenv("ROBOTS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, FetchStrategyHTTP, cfg.Scraper.FetchStrategy)
	assert.Equal(t, 5*time.Second, cfg.RateLimit.MinDelay)
	assert.Equal(t, []string{"kakaku.k-img.com", "img.example.com"}, cfg.Scraper.ImageCDNHosts)
	assert.False(t, cfg.Robots.Enabled)
}

func TestValidateRejections(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad fetch strategy", func(c *Config) { c.Scraper.FetchStrategy = "carrier-pigeon" }},
		{"zero requests", func(c *Config) { c.RateLimit.Requests = 0 }},
		{"zero concurrency", func(c *Config) { c.RateLimit.MaxConcurrent = 0 }},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"zero fallback count", func(c *Config) { c.Scraper.FallbackCount = 0 }},
		{"no cdn hosts", func(c *Config) { c.Scraper.ImageCDNHosts = nil }},
	}

	for _, tc := range mutations {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
