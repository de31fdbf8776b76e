package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Fetch strategies select how rendered HTML is obtained.
const (
	FetchStrategyBrowser = "browser"
	FetchStrategyHTTP    = "http"
)

type Config struct {
	Server     ServerConfig
	Scraper    ScraperConfig
	RateLimit  RateLimitConfig
	Robots     RobotsConfig
	Browser    BrowserConfig
	Redis      RedisConfig
	Popularity PopularityConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	SearchBaseURL    string
	ItemBaseURL      string
	ImageCDNHosts    []string
	FetchStrategy    string
	FetchTimeout     time.Duration
	UserAgent        string
	FallbackCount    int
	ListingSelectors []string
}

type RateLimitConfig struct {
	Requests      int
	Window        time.Duration
	MaxConcurrent int
	MinDelay      time.Duration
}

type RobotsConfig struct {
	Enabled      bool
	FetchTimeout time.Duration
	CacheSize    int
}

type BrowserConfig struct {
	Headless       bool
	NavTimeout     time.Duration
	LazyLoadBudget time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type PopularityConfig struct {
	Size     int
	RedisKey string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			SearchBaseURL: getEnvOrDefault("SCRAPER_SEARCH_BASE_URL", "https://search.kakaku.com"),
			ItemBaseURL:   getEnvOrDefault("SCRAPER_ITEM_BASE_URL", "https://kakaku.com"),
			ImageCDNHosts: getStringSliceOrDefault("SCRAPER_IMAGE_CDN_HOSTS", []string{"kakaku.k-img.com"}),
			FetchStrategy: getEnvOrDefault("SCRAPER_FETCH_STRATEGY", FetchStrategyBrowser),
			FetchTimeout:  getDurationOrDefault("SCRAPER_FETCH_TIMEOUT", 30*time.Second),
			UserAgent: getEnvOrDefault("SCRAPER_USER_AGENT",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
			FallbackCount:    getIntOrDefault("SCRAPER_FALLBACK_COUNT", 8),
			ListingSelectors: getStringSliceOrDefault("SCRAPER_LISTING_SELECTORS", nil),
		},
		RateLimit: RateLimitConfig{
			Requests:      getIntOrDefault("RATELIMIT_REQUESTS", 20),
			Window:        getDurationOrDefault("RATELIMIT_WINDOW", time.Minute),
			MaxConcurrent: getIntOrDefault("RATELIMIT_MAX_CONCURRENT", 1),
			MinDelay:      getDurationOrDefault("RATELIMIT_MIN_DELAY", 3*time.Second),
		},
		Robots: RobotsConfig{
			Enabled:      getBoolOrDefault("ROBOTS_ENABLED", true),
			FetchTimeout: getDurationOrDefault("ROBOTS_FETCH_TIMEOUT", 10*time.Second),
			CacheSize:    getIntOrDefault("ROBOTS_CACHE_SIZE", 32),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			NavTimeout:     getDurationOrDefault("BROWSER_NAV_TIMEOUT", 30*time.Second),
			LazyLoadBudget: getDurationOrDefault("BROWSER_LAZYLOAD_BUDGET", 4*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1200),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 800),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ja-JP,ja;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Tokyo"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ja-JP"),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Popularity: PopularityConfig{
			Size:     getIntOrDefault("POPULARITY_SIZE", 256),
			RedisKey: getEnvOrDefault("POPULARITY_REDIS_KEY", "pricescout:keywords"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Scraper.FetchStrategy {
	case FetchStrategyBrowser, FetchStrategyHTTP:
	default:
		return fmt.Errorf("SCRAPER_FETCH_STRATEGY must be %q or %q", FetchStrategyBrowser, FetchStrategyHTTP)
	}

	if c.RateLimit.Requests < 1 {
		return fmt.Errorf("RATELIMIT_REQUESTS must be at least 1")
	}
	if c.RateLimit.MaxConcurrent < 1 {
		return fmt.Errorf("RATELIMIT_MAX_CONCURRENT must be at least 1")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATELIMIT_WINDOW must be positive")
	}

	if c.Scraper.FallbackCount < 1 {
		return fmt.Errorf("SCRAPER_FALLBACK_COUNT must be at least 1")
	}

	if len(c.Scraper.ImageCDNHosts) == 0 {
		return fmt.Errorf("SCRAPER_IMAGE_CDN_HOSTS must not be empty")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
