package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pricescout/kakaku-scraper/internal/api"
	"github.com/pricescout/kakaku-scraper/internal/browser"
	"github.com/pricescout/kakaku-scraper/internal/config"
	"github.com/pricescout/kakaku-scraper/internal/fetch"
	"github.com/pricescout/kakaku-scraper/internal/popularity"
	"github.com/pricescout/kakaku-scraper/internal/ratelimit"
	"github.com/pricescout/kakaku-scraper/internal/robots"
	"github.com/pricescout/kakaku-scraper/internal/scraper"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	fetcher := newFetcher(cfg, logger)
	defer fetcher.Close()

	limiter := ratelimit.New(ratelimit.Config{
		Requests:      cfg.RateLimit.Requests,
		Window:        cfg.RateLimit.Window,
		MaxConcurrent: cfg.RateLimit.MaxConcurrent,
		MinDelay:      cfg.RateLimit.MinDelay,
	}, nil, logger)

	var robotsChecker *robots.Checker
	if cfg.Robots.Enabled {
		robotsChecker, err = robots.NewChecker(
			&http.Client{Timeout: cfg.Robots.FetchTimeout},
			cfg.Scraper.UserAgent,
			cfg.Robots.CacheSize,
			logger,
		)
		if err != nil {
			logger.Error("robots checker init failed", "error", err)
			os.Exit(1)
		}
	}

	keywords, err := newKeywordTracker(cfg, logger)
	if err != nil {
		logger.Error("keyword tracker init failed", "error", err)
		os.Exit(1)
	}

	metrics := scraper.NewMetrics()
	svc := scraper.NewService(cfg.Scraper, fetcher, limiter, robotsChecker, keywords, metrics, logger)
	handlers := api.NewHandlers(svc, keywords, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Search-Time-Ms", "X-Image-Success-Rate"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handlers.Register(r, promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting",
		"addr", server.Addr,
		"fetchStrategy", cfg.Scraper.FetchStrategy,
		"robotsEnabled", cfg.Robots.Enabled,
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// newFetcher selects the page-fetch strategy. The browser session renders
// JavaScript and lazy-loaded images; the HTTP fetcher is lighter but only
// sees server-rendered markup.
func newFetcher(cfg *config.Config, logger *slog.Logger) fetch.PageFetcher {
	if cfg.Scraper.FetchStrategy == config.FetchStrategyHTTP {
		return fetch.NewHTTPFetcher(cfg.Scraper.UserAgent, cfg.Scraper.FetchTimeout, logger)
	}

	return browser.NewSession(&browser.Options{
		Headless:       cfg.Browser.Headless,
		NavTimeout:     cfg.Browser.NavTimeout,
		LazyLoadBudget: cfg.Browser.LazyLoadBudget,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		UserAgent:      cfg.Scraper.UserAgent,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		SiteHost:       "kakaku.com",
		ImageCDNHosts:  cfg.Scraper.ImageCDNHosts,
	}, logger)
}

func newKeywordTracker(cfg *config.Config, logger *slog.Logger) (popularity.Tracker, error) {
	if !cfg.Redis.Enabled {
		return popularity.NewMemory(cfg.Popularity.Size)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, falling back to in-memory keyword tracking", "error", err)
		return popularity.NewMemory(cfg.Popularity.Size)
	}

	logger.Info("keyword tracking backed by redis", "addr", cfg.Redis.Addr)
	return popularity.NewRedis(client, cfg.Popularity.RedisKey, logger), nil
}
