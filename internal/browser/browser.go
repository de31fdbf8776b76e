// Package browser implements the headless-browser page-fetch strategy on
// playwright. One session is shared per process; pages are created and
// destroyed per request and are always closed on every exit path.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/pricescout/kakaku-scraper/internal/fetch"
)

type Options struct {
	Headless       bool
	NavTimeout     time.Duration
	LazyLoadBudget time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string

	// SiteHost gates script resources; ImageCDNHosts gate image resources.
	// Everything else (fonts, analytics, ads, stylesheets) is aborted.
	SiteHost      string
	ImageCDNHosts []string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		NavTimeout:     30 * time.Second,
		LazyLoadBudget: 4 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1200,
		ViewportHeight: 800,
		AcceptLanguage: "ja-JP,ja;q=0.9,en;q=0.8",
		TimezoneID:     "Asia/Tokyo",
		Locale:         "ja-JP",
		SiteHost:       "kakaku.com",
		ImageCDNHosts:  []string{"kakaku.k-img.com"},
	}
}

// Session holds the process-wide browser instance. Initialization is lazy
// and idempotent; the first FetchRendered pays the startup cost.
type Session struct {
	opts   *Options
	logger *slog.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
}

var _ fetch.PageFetcher = (*Session)(nil)

func NewSession(opts *Options, logger *slog.Logger) *Session {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		opts:   opts,
		logger: logger.With("component", "browser"),
	}
}

func (s *Session) initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.context != nil {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", s.opts.ViewportWidth, s.opts.ViewportHeight),
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:  playwright.String(s.opts.UserAgent),
		Locale:     playwright.String(s.opts.Locale),
		TimezoneId: playwright.String(s.opts.TimezoneID),
		Viewport: &playwright.Size{
			Width:  s.opts.ViewportWidth,
			Height: s.opts.ViewportHeight,
		},
		ExtraHttpHeaders: map[string]string{
			"Accept-Language": s.opts.AcceptLanguage,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("create browser context: %w", err)
	}

	s.pw = pw
	s.browser = browser
	s.context = context
	s.logger.Info("browser session started", "headless", s.opts.Headless)
	return nil
}

// FetchRendered navigates to url, forces lazy-loaded images, and returns
// the rendered HTML. The page is closed regardless of outcome.
func (s *Session) FetchRendered(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.initialize(); err != nil {
		return "", err
	}

	page, err := s.context.NewPage()
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	page.SetDefaultTimeout(float64(s.opts.NavTimeout.Milliseconds()))

	if err := page.Route("**/*", s.filterRequest); err != nil {
		return "", fmt.Errorf("install request filter: %w", err)
	}

	start := time.Now()
	resp, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.opts.NavTimeout.Milliseconds())),
	})
	if err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}
	if resp != nil && !resp.Ok() {
		return "", &fetch.StatusError{StatusCode: resp.Status(), URL: url}
	}
	s.logger.Debug("page loaded", "url", url, "elapsed", time.Since(start))

	if err := ctx.Err(); err != nil {
		return "", err
	}

	converted := s.forceLazyLoad(page)
	s.logger.Debug("lazy load forced", "url", url, "converted", converted)

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return html, nil
}

// filterRequest allows the document, same-site scripts, and CDN images,
// aborting everything else to bound latency and bandwidth.
func (s *Session) filterRequest(route playwright.Route) {
	req := route.Request()
	url := req.URL()

	switch req.ResourceType() {
	case "document":
		route.Continue()
	case "script":
		if strings.Contains(url, s.opts.SiteHost) {
			route.Continue()
			return
		}
		route.Abort()
	case "image":
		for _, host := range s.opts.ImageCDNHosts {
			if strings.Contains(url, host) {
				route.Continue()
				return
			}
		}
		route.Abort()
	default:
		route.Abort()
	}
}

// forceLazyLoad runs the two-phase routine: rewrite deferred image sources
// while auto-scrolling, then poll load completion with an early exit at
// 80%. The whole routine is capped by the configured budget.
func (s *Session) forceLazyLoad(page playwright.Page) int {
	deadline := time.Now().Add(s.opts.LazyLoadBudget)

	converted := 0
	if result, err := page.Evaluate(convertDeferredImagesJS); err == nil {
		if n, ok := result.(int); ok {
			converted = n
		}
	} else {
		s.logger.Warn("deferred image rewrite failed", "error", err)
	}

	if _, err := page.Evaluate(autoScrollJS); err != nil {
		s.logger.Warn("auto scroll failed", "error", err)
	}

	for time.Now().Before(deadline) {
		result, err := page.Evaluate(imageLoadRatioJS)
		if err != nil {
			break
		}
		ratio := 0.0
		switch v := result.(type) {
		case float64:
			ratio = v
		case int:
			ratio = float64(v)
		}
		if ratio >= 0.8 {
			break
		}
		time.Sleep(250 * time.Millisecond)
	}

	return converted
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
		s.context = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		s.browser = nil
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		s.pw = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
