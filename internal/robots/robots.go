// Package robots fetches and caches robots.txt policies per origin. The
// policy is advisory: a disallowed path is reported to the caller, who
// decides whether to proceed, and a crawl-delay raises the rate limiter's
// delay floor.
package robots

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/temoto/robotstxt"
)

// Policy is the parsed courtesy information for one origin.
type Policy struct {
	DisallowedPaths []string
	CrawlDelay      time.Duration
	SitemapURLs     []string

	group *robotstxt.Group
}

// Allowed reports whether a path may be fetched. A path is rejected on an
// exact or prefix match of any disallowed path.
func (p *Policy) Allowed(path string) bool {
	for _, disallowed := range p.DisallowedPaths {
		if path == disallowed || strings.HasPrefix(path, disallowed) {
			return false
		}
	}
	if p.group != nil {
		return p.group.Test(path)
	}
	return true
}

type Checker struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
	cache     *lru.Cache[string, *Policy]
}

// permissive is returned when robots.txt is missing or unreachable.
var permissive = &Policy{}

func NewChecker(client *http.Client, userAgent string, cacheSize int, logger *slog.Logger) (*Checker, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cacheSize < 1 {
		cacheSize = 16
	}

	cache, err := lru.New[string, *Policy](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create robots cache: %w", err)
	}

	return &Checker{
		client:    client,
		userAgent: userAgent,
		logger:    logger.With("component", "robots"),
		cache:     cache,
	}, nil
}

// Check returns the cached policy for rawURL's origin, fetching robots.txt
// once per origin. Fetch failures are permissive; the courtesy layer never
// blocks the pipeline on its own.
func (c *Checker) Check(ctx context.Context, rawURL string) (*Policy, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	origin := u.Scheme + "://" + u.Host

	if policy, ok := c.cache.Get(origin); ok {
		return policy, nil
	}

	policy := c.fetch(ctx, origin)
	c.cache.Add(origin, policy)
	return policy, nil
}

func (c *Checker) fetch(ctx context.Context, origin string) *Policy {
	robotsURL := origin + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		c.logger.Warn("robots request build failed", "url", robotsURL, "error", err)
		return permissive
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("robots fetch failed, allowing all", "url", robotsURL, "error", err)
		return permissive
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("robots fetch non-200, allowing all", "url", robotsURL, "status", resp.StatusCode)
		return permissive
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		c.logger.Warn("robots read failed, allowing all", "url", robotsURL, "error", err)
		return permissive
	}

	policy, err := Parse(body, c.userAgent)
	if err != nil {
		c.logger.Warn("robots parse failed, allowing all", "url", robotsURL, "error", err)
		return permissive
	}

	c.logger.Info("robots policy loaded",
		"origin", origin,
		"disallowed", len(policy.DisallowedPaths),
		"crawlDelay", policy.CrawlDelay,
		"sitemaps", len(policy.SitemapURLs),
	)
	return policy
}

// Parse builds a Policy from raw robots.txt content for the given agent.
func Parse(body []byte, userAgent string) (*Policy, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, err
	}

	group := data.FindGroup(userAgent)

	policy := &Policy{
		SitemapURLs: append([]string(nil), data.Sitemaps...),
		group:       group,
	}
	if group != nil {
		policy.CrawlDelay = group.CrawlDelay
	}
	policy.DisallowedPaths = disallowedPaths(body, userAgent)

	return policy, nil
}

// disallowedPaths collects the Disallow lines applying to the agent (or to
// "*"). The robotstxt group answers Test() but does not expose its rules,
// and the paths themselves are wanted for diagnostics.
func disallowedPaths(body []byte, userAgent string) []string {
	agent := strings.ToLower(userAgent)
	var paths []string
	relevant := false

	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch strings.ToLower(key) {
		case "user-agent":
			section := strings.ToLower(value)
			relevant = section == "*" || strings.Contains(agent, section)
		case "disallow":
			if relevant && value != "" {
				paths = append(paths, value)
			}
		}
	}
	return paths
}
