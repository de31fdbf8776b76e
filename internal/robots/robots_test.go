package robots

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRobots = `# sample
User-agent: *
Disallow: /admin/
Disallow: /api/
Crawl-delay: 5

Sitemap: https://kakaku.com/sitemap.xml
`

func newTestChecker(t *testing.T) (*Checker, *httpmock.MockTransport) {
	t.Helper()

	transport := httpmock.NewMockTransport()
	client := &http.Client{Transport: transport, Timeout: 5 * time.Second}

	checker, err := NewChecker(client, "PriceScoutBot/1.0", 8, nil)
	require.NoError(t, err)
	return checker, transport
}

func TestCheckParsesPolicy(t *testing.T) {
	checker, transport := newTestChecker(t)
	transport.RegisterResponder(http.MethodGet, "https://kakaku.com/robots.txt",
		httpmock.NewStringResponder(http.StatusOK, sampleRobots))

	policy, err := checker.Check(context.Background(), "https://kakaku.com/item/K0001234567/")
	require.NoError(t, err)

	assert.Equal(t, []string{"/admin/", "/api/"}, policy.DisallowedPaths)
	assert.Equal(t, 5*time.Second, policy.CrawlDelay)
	assert.Equal(t, []string{"https://kakaku.com/sitemap.xml"}, policy.SitemapURLs)
}

func TestPolicyAllowed(t *testing.T) {
	policy, err := Parse([]byte(sampleRobots), "PriceScoutBot/1.0")
	require.NoError(t, err)

	tests := []struct {
		path    string
		allowed bool
	}{
		{"/item/K0001234567/", true},
		{"/admin/", false},
		{"/admin/users", false},
		{"/api/v1/items", false},
		{"/", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.allowed, policy.Allowed(tt.path))
		})
	}
}

func TestCheckCachesPerOrigin(t *testing.T) {
	checker, transport := newTestChecker(t)
	transport.RegisterResponder(http.MethodGet, "https://kakaku.com/robots.txt",
		httpmock.NewStringResponder(http.StatusOK, sampleRobots))

	ctx := context.Background()
	_, err := checker.Check(ctx, "https://kakaku.com/item/a/")
	require.NoError(t, err)
	_, err = checker.Check(ctx, "https://kakaku.com/item/b/")
	require.NoError(t, err)

	info := transport.GetCallCountInfo()
	assert.Equal(t, 1, info["GET https://kakaku.com/robots.txt"])
}

func TestCheckIsPermissiveOnFetchFailure(t *testing.T) {
	checker, transport := newTestChecker(t)
	transport.RegisterResponder(http.MethodGet, "https://kakaku.com/robots.txt",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	policy, err := checker.Check(context.Background(), "https://kakaku.com/item/K0001234567/")
	require.NoError(t, err)

	assert.True(t, policy.Allowed("/anything/"))
	assert.Empty(t, policy.DisallowedPaths)
	assert.Zero(t, policy.CrawlDelay)
}

func TestCheckRejectsUnparsableURL(t *testing.T) {
	checker, _ := newTestChecker(t)

	_, err := checker.Check(context.Background(), "://bad")
	assert.Error(t, err)
}
