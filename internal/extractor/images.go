package extractor

import (
	"regexp"
	"strings"
)

// Placeholder markers that identify loading indicators and missing-image
// stand-ins. URLs containing any of these are never accepted.
var imageDenyMarkers = []string{"noimage", "loading.gif", "blank.gif"}

var imageExtensionPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp)(\?|$)`)

// minImageURLLength filters out obviously truncated attribute values.
const minImageURLLength = 15

// ImageRules validates candidate image URLs against the CDN allow-list and
// normalizes them to absolute high-resolution form.
type ImageRules struct {
	allowHosts []string
	siteBase   string
}

func NewImageRules(allowHosts []string, siteBase string) *ImageRules {
	return &ImageRules{
		allowHosts: allowHosts,
		siteBase:   strings.TrimSuffix(siteBase, "/"),
	}
}

func (r *ImageRules) Valid(url string) bool {
	if len(url) < minImageURLLength {
		return false
	}
	for _, marker := range imageDenyMarkers {
		if strings.Contains(url, marker) {
			return false
		}
	}
	allowed := false
	for _, host := range r.allowHosts {
		if strings.Contains(url, host) {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	return imageExtensionPattern.MatchString(url)
}

// Normalize makes protocol-relative and root-relative URLs absolute and
// rewrites low-resolution path and suffix markers to their high-resolution
// equivalents.
func (r *ImageRules) Normalize(url string) string {
	if strings.HasPrefix(url, "//") {
		url = "https:" + url
	} else if strings.HasPrefix(url, "/") {
		url = r.siteBase + url
	}

	url = strings.Replace(url, "/s/", "/l/", 1)
	url = strings.Replace(url, "/m/", "/l/", 1)
	url = strings.Replace(url, "_s.jpg", "_l.jpg", 1)
	url = strings.Replace(url, "_m.jpg", "_l.jpg", 1)
	return url
}
