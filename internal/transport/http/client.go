package http

import (
	"net/http"
	"strings"

	"github.com/oshokin/media-grabber/internal/utils"
)

// NewClient returns an HTTP client for auxiliary fetches (thumbnails, cover art).
// Requests carry the given User-Agent, or DefaultUserAgent when it is empty,
// and are dumped to the debug log.
func NewClient(userAgent string) *http.Client {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &http.Client{
		Transport: NewUserAgentInjector(
			NewLogTransport(http.DefaultTransport, 0),
			utils.NewSimpleUserAgentProvider(userAgent)),
		Timeout: DefaultTimeout,
	}
}
