package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/media-grabber/internal/logger"
)

// Static error definitions for better error handling.
var (
	// ErrMissingURL indicates a request body without a URL.
	ErrMissingURL = errors.New("url is required")
	// ErrNotFound indicates an unknown route or missing static asset.
	ErrNotFound = errors.New("not found")
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	// Detail is a human-readable error message.
	Detail string `json:"detail"`
}

// messageSanitizer removes staging paths from messages shown to clients.
type messageSanitizer struct {
	// pattern matches the staging root and an optional request directory below it.
	// A character ending the path is captured so that it survives the replacement.
	pattern *regexp.Regexp
}

func newMessageSanitizer(stagingDir string) *messageSanitizer {
	absStagingDir, err := filepath.Abs(stagingDir)
	if err != nil {
		absStagingDir = filepath.Clean(stagingDir)
	}

	separator := regexp.QuoteMeta(string(filepath.Separator))

	return &messageSanitizer{
		pattern: regexp.MustCompile(
			regexp.QuoteMeta(absStagingDir) +
				"(?:" + separator + "[0-9a-fA-F-]{36})?" +
				"(?:" + separator + "|$|([^0-9A-Za-z._-]))",
		),
	}
}

// sanitize replaces staging paths in message, leaving the file name.
func (m *messageSanitizer) sanitize(message string) string {
	if m == nil {
		return message
	}

	return m.pattern.ReplaceAllString(message, "${1}")
}

// abortWithError logs err and responds with status and {"detail": ...}.
func (s *Server) abortWithError(c *gin.Context, status int, err error) {
	logger.Warnf(c.Request.Context(), "Request failed: %v", err)

	c.AbortWithStatusJSON(status, &errorResponse{Detail: s.sanitizer.sanitize(err.Error())})
}

// abortBadRequest responds with 400, the status used for every service failure.
func (s *Server) abortBadRequest(c *gin.Context, err error) {
	s.abortWithError(c, http.StatusBadRequest, err)
}
