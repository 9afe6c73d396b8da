package server

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oshokin/media-grabber/internal/logger"
)

// requestIDHeader carries the request ID back to the client.
const requestIDHeader = "X-Request-ID"

// loggingMiddleware tags the request context with a request ID and logs every finished request.
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()

		ctx := logger.WithKV(c.Request.Context(), "request_id", requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, requestID)

		c.Next()

		written := uint64(max(c.Writer.Size(), 0)) //nolint:gosec // Clamped to non-negative.

		logger.InfoKV(ctx, "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"size", humanize.Bytes(written),
			"duration", time.Since(start),
		)
	}
}
