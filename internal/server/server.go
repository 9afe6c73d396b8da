package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/service/media"
)

const (
	// readHeaderTimeout bounds how long a client may take to send request headers.
	readHeaderTimeout = 10 * time.Second

	// idleTimeout bounds keep-alive connections.
	idleTimeout = 120 * time.Second

	// corsMaxAge is how long browsers may cache preflight responses.
	corsMaxAge = 12 * time.Hour

	// filenameHeader carries the URL-escaped download filename for browser clients.
	filenameHeader = "X-Filename"

	// allOrigins allows cross-origin requests from anywhere.
	allOrigins = "*"
)

// setGinModeOnce switches gin to release mode; gin keeps the mode in package state.
//
//nolint:gochecknoglobals // Guards a one-time global switch.
var setGinModeOnce sync.Once

// Server is the HTTP boundary of the media service.
type Server struct {
	// cfg contains the application configuration.
	cfg *config.Config
	// service handles info and download requests.
	service media.Service
	// engine routes requests.
	engine *gin.Engine
	// httpServer serves engine on cfg.ListenAddress.
	httpServer *http.Server
	// sanitizer strips staging paths from error messages. Nil when sanitize_errors is disabled.
	sanitizer *messageSanitizer
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(cfg *config.Config, service media.Service) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
	}

	if cfg.SanitizeErrors {
		s.sanitizer = newMessageSanitizer(cfg.StagingDir)
	}

	setGinModeOnce.Do(func() { gin.SetMode(gin.ReleaseMode) })

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(loggingMiddleware())
	s.engine.Use(corsMiddleware(cfg.CORSAllowedOrigins))

	s.engine.GET("/health", s.handleHealth)
	s.engine.POST("/info", s.handleInfo)
	s.engine.POST("/download", s.handleDownload)
	s.engine.NoRoute(s.handleNoRoute)

	//nolint:exhaustruct // Write timeout stays zero: downloads can take minutes.
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)

	go func() {
		defer close(serveErr)

		logger.Infof(ctx, "Listening on %s", s.httpServer.Addr)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	logger.Info(ctx, "Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ParsedShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	return nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	//nolint:exhaustruct // Remaining options keep their library defaults.
	corsConfig := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Disposition", filenameHeader},
		MaxAge:        corsMaxAge,
	}

	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, allOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}

	return cors.New(corsConfig)
}
