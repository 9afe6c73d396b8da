package cookies

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
)

const (
	// browserSlowMotionDelay is the delay between browser actions for visibility during debugging.
	browserSlowMotionDelay = 200 * time.Millisecond

	// loginPollInterval is the interval for polling the session cookies.
	loginPollInterval = 1 * time.Second

	// maxLoginWaitTime is the maximum time to wait for the user to complete login.
	maxLoginWaitTime = 10 * time.Minute

	// sessionEstablishDelay lets the site finish setting cookies after the session cookie appears.
	sessionEstablishDelay = 2 * time.Second

	// browserCleanupDelay is the delay to wait for Chrome to release file locks before cleanup.
	browserCleanupDelay = 500 * time.Millisecond
)

var (
	// ErrLoginTimeout is returned when login takes too long.
	ErrLoginTimeout = errors.New("login timeout exceeded")

	// ErrBrowserClosed is returned when the browser is closed by the user.
	ErrBrowserClosed = errors.New("browser was closed by user")

	// ErrEmptyLoginURL is returned when no site to log in to is configured.
	ErrEmptyLoginURL = errors.New("login URL cannot be empty")

	// ErrEmptyCookiesFile is returned when no cookie file path is configured.
	ErrEmptyCookiesFile = errors.New("cookies file path cannot be empty")
)

// Service exports browser session cookies for the extractor.
type Service interface {
	// LoginAndExportCookies opens a browser, waits for the user to log in,
	// then writes the session cookies to the configured cookie file.
	// It returns the number of exported cookies.
	LoginAndExportCookies(ctx context.Context) (int, error)
}

// ServiceImpl implements Service on top of a rod-controlled Chrome.
type ServiceImpl struct {
	cfg     *config.Config
	browser *rod.Browser
	page    *rod.Page
	// tempDir stores the temporary profile directory for cleanup.
	tempDir string
	// pollInterval and maxWait are fields so tests can shorten them.
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewService creates a new cookie login service.
func NewService(cfg *config.Config) (*ServiceImpl, error) {
	if cfg.CookiesLoginURL == "" {
		return nil, ErrEmptyLoginURL
	}

	if cfg.CookiesFile == "" {
		return nil, ErrEmptyCookiesFile
	}

	return &ServiceImpl{
		cfg:          cfg,
		pollInterval: loginPollInterval,
		maxWait:      maxLoginWaitTime,
	}, nil
}

// LoginAndExportCookies opens a browser, waits for the user to log in,
// then writes the session cookies to the configured cookie file.
func (s *ServiceImpl) LoginAndExportCookies(ctx context.Context) (int, error) {
	logger.Infof(ctx, "Starting browser login at %s", s.cfg.CookiesLoginURL)

	if err := s.initBrowser(ctx); err != nil {
		return 0, fmt.Errorf("failed to initialize browser: %w", err)
	}

	defer s.cleanup(ctx)

	if err := s.page.Navigate(s.cfg.CookiesLoginURL); err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", s.cfg.CookiesLoginURL, err)
	}

	logger.Info(ctx, "Please sign in using the opened browser window.")
	logger.Info(ctx, "Do not close the browser, it will close by itself once the session is detected.")

	if err := s.waitForSession(ctx); err != nil {
		return 0, fmt.Errorf("login failed: %w", err)
	}

	sessionCookies, err := s.browser.GetCookies()
	if err != nil {
		return 0, fmt.Errorf("failed to read browser cookies: %w", err)
	}

	if err = SaveNetscapeFile(s.cfg.CookiesFile, sessionCookies); err != nil {
		return 0, err
	}

	logger.Infof(ctx, "Exported %d cookies to %s", len(sessionCookies), s.cfg.CookiesFile)

	return len(sessionCookies), nil
}
