package cookies

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/oshokin/media-grabber/internal/logger"
)

// waitForSession polls the browser until one of the configured session cookies is set.
func (s *ServiceImpl) waitForSession(ctx context.Context) error {
	timer := time.NewTimer(s.maxWait)
	defer timer.Stop()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if !s.isBrowserAlive(ctx) {
			return ErrBrowserClosed
		}

		if name, found := s.findSessionCookie(ctx); found {
			logger.Infof(ctx, "Session cookie %q detected, login successful", name)

			// Sites often set the rest of the session cookies right after the first one.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sessionEstablishDelay):
			}

			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("%w: waited for %v", ErrLoginTimeout, s.maxWait)
		case <-ticker.C:
		}
	}
}

// findSessionCookie reports the first configured session cookie present in the browser.
func (s *ServiceImpl) findSessionCookie(ctx context.Context) (name string, found bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debugf(ctx, "findSessionCookie panic recovered: %v", r)

			name, found = "", false
		}
	}()

	browserCookies, err := s.browser.GetCookies()
	if err != nil {
		logger.Debugf(ctx, "Failed to read cookies: %v", err)

		return "", false
	}

	return matchSessionCookie(browserCookies, s.cfg.CookiesSessionNames)
}

// matchSessionCookie returns the name of the first non-empty cookie listed in sessionNames.
func matchSessionCookie(browserCookies []*proto.NetworkCookie, sessionNames []string) (string, bool) {
	for _, c := range browserCookies {
		if c == nil || c.Value == "" {
			continue
		}

		if slices.Contains(sessionNames, c.Name) {
			return c.Name, true
		}
	}

	return "", false
}
