package app

import (
	"context"
	"fmt"

	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/service/cookies"
)

// ExecuteCookiesLoginCommand opens a browser for the user to sign in,
// exports the session cookies and records the cookie file in the configuration file.
func ExecuteCookiesLoginCommand(ctx context.Context, cfg *config.Config) {
	cookiesService, err := cookies.NewService(cfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize cookies service: %v", err)
	}

	if err = runCookiesLogin(ctx, cfg, cookiesService); err != nil {
		logger.Fatalf(ctx, "Cookie login failed: %v", err)
	}

	logger.Info(ctx, "Configuration updated successfully!")
	logger.Info(ctx, "Restart the gateway to pick up the new cookies file.")
}

func runCookiesLogin(ctx context.Context, cfg *config.Config, cookiesService cookies.Service) error {
	exported, err := cookiesService.LoginAndExportCookies(ctx)
	if err != nil {
		return err
	}

	if exported == 0 {
		logger.Warn(ctx, "The browser returned no cookies, the file is empty")
	}

	if err = config.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	return nil
}
