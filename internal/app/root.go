package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/oshokin/media-grabber/internal/client/extractor"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/server"
	"github.com/oshokin/media-grabber/internal/service/media"
	http_transport "github.com/oshokin/media-grabber/internal/transport/http"
	"github.com/oshokin/media-grabber/internal/version"
)

// application holds the wired components of the gateway.
type application struct {
	service media.Service
	server  *server.Server
	sweeper *media.Sweeper
}

// ExecuteServeCommand is the entry point of the gateway.
// It installs yt-dlp when requested, builds the media pipeline and serves
// HTTP until ctx is cancelled.
func ExecuteServeCommand(ctx context.Context, cfg *config.Config) {
	logger.Infof(ctx, "Starting media-grabber %s", version.Short())

	if cfg.InstallYTDLP {
		if err := extractor.Install(ctx); err != nil {
			logger.Fatalf(ctx, "Failed to install yt-dlp: %v", err)
		}
	}

	a, err := newApplication(cfg, extractor.NewClient(cfg))
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize application: %v", err)
	}

	err = a.run(ctx)

	media.PrintSummary(ctx, a.service.Statistics())

	if err != nil {
		logger.Fatalf(ctx, "Server stopped with error: %v", err)
	}

	logger.Info(ctx, "Server stopped")
}

func newApplication(cfg *config.Config, client extractor.Client) (*application, error) {
	stager, err := media.NewStager(cfg.StagingDir, client)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare staging directory: %w", err)
	}

	tagProcessor := media.NewTagProcessor(http_transport.NewClient(cfg.UserAgent))
	service := media.NewService(cfg, client, stager, tagProcessor)

	return &application{
		service: service,
		server:  server.NewServer(cfg, service),
		sweeper: media.NewSweeper(
			cfg.StagingDir,
			cfg.ParsedStagingMaxAge,
			cfg.ParsedStagingSweepInterval,
			stager,
		),
	}, nil
}

// run starts the sweeper alongside the server and waits for both to stop.
func (a *application) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Go(func() {
		a.sweeper.Run(ctx)
	})

	err := a.server.Run(ctx)

	cancel()
	wg.Wait()

	return err
}
