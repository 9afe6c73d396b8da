package extractor

//go:generate $MOCKGEN -source=client.go -destination=mocks/client_mock.go

import (
	"context"
	"fmt"
	"strings"

	"github.com/lrstanley/go-ytdlp"

	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
	http_transport "github.com/oshokin/media-grabber/internal/transport/http"
)

// Client defines the interface for extracting media through yt-dlp.
type Client interface {
	// FetchMetadata retrieves metadata for a single media URL without downloading it.
	FetchMetadata(ctx context.Context, url string) (*Metadata, error)
	// Download downloads the media at req.URL using req.Format and req.OutputTemplate.
	Download(ctx context.Context, req *DownloadRequest) (*DownloadResult, error)
}

// ClientImpl implements the Client interface on top of the yt-dlp executable.
type ClientImpl struct {
	// cookiesFile is a Netscape cookie file passed to yt-dlp when it exists.
	cookiesFile string
	// userAgent is sent with every yt-dlp request.
	userAgent string
	// rateLimit caps the download speed in bytes per second. Zero disables it.
	rateLimit int64
}

// NewClient creates a new yt-dlp client from the configuration.
func NewClient(cfg *config.Config) Client {
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = http_transport.DefaultUserAgent
	}

	return &ClientImpl{
		cookiesFile: strings.TrimSpace(cfg.CookiesFile),
		userAgent:   userAgent,
		rateLimit:   cfg.ParsedDownloadSpeedLimit,
	}
}

// Install makes sure a yt-dlp executable is available, downloading it into the user cache if needed.
func Install(ctx context.Context) error {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to install yt-dlp: %w", err)
	}

	logger.Infof(ctx, "Using yt-dlp %s at %s", resolved.Version, resolved.Executable)

	return nil
}

// FetchMetadata retrieves metadata for a single media URL without downloading it.
func (c *ClientImpl) FetchMetadata(ctx context.Context, url string) (*Metadata, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyURL
	}

	opts := c.metadataOptions()

	result, err := opts.command().Run(ctx, url)
	if err != nil {
		return nil, wrapRunError(ctx, result, err)
	}

	info, err := firstExtractedInfo(result)
	if err != nil {
		return nil, err
	}

	return metadataFromInfo(info), nil
}

// Download downloads the media at req.URL using req.Format and req.OutputTemplate.
func (c *ClientImpl) Download(ctx context.Context, req *DownloadRequest) (*DownloadResult, error) {
	if req == nil || strings.TrimSpace(req.URL) == "" {
		return nil, ErrEmptyURL
	}

	if strings.TrimSpace(req.OutputTemplate) == "" {
		return nil, ErrEmptyOutputTemplate
	}

	opts := c.downloadOptions(req)

	cmd := opts.command()
	if logger.IsDebugLevel() {
		cmd = withProgressLogging(ctx, cmd)
	}

	logger.Debugf(ctx, "Starting yt-dlp download of %s with format %q", req.URL, req.Format)

	result, err := cmd.Run(ctx, req.URL)
	if err != nil {
		return nil, wrapRunError(ctx, result, err)
	}

	info, err := firstExtractedInfo(result)
	if err != nil {
		return nil, err
	}

	return &DownloadResult{
		Filename: reportedFilename(info),
		Metadata: metadataFromInfo(info),
	}, nil
}
