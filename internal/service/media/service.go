package media

//go:generate $MOCKGEN -source=service.go -destination=mocks/service_mock.go

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/oshokin/media-grabber/internal/client/extractor"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
)

// Service provides media information and staged downloads.
type Service interface {
	// GetInfo returns the title, thumbnail and quality catalog of a media URL.
	GetInfo(ctx context.Context, url string) (*InfoResponse, error)
	// Download stages the media at req.URL in the requested quality.
	// The caller must pass the returned artifact to Finalize once it has been delivered.
	Download(ctx context.Context, req *DownloadRequest) (*StagedArtifact, error)
	// Finalize removes a staged artifact. It is safe to call more than once.
	Finalize(ctx context.Context, artifact *StagedArtifact)
	// Statistics returns a snapshot of the requests served so far.
	Statistics() *Statistics
}

// ServiceImpl implements Service.
type ServiceImpl struct {
	// cfg contains the application configuration.
	cfg *config.Config
	// client runs yt-dlp.
	client extractor.Client
	// stager owns staged downloads.
	stager Stager
	// tagProcessor writes tags to extracted audio.
	tagProcessor TagProcessor
	// infoCache keeps recent GetInfo responses by URL. Nil when disabled.
	infoCache *expirable.LRU[string, *InfoResponse]
	// downloadSlots caps concurrent downloads. Nil when unlimited.
	downloadSlots chan struct{}
	// stats counts served requests.
	stats *statsCounters
}

// NewService creates a media service instance with dependency-injected components.
func NewService(
	cfg *config.Config,
	client extractor.Client,
	stager Stager,
	tagProcessor TagProcessor,
) Service {
	s := &ServiceImpl{
		cfg:          cfg,
		client:       client,
		stager:       stager,
		tagProcessor: tagProcessor,
		stats:        newStatsCounters(),
	}

	if cfg.InfoCacheSize > 0 {
		s.infoCache = expirable.NewLRU[string, *InfoResponse](int(cfg.InfoCacheSize), nil, cfg.ParsedInfoCacheTTL)
	}

	if cfg.MaxConcurrentDownloads > 0 {
		s.downloadSlots = make(chan struct{}, cfg.MaxConcurrentDownloads)
	}

	return s
}

// GetInfo returns the title, thumbnail and quality catalog of a media URL.
func (s *ServiceImpl) GetInfo(ctx context.Context, rawURL string) (*InfoResponse, error) {
	mediaURL, err := validateMediaURL(rawURL)
	if err != nil {
		return nil, err
	}

	s.stats.infoRequests.Add(1)

	if s.infoCache != nil {
		if cached, ok := s.infoCache.Get(mediaURL); ok {
			logger.Debugf(ctx, "Metadata cache hit for %s", mediaURL)

			s.stats.infoCacheHits.Add(1)

			return cached, nil
		}
	}

	if s.cfg.ParsedInfoTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.cfg.ParsedInfoTimeout)
		defer cancel()
	}

	metadata, err := s.client.FetchMetadata(ctx, mediaURL)
	if err != nil {
		s.stats.infoFailed.Add(1)

		if errors.Is(err, ErrExtraction) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	response := &InfoResponse{
		Title:     metadata.Title,
		Thumbnail: metadata.Thumbnail,
		Qualities: BuildQualityCatalog(metadata.Formats),
	}

	if s.infoCache != nil {
		s.infoCache.Add(mediaURL, response)
	}

	return response, nil
}

// Download stages the media at req.URL in the requested quality.
func (s *ServiceImpl) Download(ctx context.Context, req *DownloadRequest) (*StagedArtifact, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is empty", ErrInvalidInput)
	}

	mediaURL, err := validateMediaURL(req.URL)
	if err != nil {
		return nil, err
	}

	quality := strings.TrimSpace(req.Quality)
	if quality == "" {
		quality = QualityBest
	}

	formatExpression, err := SelectFormat(quality)
	if err != nil {
		return nil, err
	}

	release, err := s.acquireDownloadSlot(ctx)
	if err != nil {
		s.stats.downloadsFailed.Add(1)

		return nil, err
	}

	defer release()

	if s.cfg.ParsedDownloadTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.cfg.ParsedDownloadTimeout)
		defer cancel()
	}

	opts := &StageOptions{
		ExtractAudio: quality == QualityAudio && s.cfg.ConvertAudioToMP3,
		AudioFormat:  audioExtractionFormat,
	}

	logger.Infof(ctx, "Downloading %s in quality '%s'", mediaURL, quality)

	artifact, err := s.stager.Execute(ctx, mediaURL, formatExpression, opts)
	if err != nil {
		s.stats.downloadsFailed.Add(1)

		return nil, err
	}

	// The caller only finalizes artifacts it receives; a panic below would leave it staged for good.
	handedOver := false

	defer func() {
		if !handedOver {
			s.stager.Finalize(ctx, artifact)
		}
	}()

	if opts.ExtractAudio && s.cfg.EmbedAudioTags {
		s.tagAudio(ctx, artifact)
	}

	s.stats.recordDownloadStaged(artifact.Size)

	handedOver = true

	return artifact, nil
}

// Finalize removes a staged artifact.
func (s *ServiceImpl) Finalize(ctx context.Context, artifact *StagedArtifact) {
	s.stager.Finalize(ctx, artifact)
}

// Statistics returns a snapshot of the requests served so far.
func (s *ServiceImpl) Statistics() *Statistics {
	return s.stats.snapshot()
}

// acquireDownloadSlot blocks until a download slot is free or ctx is done.
func (s *ServiceImpl) acquireDownloadSlot(ctx context.Context) (func(), error) {
	if s.downloadSlots == nil {
		return func() {}, nil
	}

	select {
	case s.downloadSlots <- struct{}{}:
		return func() { <-s.downloadSlots }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for a download slot: %w", ErrDownloadFailed, ctx.Err())
	}
}

// tagAudio writes tags to an extracted MP3. Failures are logged and never fail the download.
func (s *ServiceImpl) tagAudio(ctx context.Context, artifact *StagedArtifact) {
	req := &WriteTagsRequest{
		FilePath: artifact.AbsolutePath,
		Title:    fileStem(artifact.LogicalFilename),
	}

	if metadata := artifact.Metadata; metadata != nil {
		if metadata.Title != "" {
			req.Title = metadata.Title
		}

		req.Artist = metadata.Uploader
		req.CoverURL = metadata.Thumbnail
	}

	if err := s.tagProcessor.WriteTags(ctx, req); err != nil {
		logger.Warnf(ctx, "Failed to write tags to '%s': %v", artifact.LogicalFilename, err)

		return
	}

	// Tags change the file size reported to the client.
	if info, err := os.Stat(artifact.AbsolutePath); err == nil {
		artifact.Size = info.Size()
	}
}

// validateMediaURL trims rawURL and checks that it is an absolute HTTP(S) URL.
func validateMediaURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidInput)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: malformed url: %w", ErrInvalidInput, err)
	}

	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: url must be an absolute http(s) url", ErrInvalidInput)
	}

	return rawURL, nil
}
