package media_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oshokin/media-grabber/internal/client/extractor"
	mock_extractor "github.com/oshokin/media-grabber/internal/client/extractor/mocks"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/service/media"
	mock_media "github.com/oshokin/media-grabber/internal/service/media/mocks"
)

const testURL = "https://example.com/watch?v=abc"

// testServiceSetup encapsulates common service test dependencies.
type testServiceSetup struct {
	mockClient       *mock_extractor.MockClient
	mockStager       *mock_media.MockStager
	mockTagProcessor *mock_media.MockTagProcessor
	service          media.Service
	config           *config.Config
}

// newTestServiceSetup creates a service with mocked collaborators and optional config overrides.
func newTestServiceSetup(t *testing.T, configOverrides ...func(*config.Config)) *testServiceSetup {
	t.Helper()

	ctrl := gomock.NewController(t)

	cfg := &config.Config{
		ConvertAudioToMP3:     true,
		EmbedAudioTags:        true,
		InfoCacheSize:         8,
		ParsedInfoCacheTTL:    time.Minute,
		ParsedInfoTimeout:     time.Minute,
		ParsedDownloadTimeout: time.Minute,
	}

	for _, override := range configOverrides {
		override(cfg)
	}

	setup := &testServiceSetup{
		mockClient:       mock_extractor.NewMockClient(ctrl),
		mockStager:       mock_media.NewMockStager(ctrl),
		mockTagProcessor: mock_media.NewMockTagProcessor(ctrl),
		config:           cfg,
	}

	setup.service = media.NewService(cfg, setup.mockClient, setup.mockStager, setup.mockTagProcessor)

	return setup
}

// TestService_GetInfo tests metadata retrieval and catalog building.
func TestService_GetInfo(t *testing.T) {
	t.Parallel()

	setup := newTestServiceSetup(t)
	height := int64(720)

	setup.mockClient.EXPECT().
		FetchMetadata(gomock.Any(), testURL).
		DoAndReturn(func(ctx context.Context, _ string) (*extractor.Metadata, error) {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)

			return &extractor.Metadata{
				Title:     "Clip",
				Thumbnail: "https://i.example.com/abc.jpg",
				Formats: []*extractor.StreamDescriptor{
					{Height: &height, HasVideoCodec: true},
					{HasVideoCodec: false},
				},
			}, nil
		})

	info, err := setup.service.GetInfo(context.Background(), "  "+testURL+"  ")
	require.NoError(t, err)

	assert.Equal(t, "Clip", info.Title)
	assert.Equal(t, "https://i.example.com/abc.jpg", info.Thumbnail)
	assert.Equal(t, []*media.QualityOption{
		{Label: "720p", Value: "720"},
		{Label: "Audio (MP3)", Value: "audio"},
	}, info.Qualities)
}

// TestService_GetInfo_Cache tests that repeated lookups hit the cache.
func TestService_GetInfo_Cache(t *testing.T) {
	t.Parallel()

	setup := newTestServiceSetup(t)

	setup.mockClient.EXPECT().
		FetchMetadata(gomock.Any(), testURL).
		Return(&extractor.Metadata{Title: "Clip"}, nil).
		Times(1)

	first, err := setup.service.GetInfo(context.Background(), testURL)
	require.NoError(t, err)

	second, err := setup.service.GetInfo(context.Background(), testURL)
	require.NoError(t, err)

	assert.Same(t, first, second)

	stats := setup.service.Statistics()
	assert.Equal(t, int64(2), stats.InfoRequests)
	assert.Equal(t, int64(1), stats.InfoCacheHits)
	assert.Zero(t, stats.InfoFailed)
}

// TestService_GetInfo_CacheDisabled tests that a zero cache size always queries yt-dlp.
func TestService_GetInfo_CacheDisabled(t *testing.T) {
	t.Parallel()

	setup := newTestServiceSetup(t, func(cfg *config.Config) { cfg.InfoCacheSize = 0 })

	setup.mockClient.EXPECT().
		FetchMetadata(gomock.Any(), testURL).
		Return(&extractor.Metadata{Title: "Clip"}, nil).
		Times(2)

	for range 2 {
		_, err := setup.service.GetInfo(context.Background(), testURL)
		require.NoError(t, err)
	}
}

// TestService_GetInfo_Errors tests input and gateway failures.
func TestService_GetInfo_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()

		setup := newTestServiceSetup(t)

		for _, rawURL := range []string{"", "   ", "not a url", "ftp://example.com/file", "/relative/path"} {
			_, err := setup.service.GetInfo(context.Background(), rawURL)
			require.ErrorIs(t, err, media.ErrInvalidInput, rawURL)
		}
	})

	t.Run("gateway failure", func(t *testing.T) {
		t.Parallel()

		setup := newTestServiceSetup(t)
		gatewayErr := errors.New("[generic] Unsupported URL")

		setup.mockClient.EXPECT().
			FetchMetadata(gomock.Any(), testURL).
			Return(nil, gatewayErr)

		_, err := setup.service.GetInfo(context.Background(), testURL)
		require.ErrorIs(t, err, media.ErrExtraction)
		require.ErrorIs(t, err, gatewayErr)
		assert.Contains(t, err.Error(), "Unsupported URL")
	})
}

// TestService_Download tests format selection and staging.
func TestService_Download(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		quality        string
		expectedFormat string
	}{
		{
			name:           "default quality",
			quality:        "",
			expectedFormat: "bestvideo+bestaudio/best",
		},
		{
			name:           "best",
			quality:        "best",
			expectedFormat: "bestvideo+bestaudio/best",
		},
		{
			name:           "height",
			quality:        "1080",
			expectedFormat: "bestvideo[height<=1080]+bestaudio/best[height<=1080]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			setup := newTestServiceSetup(t)
			artifact := &media.StagedArtifact{
				AbsolutePath:    "/staging/x/Clip.mp4",
				LogicalFilename: "Clip.mp4",
				Size:            2048,
			}

			setup.mockStager.EXPECT().
				Execute(gomock.Any(), testURL, tt.expectedFormat, gomock.Any()).
				DoAndReturn(func(
					ctx context.Context,
					_, _ string,
					opts *media.StageOptions,
				) (*media.StagedArtifact, error) {
					_, hasDeadline := ctx.Deadline()
					assert.True(t, hasDeadline)
					assert.False(t, opts.ExtractAudio)

					return artifact, nil
				})

			result, err := setup.service.Download(context.Background(), &media.DownloadRequest{
				URL:     testURL,
				Quality: tt.quality,
			})
			require.NoError(t, err)
			assert.Same(t, artifact, result)

			stats := setup.service.Statistics()
			assert.Equal(t, int64(1), stats.DownloadsStaged)
			assert.Equal(t, int64(2048), stats.BytesStaged)
		})
	}
}

// TestService_Download_Audio tests audio extraction and tagging.
func TestService_Download_Audio(t *testing.T) {
	t.Parallel()

	setup := newTestServiceSetup(t)
	artifact := &media.StagedArtifact{
		AbsolutePath:    "/staging/x/Song.mp3",
		LogicalFilename: "Song.mp3",
		Metadata: &extractor.Metadata{
			Title:     "Song",
			Uploader:  "Channel",
			Thumbnail: "https://i.example.com/abc.jpg",
		},
	}

	setup.mockStager.EXPECT().
		Execute(gomock.Any(), testURL, "bestaudio/best", &media.StageOptions{ExtractAudio: true, AudioFormat: "mp3"}).
		Return(artifact, nil)

	setup.mockTagProcessor.EXPECT().
		WriteTags(gomock.Any(), &media.WriteTagsRequest{
			FilePath: "/staging/x/Song.mp3",
			Title:    "Song",
			Artist:   "Channel",
			CoverURL: "https://i.example.com/abc.jpg",
		}).
		Return(errors.New("tagging failed"))

	result, err := setup.service.Download(context.Background(), &media.DownloadRequest{URL: testURL, Quality: "audio"})
	require.NoError(t, err, "tagging failures must not fail the download")
	assert.Same(t, artifact, result)
}

// TestService_Download_TaggingPanicFinalizes tests that a panic after staging still releases the artifact.
func TestService_Download_TaggingPanicFinalizes(t *testing.T) {
	t.Parallel()

	setup := newTestServiceSetup(t)
	artifact := &media.StagedArtifact{AbsolutePath: "/staging/x/Song.mp3", LogicalFilename: "Song.mp3"}

	gomock.InOrder(
		setup.mockStager.EXPECT().
			Execute(gomock.Any(), testURL, gomock.Any(), gomock.Any()).
			Return(artifact, nil),
		setup.mockTagProcessor.EXPECT().
			WriteTags(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, *media.WriteTagsRequest) error {
				panic("corrupt frame")
			}),
		setup.mockStager.EXPECT().
			Finalize(gomock.Any(), artifact).
			Times(1),
	)

	assert.PanicsWithValue(t, "corrupt frame", func() {
		_, _ = setup.service.Download(context.Background(), &media.DownloadRequest{URL: testURL, Quality: "audio"})
	})

	assert.Zero(t, setup.service.Statistics().DownloadsStaged)
}

// TestService_Download_AudioWithoutConversion tests audio downloads with conversion disabled.
func TestService_Download_AudioWithoutConversion(t *testing.T) {
	t.Parallel()

	setup := newTestServiceSetup(t, func(cfg *config.Config) { cfg.ConvertAudioToMP3 = false })

	setup.mockStager.EXPECT().
		Execute(gomock.Any(), testURL, "bestaudio/best", &media.StageOptions{ExtractAudio: false, AudioFormat: "mp3"}).
		Return(&media.StagedArtifact{LogicalFilename: "Song.webm"}, nil)

	_, err := setup.service.Download(context.Background(), &media.DownloadRequest{URL: testURL, Quality: "audio"})
	require.NoError(t, err)
}

// TestService_Download_Errors tests that invalid input never reaches the stager.
func TestService_Download_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  *media.DownloadRequest
	}{
		{name: "nil request", req: nil},
		{name: "empty url", req: &media.DownloadRequest{Quality: "best"}},
		{name: "invalid quality", req: &media.DownloadRequest{URL: testURL, Quality: "ultra"}},
		{name: "zero height", req: &media.DownloadRequest{URL: testURL, Quality: "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// No stager expectations: any call fails the test.
			setup := newTestServiceSetup(t)

			_, err := setup.service.Download(context.Background(), tt.req)
			require.ErrorIs(t, err, media.ErrInvalidInput)
		})
	}
}

// TestService_Download_StagerFailure tests that staging errors are returned as is.
func TestService_Download_StagerFailure(t *testing.T) {
	t.Parallel()

	setup := newTestServiceSetup(t)
	stageErr := errors.Join(media.ErrDownloadFailed, errors.New("HTTP Error 403"))

	setup.mockStager.EXPECT().
		Execute(gomock.Any(), testURL, gomock.Any(), gomock.Any()).
		Return(nil, stageErr)

	artifact, err := setup.service.Download(context.Background(), &media.DownloadRequest{URL: testURL})
	require.ErrorIs(t, err, media.ErrDownloadFailed)
	assert.Nil(t, artifact)

	stats := setup.service.Statistics()
	assert.Equal(t, int64(1), stats.DownloadsFailed)
	assert.Zero(t, stats.DownloadsStaged)
}

// TestService_Download_ConcurrencyCap tests that the download cap is enforced.
func TestService_Download_ConcurrencyCap(t *testing.T) {
	t.Parallel()

	setup := newTestServiceSetup(t, func(cfg *config.Config) { cfg.MaxConcurrentDownloads = 1 })

	var (
		running    atomic.Int32
		maxRunning atomic.Int32
		release    = make(chan struct{})
		started    = make(chan struct{}, 2)
	)

	setup.mockStager.EXPECT().
		Execute(gomock.Any(), testURL, gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string, *media.StageOptions) (*media.StagedArtifact, error) {
			current := running.Add(1)
			if current > maxRunning.Load() {
				maxRunning.Store(current)
			}

			started <- struct{}{}
			<-release

			running.Add(-1)

			return &media.StagedArtifact{}, nil
		}).
		Times(2)

	errs := make(chan error, 2)

	for range 2 {
		go func() {
			_, err := setup.service.Download(context.Background(), &media.DownloadRequest{URL: testURL})
			errs <- err
		}()
	}

	<-started

	// The second download must wait for the first one's slot.
	select {
	case <-started:
		t.Fatal("second download started while the first one held the only slot")
	case <-time.After(100 * time.Millisecond):
	}

	release <- struct{}{}

	<-started

	release <- struct{}{}

	for range 2 {
		require.NoError(t, <-errs)
	}

	assert.Equal(t, int32(1), maxRunning.Load())
}

// TestService_Download_SlotWaitCancelled tests that waiting for a slot honours cancellation.
func TestService_Download_SlotWaitCancelled(t *testing.T) {
	t.Parallel()

	setup := newTestServiceSetup(t, func(cfg *config.Config) { cfg.MaxConcurrentDownloads = 1 })

	release := make(chan struct{})
	started := make(chan struct{})

	setup.mockStager.EXPECT().
		Execute(gomock.Any(), testURL, gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string, *media.StageOptions) (*media.StagedArtifact, error) {
			close(started)
			<-release

			return &media.StagedArtifact{}, nil
		})

	firstDone := make(chan error, 1)

	go func() {
		_, err := setup.service.Download(context.Background(), &media.DownloadRequest{URL: testURL})
		firstDone <- err
	}()

	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := setup.service.Download(ctx, &media.DownloadRequest{URL: testURL})
	require.ErrorIs(t, err, media.ErrDownloadFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-firstDone)
}

// TestService_Finalize tests that Finalize delegates to the stager.
func TestService_Finalize(t *testing.T) {
	t.Parallel()

	setup := newTestServiceSetup(t)
	artifact := &media.StagedArtifact{LogicalFilename: "Clip.mp4"}

	setup.mockStager.EXPECT().Finalize(gomock.Any(), artifact)

	setup.service.Finalize(context.Background(), artifact)
}
