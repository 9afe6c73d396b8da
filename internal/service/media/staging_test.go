package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oshokin/media-grabber/internal/client/extractor"
	mock_extractor "github.com/oshokin/media-grabber/internal/client/extractor/mocks"
	"github.com/oshokin/media-grabber/internal/constants"
)

const testMediaURL = "https://example.com/watch?v=abc"

// testStagerSetup encapsulates common staging test dependencies.
type testStagerSetup struct {
	stager     *StagerImpl
	mockClient *mock_extractor.MockClient
	stagingDir string
}

// newTestStagerSetup creates a stager rooted in a temporary directory.
func newTestStagerSetup(t *testing.T) *testStagerSetup {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockClient := mock_extractor.NewMockClient(ctrl)
	stagingDir := filepath.Join(t.TempDir(), "staging")

	stager, err := NewStager(stagingDir, mockClient)
	require.NoError(t, err)

	impl, ok := stager.(*StagerImpl)
	require.True(t, ok)

	return &testStagerSetup{
		stager:     impl,
		mockClient: mockClient,
		stagingDir: impl.stagingDir,
	}
}

// writeFromTemplate writes content to the file the output template resolves to for filename.
func writeFromTemplate(t *testing.T, template, filename, content string) string {
	t.Helper()

	path := strings.Replace(template, outputTemplate, filename, 1)
	require.NoError(t, os.WriteFile(path, []byte(content), constants.DefaultFilePermissions))

	return path
}

// fakeDownload simulates yt-dlp writing writtenName and reporting reportedName.
func fakeDownload(
	t *testing.T,
	writtenName, reportedName, content string,
) func(context.Context, *extractor.DownloadRequest) (*extractor.DownloadResult, error) {
	t.Helper()

	return func(_ context.Context, req *extractor.DownloadRequest) (*extractor.DownloadResult, error) {
		writeFromTemplate(t, req.OutputTemplate, writtenName, content)

		reported := ""
		if reportedName != "" {
			reported = filepath.Join(filepath.Dir(req.OutputTemplate), reportedName)
		}

		return &extractor.DownloadResult{
			Filename: reported,
			Metadata: &extractor.Metadata{Title: "Clip"},
		}, nil
	}
}

// listStagingEntries returns the names of the entries in the staging root.
func listStagingEntries(t *testing.T, stagingDir string) []string {
	t.Helper()

	entries, err := os.ReadDir(stagingDir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names
}

// TestNewStager tests that the staging root is created idempotently.
func TestNewStager(t *testing.T) {
	t.Parallel()

	stagingDir := filepath.Join(t.TempDir(), "a", "b")

	_, err := NewStager(stagingDir, nil)
	require.NoError(t, err)
	assert.DirExists(t, stagingDir)

	_, err = NewStager(stagingDir, nil)
	require.NoError(t, err)
}

// TestStager_LogicalFilenameIsPortable tests that the presented name is safe on every client OS.
func TestStager_LogicalFilenameIsPortable(t *testing.T) {
	t.Parallel()

	setup := newTestStagerSetup(t)

	setup.mockClient.EXPECT().
		Download(gomock.Any(), gomock.Any()).
		DoAndReturn(fakeDownload(t, "Intro: Part 1?.mp4", "Intro: Part 1?.mp4", "video-bytes"))

	artifact, err := setup.stager.Execute(context.Background(), testMediaURL, bestFormatSelector, nil)
	require.NoError(t, err)

	assert.Equal(t, "Intro_ Part 1_.mp4", artifact.LogicalFilename)
	assert.Equal(t, "Intro: Part 1?.mp4", filepath.Base(artifact.AbsolutePath))
	assert.FileExists(t, artifact.AbsolutePath)

	setup.stager.Finalize(context.Background(), artifact)
}

// TestStager_ExecuteAndFinalize tests the full lifecycle of a staged download.
func TestStager_ExecuteAndFinalize(t *testing.T) {
	t.Parallel()

	setup := newTestStagerSetup(t)
	ctx := context.Background()

	setup.mockClient.EXPECT().
		Download(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req *extractor.DownloadRequest) (*extractor.DownloadResult, error) {
			assert.Equal(t, testMediaURL, req.URL)
			assert.Equal(t, bestFormatSelector, req.Format)
			assert.True(t, strings.HasPrefix(req.OutputTemplate, setup.stagingDir+string(filepath.Separator)))
			assert.True(t, strings.HasSuffix(req.OutputTemplate, outputTemplate))

			return fakeDownload(t, "Clip.mp4", "Clip.mp4", "video-bytes")(ctx, req)
		})

	artifact, err := setup.stager.Execute(ctx, testMediaURL, bestFormatSelector, nil)
	require.NoError(t, err)
	require.NotNil(t, artifact)

	assert.Equal(t, "Clip.mp4", artifact.LogicalFilename)
	assert.Equal(t, int64(len("video-bytes")), artifact.Size)
	assert.True(t, filepath.IsAbs(artifact.AbsolutePath))
	assert.FileExists(t, artifact.AbsolutePath)
	assert.Equal(t, "Clip", artifact.Metadata.Title)
	assert.True(t, setup.stager.IsActive(filepath.Dir(artifact.AbsolutePath)))

	setup.stager.Finalize(ctx, artifact)

	assert.NoFileExists(t, artifact.AbsolutePath)
	assert.NoDirExists(t, filepath.Dir(artifact.AbsolutePath))
	assert.False(t, setup.stager.IsActive(filepath.Dir(artifact.AbsolutePath)))
	assert.Empty(t, listStagingEntries(t, setup.stagingDir))
}

// TestStager_FinalizeIsIdempotent tests that repeated and nil finalization is harmless.
func TestStager_FinalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	setup := newTestStagerSetup(t)
	ctx := context.Background()

	unrelated := filepath.Join(setup.stagingDir, "unrelated.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep"), constants.DefaultFilePermissions))

	setup.mockClient.EXPECT().
		Download(gomock.Any(), gomock.Any()).
		DoAndReturn(fakeDownload(t, "Clip.mp4", "Clip.mp4", "data"))

	artifact, err := setup.stager.Execute(ctx, testMediaURL, bestFormatSelector, nil)
	require.NoError(t, err)

	setup.stager.Finalize(ctx, artifact)
	setup.stager.Finalize(ctx, artifact)
	setup.stager.Finalize(ctx, nil)

	assert.FileExists(t, unrelated)
	assert.Equal(t, []string{"unrelated.txt"}, listStagingEntries(t, setup.stagingDir))
}

// TestStager_ResolvesPostProcessedFile tests that a changed extension is found on disk.
func TestStager_ResolvesPostProcessedFile(t *testing.T) {
	t.Parallel()

	setup := newTestStagerSetup(t)
	ctx := context.Background()

	setup.mockClient.EXPECT().
		Download(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req *extractor.DownloadRequest) (*extractor.DownloadResult, error) {
			assert.True(t, req.ExtractAudio)
			assert.Equal(t, "mp3", req.AudioFormat)

			// yt-dlp reports the pre-extraction name.
			return fakeDownload(t, "Song.mp3", "Song.webm", "audio")(ctx, req)
		})

	artifact, err := setup.stager.Execute(ctx, testMediaURL, audioFormatSelector,
		&StageOptions{ExtractAudio: true, AudioFormat: "mp3"})
	require.NoError(t, err)

	assert.Equal(t, "Song.mp3", artifact.LogicalFilename)

	setup.stager.Finalize(ctx, artifact)
}

// TestStager_ExecuteFailureLeavesNothing tests that failed downloads leave no files behind.
func TestStager_ExecuteFailureLeavesNothing(t *testing.T) {
	t.Parallel()

	errGateway := errors.New("Video unavailable")

	tests := []struct {
		name          string
		download      func(t *testing.T) func(context.Context, *extractor.DownloadRequest) (*extractor.DownloadResult, error)
		expectedError error
	}{
		{
			name: "gateway error after partial write",
			download: func(t *testing.T) func(context.Context, *extractor.DownloadRequest) (*extractor.DownloadResult, error) {
				t.Helper()

				return func(_ context.Context, req *extractor.DownloadRequest) (*extractor.DownloadResult, error) {
					writeFromTemplate(t, req.OutputTemplate, "Clip.mp4.part", "partial")

					return nil, errGateway
				}
			},
			expectedError: errGateway,
		},
		{
			name: "gateway succeeds without a file",
			download: func(t *testing.T) func(context.Context, *extractor.DownloadRequest) (*extractor.DownloadResult, error) {
				t.Helper()

				return func(context.Context, *extractor.DownloadRequest) (*extractor.DownloadResult, error) {
					return &extractor.DownloadResult{}, nil
				}
			},
			expectedError: ErrNoStagedFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			setup := newTestStagerSetup(t)

			setup.mockClient.EXPECT().
				Download(gomock.Any(), gomock.Any()).
				DoAndReturn(tt.download(t))

			artifact, err := setup.stager.Execute(context.Background(), testMediaURL, bestFormatSelector, nil)

			require.ErrorIs(t, err, ErrDownloadFailed)
			require.ErrorIs(t, err, tt.expectedError)
			assert.Nil(t, artifact)
			assert.Empty(t, listStagingEntries(t, setup.stagingDir))
		})
	}
}

// TestStager_ConcurrentDownloadsAreIsolated tests that identical concurrent requests never collide.
func TestStager_ConcurrentDownloadsAreIsolated(t *testing.T) {
	t.Parallel()

	setup := newTestStagerSetup(t)
	ctx := context.Background()

	const downloads = 2

	setup.mockClient.EXPECT().
		Download(gomock.Any(), gomock.Any()).
		DoAndReturn(fakeDownload(t, "Clip.mp4", "Clip.mp4", "same")).
		Times(downloads)

	var (
		wg        sync.WaitGroup
		artifacts = make([]*StagedArtifact, downloads)
		errs      = make([]error, downloads)
	)

	for i := range downloads {
		wg.Add(1)

		go func() {
			defer wg.Done()

			artifacts[i], errs[i] = setup.stager.Execute(ctx, testMediaURL, bestFormatSelector, nil)
		}()
	}

	wg.Wait()

	for i := range downloads {
		require.NoError(t, errs[i])
	}

	assert.NotEqual(t, artifacts[0].AbsolutePath, artifacts[1].AbsolutePath)
	assert.Equal(t, artifacts[0].LogicalFilename, artifacts[1].LogicalFilename)

	setup.stager.Finalize(ctx, artifacts[0])

	assert.NoFileExists(t, artifacts[0].AbsolutePath)
	assert.FileExists(t, artifacts[1].AbsolutePath)

	setup.stager.Finalize(ctx, artifacts[1])

	assert.Empty(t, listStagingEntries(t, setup.stagingDir))
}

// TestResolveStagedFile tests resolution of the finished file in a request directory.
func TestResolveStagedFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		files         []string
		reported      string
		expected      string
		expectedError error
	}{
		{
			name:     "reported file exists",
			files:    []string{"a.mp4"},
			reported: "a.mp4",
			expected: "a.mp4",
		},
		{
			name:     "partial files are ignored",
			files:    []string{"a.mp3", "a.webm.part", "a.webm.ytdl", "a.f140.m4a.part-Frag3"},
			reported: "a.webm",
			expected: "a.mp3",
		},
		{
			name:     "stem match breaks ties",
			files:    []string{"a.mp3", "b.jpg"},
			reported: "a.webm",
			expected: "a.mp3",
		},
		{
			name:     "no report with single file",
			files:    []string{"a.mkv"},
			expected: "a.mkv",
		},
		{
			name:          "only partial files",
			files:         []string{"a.mp4.part"},
			reported:      "a.mp4",
			expectedError: ErrNoStagedFile,
		},
		{
			name:          "ambiguous",
			files:         []string{"a.mp4", "b.mp4"},
			expectedError: ErrAmbiguousStagedFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			requestDir := t.TempDir()

			for _, name := range tt.files {
				err := os.WriteFile(filepath.Join(requestDir, name), []byte("x"), constants.DefaultFilePermissions)
				require.NoError(t, err)
			}

			reported := ""
			if tt.reported != "" {
				reported = filepath.Join(requestDir, tt.reported)
			}

			path, err := resolveStagedFile(requestDir, reported)

			if tt.expectedError != nil {
				require.ErrorIs(t, err, tt.expectedError)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, filepath.Join(requestDir, tt.expected), path)
		})
	}
}

// TestResolveStagedFile_OutsideRequestDir tests that a reported path elsewhere is not trusted.
func TestResolveStagedFile_OutsideRequestDir(t *testing.T) {
	t.Parallel()

	requestDir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "other.mp4")

	require.NoError(t, os.WriteFile(outside, []byte("x"), constants.DefaultFilePermissions))

	_, err := resolveStagedFile(requestDir, outside)
	require.ErrorIs(t, err, ErrNoStagedFile)
}
