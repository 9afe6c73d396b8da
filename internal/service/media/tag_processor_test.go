package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/oshokin/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/media-grabber/internal/constants"
	http_transport "github.com/oshokin/media-grabber/internal/transport/http"
)

// fakeAudio is a frame sync followed by padding. It is not decodable,
// but it is long enough for id3v2 to read a header from it.
//
//nolint:gochecknoglobals // Immutable test fixture.
var fakeAudio = append([]byte{0xFF, 0xFB, 0x90, 0x64}, make([]byte, 400)...)

// writeFakeAudio writes fakeAudio to name inside a temporary directory.
func writeFakeAudio(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, fakeAudio, constants.DefaultFilePermissions))

	return path
}

// newCoverServer serves a fake PNG at /cover.png, an oversized one at /huge.png and 404 elsewhere.
func newCoverServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cover.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		case "/huge.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(make([]byte, maxCoverSize+1))
		default:
			http.NotFound(w, r)
		}
	}))

	t.Cleanup(server.Close)

	return server
}

// readPictures returns the attached pictures of an MP3 file.
func readPictures(t *testing.T, tag *id3v2.Tag) []id3v2.PictureFrame {
	t.Helper()

	frames := tag.GetFrames(tag.CommonID("Attached picture"))
	pictures := make([]id3v2.PictureFrame, 0, len(frames))

	for _, frame := range frames {
		picture, ok := frame.(id3v2.PictureFrame)
		require.True(t, ok)

		pictures = append(pictures, picture)
	}

	return pictures
}

// TestTagProcessor_WriteTags tests tagging an MP3 with title, artist and cover.
func TestTagProcessor_WriteTags(t *testing.T) {
	t.Parallel()

	server := newCoverServer(t)
	path := writeFakeAudio(t, "Song.mp3")

	processor := NewTagProcessor(http_transport.NewClient(""))

	err := processor.WriteTags(context.Background(), &WriteTagsRequest{
		FilePath: path,
		Title:    "Song",
		Artist:   "Channel",
		CoverURL: server.URL + "/cover.png",
	})
	require.NoError(t, err)

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)

	defer tag.Close()

	assert.Equal(t, "Song", tag.Title())
	assert.Equal(t, "Channel", tag.Artist())

	pictures := readPictures(t, tag)
	require.Len(t, pictures, 1)
	assert.Equal(t, "image/png", pictures[0].MimeType)
	assert.Equal(t, []byte("png-bytes"), pictures[0].Picture)
}

// TestTagProcessor_WriteTags_CoverFailure tests that a missing cover does not prevent tagging.
func TestTagProcessor_WriteTags_CoverFailure(t *testing.T) {
	t.Parallel()

	server := newCoverServer(t)
	path := writeFakeAudio(t, "Song.mp3")

	processor := NewTagProcessor(http_transport.NewClient(""))

	err := processor.WriteTags(context.Background(), &WriteTagsRequest{
		FilePath: path,
		Title:    "Song",
		CoverURL: server.URL + "/missing.jpg",
	})
	require.NoError(t, err)

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)

	defer tag.Close()

	assert.Equal(t, "Song", tag.Title())
	assert.Empty(t, readPictures(t, tag))
}

// TestTagProcessor_WriteTags_OversizedCover tests that a cover above the size limit is skipped, not truncated.
func TestTagProcessor_WriteTags_OversizedCover(t *testing.T) {
	t.Parallel()

	server := newCoverServer(t)
	path := writeFakeAudio(t, "Song.mp3")

	processor := &TagProcessorImpl{httpClient: http_transport.NewClient("")}

	_, err := processor.fetchCover(context.Background(), server.URL+"/huge.png")
	require.ErrorIs(t, err, ErrCoverTooLarge)

	err = processor.WriteTags(context.Background(), &WriteTagsRequest{
		FilePath: path,
		Title:    "Song",
		CoverURL: server.URL + "/huge.png",
	})
	require.NoError(t, err)

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)

	defer tag.Close()

	assert.Equal(t, "Song", tag.Title())
	assert.Empty(t, readPictures(t, tag))
}

// TestTagProcessor_WriteTags_Skipped tests inputs that are not tagged.
func TestTagProcessor_WriteTags_Skipped(t *testing.T) {
	t.Parallel()

	processor := NewTagProcessor(http_transport.NewClient(""))

	err := processor.WriteTags(context.Background(), &WriteTagsRequest{})
	require.ErrorIs(t, err, ErrEmptyFilePath)

	err = processor.WriteTags(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyFilePath)

	path := writeFakeAudio(t, "Clip.mp4")

	err = processor.WriteTags(context.Background(), &WriteTagsRequest{FilePath: path, Title: "Clip"})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fakeAudio, content)
}

// TestCoverMIMEType tests MIME type detection for cover art.
func TestCoverMIMEType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		coverURL    string
		expected    string
	}{
		{
			name:        "from header",
			contentType: "image/webp",
			coverURL:    "https://i.example.com/vi/abc/maxresdefault",
			expected:    "image/webp",
		},
		{
			name:        "header with parameters",
			contentType: "image/png; charset=binary",
			coverURL:    "https://i.example.com/a",
			expected:    "image/png",
		},
		{
			name:        "from extension with query",
			contentType: "application/octet-stream",
			coverURL:    "https://i.example.com/a/b.png?sqp=1",
			expected:    "image/png",
		},
		{
			name:        "fallback",
			contentType: "",
			coverURL:    "https://i.example.com/a/b",
			expected:    "image/jpeg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, coverMIMEType(tt.contentType, tt.coverURL))
		})
	}
}
