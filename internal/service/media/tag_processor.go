package media

//go:generate $MOCKGEN -source=tag_processor.go -destination=mocks/tag_processor_mock.go

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/oshokin/id3v2/v2"

	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/utils"
)

// maxCoverSize bounds the thumbnail download embedded as cover art.
const maxCoverSize = 10 * 1024 * 1024

// TagProcessor defines the interface for writing metadata tags to audio files.
type TagProcessor interface {
	WriteTags(ctx context.Context, req *WriteTagsRequest) error
}

// WriteTagsRequest contains parameters for writing metadata to an audio file.
type WriteTagsRequest struct {
	// FilePath is the path of the MP3 file.
	FilePath string
	// Title is written to the title frame.
	Title string
	// Artist is written to the lead artist frame.
	Artist string
	// CoverURL is fetched and embedded as front cover when non-empty.
	CoverURL string
}

// TagProcessorImpl provides the default implementation of TagProcessor.
type TagProcessorImpl struct {
	// httpClient fetches cover art.
	httpClient *http.Client
}

// imageMetadata contains image data and its MIME type.
type imageMetadata struct {
	// data contains the raw image bytes.
	data []byte
	// mimeType specifies the image format (e.g., "image/jpeg").
	mimeType string
}

// NewTagProcessor creates a new TagProcessor that fetches cover art with httpClient.
func NewTagProcessor(httpClient *http.Client) TagProcessor {
	return &TagProcessorImpl{httpClient: httpClient}
}

// WriteTags writes ID3v2 tags to an MP3 file. Other formats are left untouched.
// A cover that cannot be fetched is skipped; the remaining tags are still written.
func (tp *TagProcessorImpl) WriteTags(ctx context.Context, req *WriteTagsRequest) error {
	if req == nil || req.FilePath == "" {
		return ErrEmptyFilePath
	}

	if !strings.EqualFold(filepath.Ext(req.FilePath), constants.ExtensionMP3) {
		logger.Debugf(ctx, "Skipping tags for '%s': not an MP3 file", req.FilePath)

		return nil
	}

	var image *imageMetadata

	if coverURL := strings.TrimSpace(req.CoverURL); coverURL != "" {
		fetched, err := tp.fetchCover(ctx, coverURL)
		if err != nil {
			logger.Warnf(ctx, "Failed to fetch cover art: %v", err)
		} else {
			image = fetched
		}
	}

	return tp.writeMP3Tags(req, image)
}

func (tp *TagProcessorImpl) fetchCover(ctx context.Context, coverURL string) (*imageMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := tp.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close() //nolint:errcheck // Error on close is not critical here.

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverSize+1))
	if err != nil {
		return nil, err
	}

	if len(data) > maxCoverSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrCoverTooLarge, maxCoverSize)
	}

	return &imageMetadata{
		data:     data,
		mimeType: coverMIMEType(resp.Header.Get("Content-Type"), coverURL),
	}, nil
}

// coverMIMEType picks the image MIME type from the response header, then the URL extension,
// falling back to JPEG.
func coverMIMEType(contentType, coverURL string) string {
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(parsed, "image/") {
		return parsed
	}

	path := coverURL
	if i := strings.IndexAny(path, "?#"); i != -1 {
		path = path[:i]
	}

	if byExtension := mime.TypeByExtension(filepath.Ext(path)); strings.HasPrefix(byExtension, "image/") {
		parsed, _, err := mime.ParseMediaType(byExtension)
		if err == nil {
			return parsed
		}
	}

	return utils.ImageJPEGMimeType
}

func (tp *TagProcessorImpl) writeMP3Tags(req *WriteTagsRequest, image *imageMetadata) error {
	//nolint:exhaustruct // ParseFrames intentionally omitted when Parse=false (parsing disabled).
	tag, err := id3v2.Open(req.FilePath, id3v2.Options{Parse: false})
	if err != nil {
		return err
	}

	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(req.Title)

	if req.Artist != "" {
		tag.SetArtist(req.Artist)
	}

	if image != nil {
		//nolint:exhaustruct // Description field intentionally empty for cover images.
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    image.mimeType,
			PictureType: id3v2.PTFrontCover,
			Picture:     image.data,
		})
	}

	return tag.Save()
}
