package media

import (
	"errors"
	"fmt"

	"github.com/oshokin/media-grabber/internal/client/extractor"
)

// Common errors for the media service.
var (
	// ErrInvalidInput indicates a malformed request, such as an empty or non-HTTP URL.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidQuality indicates a quality token that is neither "audio", "best" nor a positive height.
	ErrInvalidQuality = fmt.Errorf("%w: unsupported quality", ErrInvalidInput)
	// ErrExtraction indicates that yt-dlp could not extract metadata or resolve formats.
	ErrExtraction = extractor.ErrExtraction
	// ErrDownloadFailed indicates that a download could not be staged.
	ErrDownloadFailed = errors.New("download failed")
	// ErrNoStagedFile indicates that yt-dlp finished without leaving a file in the request directory.
	ErrNoStagedFile = errors.New("no downloaded file found")
	// ErrAmbiguousStagedFile indicates that the request directory holds several candidate files.
	ErrAmbiguousStagedFile = errors.New("several downloaded files found")
	// ErrEmptyFilePath indicates that a tag request has no file path.
	ErrEmptyFilePath = errors.New("file path cannot be empty")
	// ErrUnexpectedStatus indicates that a cover art request returned a non-200 status.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	// ErrCoverTooLarge indicates that cover art exceeds the embeddable size.
	ErrCoverTooLarge = errors.New("cover art is too large")
)
