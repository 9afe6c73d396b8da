package extractor

import "errors"

// Static error definitions for better error handling.
var (
	// ErrExtraction indicates that yt-dlp failed to extract or download the media.
	ErrExtraction = errors.New("extraction failed")
	// ErrEmptyResult indicates that yt-dlp finished without printing any media information.
	ErrEmptyResult = errors.New("yt-dlp returned no media information")
	// ErrEmptyURL indicates that no URL was given.
	ErrEmptyURL = errors.New("url is empty")
	// ErrEmptyOutputTemplate indicates that a download was requested without an output template.
	ErrEmptyOutputTemplate = errors.New("output template is empty")
)
