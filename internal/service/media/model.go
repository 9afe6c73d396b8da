package media

import (
	"sync"

	"github.com/oshokin/media-grabber/internal/client/extractor"
)

const (
	// QualityAudio selects the best audio-only stream.
	QualityAudio = "audio"
	// QualityBest selects the best video and audio streams without constraints.
	QualityBest = "best"
	// audioExtractionFormat is the codec audio-only downloads are converted to.
	audioExtractionFormat = "mp3"
)

// QualityOption is one selectable entry of a quality catalog.
type QualityOption struct {
	// Label is the human-readable name, e.g. "1080p" or "Audio (MP3)".
	Label string `json:"label"`
	// Value is the token sent back on download: a decimal height, "audio" or "best".
	Value string `json:"value"`
}

// InfoResponse describes a media URL and its quality catalog.
type InfoResponse struct {
	// Title is the media title.
	Title string `json:"title"`
	// Thumbnail is the thumbnail URL, omitted when unknown.
	Thumbnail string `json:"thumbnail,omitempty"`
	// Qualities lists the selectable qualities, best video first and audio last.
	Qualities []*QualityOption `json:"qualities"`
}

// DownloadRequest asks for a media URL at a given quality.
type DownloadRequest struct {
	// URL is the media page URL.
	URL string `json:"url"`
	// Quality is a catalog value. Empty means "best".
	Quality string `json:"quality"`
}

// StageOptions tunes a single staged download.
type StageOptions struct {
	// ExtractAudio converts the download to AudioFormat.
	ExtractAudio bool
	// AudioFormat is the target audio codec, e.g. "mp3".
	AudioFormat string
}

// StagedArtifact is a downloaded file waiting to be delivered.
// It is owned by the Stager that created it until Finalize removes it.
type StagedArtifact struct {
	// AbsolutePath is the location of the file on disk.
	AbsolutePath string
	// LogicalFilename is the name presented to the client.
	LogicalFilename string
	// Size is the file size in bytes.
	Size int64
	// Metadata describes the downloaded media as reported by yt-dlp.
	Metadata *extractor.Metadata
	// requestDir is the per-request staging directory holding the file.
	requestDir string
	// finalizeOnce makes removal happen at most once.
	finalizeOnce sync.Once
}

// SweepResult is the outcome of a stale staging sweep.
type SweepResult struct {
	// Removed lists the paths that were deleted.
	Removed []string
	// Errors lists the paths that could not be inspected or deleted.
	Errors []*SweepError
}

// SweepError pairs a staging path with the error encountered on it.
type SweepError struct {
	// Path is the staging entry.
	Path string
	// Err is the failure.
	Err error
}
