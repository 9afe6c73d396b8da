package extractor

// StreamDescriptor describes one stream format reported by yt-dlp.
type StreamDescriptor struct {
	// Height is the vertical resolution in pixels, nil when yt-dlp reports none.
	Height *int64
	// HasVideoCodec is false for audio-only formats (codec "none" or absent).
	HasVideoCodec bool
}

// Metadata is the subset of yt-dlp's info dictionary the service works with.
type Metadata struct {
	// Title is the media title.
	Title string
	// Thumbnail is the URL of the preferred thumbnail, empty when unknown.
	Thumbnail string
	// Uploader is the channel or author name, empty when unknown.
	Uploader string
	// Formats lists the available stream formats.
	Formats []*StreamDescriptor
}

// DownloadRequest holds the parameters of a single download.
type DownloadRequest struct {
	// URL is the media page URL.
	URL string
	// Format is a yt-dlp format selector, e.g. "bestvideo+bestaudio/best".
	Format string
	// OutputTemplate is a yt-dlp output template, e.g. "/staging/abc/%(title)s.%(ext)s".
	OutputTemplate string
	// ExtractAudio converts the downloaded stream to AudioFormat.
	ExtractAudio bool
	// AudioFormat is the target audio codec when ExtractAudio is set, e.g. "mp3".
	AudioFormat string
}

// DownloadResult describes a finished download.
type DownloadResult struct {
	// Filename is the path yt-dlp reported for the downloaded file.
	// Post-processing (audio extraction, merging) may have changed its extension.
	Filename string
	// Metadata describes the downloaded media.
	Metadata *Metadata
}
