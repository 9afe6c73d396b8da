// Package extractor drives yt-dlp through go-ytdlp. It fetches media metadata
// and downloads a selected stream into a caller-provided output template.
// Nothing outside this package depends on go-ytdlp types.
package extractor
