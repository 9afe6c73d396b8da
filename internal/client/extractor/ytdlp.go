package extractor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lrstanley/go-ytdlp"

	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/utils"
)

const (
	// progressLogInterval is how often download progress is written to the debug log.
	progressLogInterval = 5 * time.Second

	// noCodec is the value yt-dlp reports for a missing codec.
	noCodec = "none"

	// errorLinePrefix marks fatal messages in yt-dlp's stderr.
	errorLinePrefix = "ERROR:"
)

// commandOptions is the flag set of a single yt-dlp invocation.
type commandOptions struct {
	// skipDownload only extracts metadata.
	skipDownload bool
	// format is the --format selector.
	format string
	// output is the --output template.
	output string
	// cookiesFile is passed as --cookies when non-empty.
	cookiesFile string
	// rateLimit is passed as --limit-rate when positive.
	rateLimit int64
	// userAgent is sent as a User-Agent header.
	userAgent string
	// extractAudio enables --extract-audio.
	extractAudio bool
	// audioFormat is the --audio-format value.
	audioFormat string
}

func (c *ClientImpl) metadataOptions() *commandOptions {
	return &commandOptions{
		skipDownload: true,
		cookiesFile:  c.existingCookiesFile(),
		userAgent:    c.userAgent,
	}
}

func (c *ClientImpl) downloadOptions(req *DownloadRequest) *commandOptions {
	opts := &commandOptions{
		format:      req.Format,
		output:      req.OutputTemplate,
		cookiesFile: c.existingCookiesFile(),
		rateLimit:   c.rateLimit,
		userAgent:   c.userAgent,
	}

	if req.ExtractAudio && req.AudioFormat != "" {
		opts.extractAudio = true
		opts.audioFormat = req.AudioFormat
	}

	return opts
}

// existingCookiesFile returns the cookie file path only when the file is on disk,
// so a login performed while the server runs is picked up by the next request.
func (c *ClientImpl) existingCookiesFile() string {
	if c.cookiesFile == "" {
		return ""
	}

	exists, err := utils.IsFileExist(c.cookiesFile)
	if err != nil || !exists {
		return ""
	}

	return c.cookiesFile
}

// command translates the options into a go-ytdlp command.
func (o *commandOptions) command() *ytdlp.Command {
	cmd := ytdlp.New().
		NoPlaylist().
		PrintJSON()

	if o.skipDownload {
		cmd = cmd.SkipDownload()
	}

	if o.format != "" {
		cmd = cmd.Format(o.format)
	}

	if o.output != "" {
		cmd = cmd.Output(o.output)
	}

	if o.cookiesFile != "" {
		cmd = cmd.Cookies(o.cookiesFile)
	}

	if o.rateLimit > 0 {
		cmd = cmd.LimitRate(strconv.FormatInt(o.rateLimit, 10))
	}

	if o.userAgent != "" {
		cmd = cmd.AddHeaders("User-Agent:" + o.userAgent)
	}

	if o.extractAudio {
		cmd = cmd.ExtractAudio().AudioFormat(o.audioFormat)
	}

	return cmd
}

func withProgressLogging(ctx context.Context, cmd *ytdlp.Command) *ytdlp.Command {
	return cmd.ProgressFunc(progressLogInterval, func(update ytdlp.ProgressUpdate) {
		downloaded := uint64(max(update.DownloadedBytes, 0)) //nolint:gosec // Clamped to non-negative.
		total := uint64(max(update.TotalBytes, 0))           //nolint:gosec // Clamped to non-negative.

		logger.Debugf(ctx, "yt-dlp %s: %s of %s", update.Status, humanize.Bytes(downloaded), humanize.Bytes(total))
	})
}

func firstExtractedInfo(result *ytdlp.Result) (*ytdlp.ExtractedInfo, error) {
	infos, err := result.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse yt-dlp output: %w", ErrExtraction, err)
	}

	for _, info := range infos {
		if info != nil {
			return info, nil
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrExtraction, ErrEmptyResult)
}

func metadataFromInfo(info *ytdlp.ExtractedInfo) *Metadata {
	metadata := &Metadata{
		Title:     deref(info.Title),
		Thumbnail: deref(info.Thumbnail),
		Uploader:  deref(info.Uploader),
		Formats:   make([]*StreamDescriptor, 0, len(info.Formats)),
	}

	for _, format := range info.Formats {
		if format == nil {
			continue
		}

		metadata.Formats = append(metadata.Formats, descriptorFromFormat(format))
	}

	return metadata
}

func descriptorFromFormat(format *ytdlp.ExtractedFormat) *StreamDescriptor {
	descriptor := &StreamDescriptor{
		HasVideoCodec: hasCodec(deref(format.VCodec)),
	}

	if format.Height != nil && *format.Height > 0 {
		height := int64(*format.Height)
		descriptor.Height = &height
	}

	return descriptor
}

func reportedFilename(info *ytdlp.ExtractedInfo) string {
	return deref(info.Filename)
}

// hasCodec reports whether a yt-dlp codec value names an actual codec.
func hasCodec(codec string) bool {
	codec = strings.TrimSpace(codec)

	return codec != "" && codec != noCodec
}

// wrapRunError turns a failed yt-dlp run into an ErrExtraction, keeping yt-dlp's own message.
func wrapRunError(ctx context.Context, result *ytdlp.Result, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, ctxErr)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	if result != nil {
		if message := lastErrorLine(result.Stderr); message != "" {
			return fmt.Errorf("%w: %s", ErrExtraction, message)
		}
	}

	return fmt.Errorf("%w: %w", ErrExtraction, err)
}

// lastErrorLine returns the last "ERROR:" message in yt-dlp's stderr without the prefix.
func lastErrorLine(stderr string) string {
	lines := strings.Split(stderr, "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if message, found := strings.CutPrefix(line, errorLinePrefix); found {
			return strings.TrimSpace(message)
		}
	}

	return ""
}

func deref[T any](v *T) T {
	if v == nil {
		var zero T

		return zero
	}

	return *v
}
