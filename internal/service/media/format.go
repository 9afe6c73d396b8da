package media

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// audioFormatSelector picks the best audio-only stream, or the best combined one.
	audioFormatSelector = "bestaudio/best"
	// bestFormatSelector picks the best video and audio streams, or the best combined one.
	bestFormatSelector = "bestvideo+bestaudio/best"
	// heightFormatSelector caps the video height on both the merged and the combined alternative.
	heightFormatSelector = "bestvideo[height<=%[1]d]+bestaudio/best[height<=%[1]d]"
)

// SelectFormat maps a quality token to a yt-dlp format selector.
// An empty token means "best". Anything that is not "audio", "best" or a
// positive decimal height is rejected with ErrInvalidQuality.
func SelectFormat(quality string) (string, error) {
	quality = strings.TrimSpace(quality)

	switch quality {
	case QualityAudio:
		return audioFormatSelector, nil
	case QualityBest, "":
		return bestFormatSelector, nil
	}

	height, err := strconv.ParseUint(quality, 10, 32)
	if err != nil || height == 0 {
		return "", fmt.Errorf("%w %q", ErrInvalidQuality, quality)
	}

	return fmt.Sprintf(heightFormatSelector, height), nil
}
