package media

import (
	"maps"
	"slices"
	"strconv"

	"github.com/oshokin/media-grabber/internal/client/extractor"
	"github.com/oshokin/media-grabber/internal/utils"
)

// audioOptionLabel is the label of the audio-only catalog entry.
const audioOptionLabel = "Audio (MP3)"

// BuildQualityCatalog turns yt-dlp stream descriptors into a list of selectable qualities.
// Only descriptors with a positive height and a video codec contribute; heights are
// deduplicated and sorted descending. The audio entry is always present and always last.
func BuildQualityCatalog(descriptors []*extractor.StreamDescriptor) []*QualityOption {
	heights := make(map[int64]struct{}, len(descriptors))

	for _, d := range descriptors {
		if d == nil || d.Height == nil || *d.Height <= 0 || !d.HasVideoCodec {
			continue
		}

		heights[*d.Height] = struct{}{}
	}

	sortedHeights := slices.Sorted(maps.Keys(heights))
	slices.Reverse(sortedHeights)

	options := utils.Map(sortedHeights, func(height int64) *QualityOption {
		value := strconv.FormatInt(height, 10)

		return &QualityOption{
			Label: value + "p",
			Value: value,
		}
	})

	return append(options, &QualityOption{
		Label: audioOptionLabel,
		Value: QualityAudio,
	})
}
