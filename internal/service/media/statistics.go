package media

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/media-grabber/internal/logger"
)

// Statistics is a snapshot of the work done by a Service since it was created.
type Statistics struct {
	// StartedAt is when the service was created.
	StartedAt time.Time
	// InfoRequests counts GetInfo calls with a valid URL.
	InfoRequests int64
	// InfoCacheHits counts GetInfo calls answered from the cache.
	InfoCacheHits int64
	// InfoFailed counts GetInfo calls that failed during extraction.
	InfoFailed int64
	// DownloadsStaged counts successfully staged downloads.
	DownloadsStaged int64
	// DownloadsFailed counts valid download requests that produced no artifact.
	DownloadsFailed int64
	// BytesStaged is the total size of staged artifacts.
	BytesStaged int64
}

// statsCounters holds the live counters behind Statistics.
type statsCounters struct {
	startedAt       time.Time
	infoRequests    atomic.Int64
	infoCacheHits   atomic.Int64
	infoFailed      atomic.Int64
	downloadsStaged atomic.Int64
	downloadsFailed atomic.Int64
	bytesStaged     atomic.Int64
}

func newStatsCounters() *statsCounters {
	return &statsCounters{startedAt: time.Now()}
}

func (c *statsCounters) recordDownloadStaged(size int64) {
	c.downloadsStaged.Add(1)
	c.bytesStaged.Add(size)
}

func (c *statsCounters) snapshot() *Statistics {
	return &Statistics{
		StartedAt:       c.startedAt,
		InfoRequests:    c.infoRequests.Load(),
		InfoCacheHits:   c.infoCacheHits.Load(),
		InfoFailed:      c.infoFailed.Load(),
		DownloadsStaged: c.downloadsStaged.Load(),
		DownloadsFailed: c.downloadsFailed.Load(),
		BytesStaged:     c.bytesStaged.Load(),
	}
}

// PrintSummary logs a summary of the statistics. Nothing is logged when no request was served.
func PrintSummary(ctx context.Context, stats *Statistics) {
	if stats == nil || stats.InfoRequests+stats.DownloadsStaged+stats.DownloadsFailed == 0 {
		return
	}

	logger.Info(ctx, "═══════════════════════════════════════════════════════════════")
	logger.Info(ctx, "                      SERVICE SUMMARY")
	logger.Info(ctx, "═══════════════════════════════════════════════════════════════")
	logger.Infof(ctx, "Uptime:            %s", formatDuration(time.Since(stats.StartedAt)))
	logger.Infof(ctx, "Info requests:     %d (cache hits: %d, failed: %d)",
		stats.InfoRequests, stats.InfoCacheHits, stats.InfoFailed)
	logger.Infof(ctx, "Downloads staged:  %d", stats.DownloadsStaged)

	if stats.DownloadsFailed > 0 {
		logger.Infof(ctx, "Downloads failed:  %d", stats.DownloadsFailed)
	}

	if stats.BytesStaged > 0 {
		logger.Infof(ctx, "Data staged:       %s", humanize.IBytes(uint64(stats.BytesStaged)))
	}

	logger.Info(ctx, "═══════════════════════════════════════════════════════════════")
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}

	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	return fmt.Sprintf("%ds", seconds)
}
