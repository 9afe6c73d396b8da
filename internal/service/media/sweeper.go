package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/media-grabber/internal/logger"
)

// SweepStaleStaging removes entries of stagingDir older than maxAge.
// Entries for which isActive returns true are kept regardless of age.
// A missing staging directory is not an error.
func SweepStaleStaging(
	ctx context.Context,
	stagingDir string,
	maxAge time.Duration,
	isActive func(path string) bool,
) *SweepResult {
	result := new(SweepResult)

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, &SweepError{Path: stagingDir, Err: err})
		}

		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		path := filepath.Join(stagingDir, entry.Name())
		if isActive != nil && isActive(path) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if !os.IsNotExist(err) {
				result.Errors = append(result.Errors, &SweepError{Path: path, Err: err})
			}

			continue
		}

		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err = os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, &SweepError{Path: path, Err: err})

			continue
		}

		result.Removed = append(result.Removed, path)
	}

	return result
}

// Sweeper periodically removes stale staging entries left behind by crashes or aborted deliveries.
type Sweeper struct {
	// stagingDir is the staging root.
	stagingDir string
	// maxAge is the age after which an entry is stale.
	maxAge time.Duration
	// interval is the period between sweeps.
	interval time.Duration
	// isActive protects entries of downloads still in flight.
	isActive func(path string) bool
}

// NewSweeper creates a Sweeper that skips entries the stager still owns.
func NewSweeper(stagingDir string, maxAge, interval time.Duration, stager Stager) *Sweeper {
	sweeper := &Sweeper{
		stagingDir: stagingDir,
		maxAge:     maxAge,
		interval:   interval,
	}

	if stager != nil {
		sweeper.isActive = stager.IsActive
	}

	return sweeper
}

// Run sweeps once immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ctx = logger.WithName(ctx, "sweeper")

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	result := SweepStaleStaging(ctx, s.stagingDir, s.maxAge, s.isActive)

	for _, path := range result.Removed {
		logger.Infof(ctx, "Removed stale staging entry '%s'", path)
	}

	for _, sweepErr := range result.Errors {
		logger.Warnf(ctx, "Failed to remove stale staging entry '%s': %v", sweepErr.Path, sweepErr.Err)
	}
}
