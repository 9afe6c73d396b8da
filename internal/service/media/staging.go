package media

//go:generate $MOCKGEN -source=staging.go -destination=mocks/staging_mock.go

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/oshokin/media-grabber/internal/client/extractor"
	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/utils"
)

// outputTemplate names staged files after the media title, as yt-dlp does by default.
const outputTemplate = "%(title)s.%(ext)s"

// partialFileSuffixes mark files yt-dlp is still writing or has abandoned.
//
//nolint:gochecknoglobals // Immutable list used as a constant.
var partialFileSuffixes = []string{".part", ".ytdl", ".temp", ".tmp"}

// Stager downloads media into per-request staging directories and removes them after delivery.
type Stager interface {
	// Execute downloads url with the given format selector and returns the staged file.
	// On failure nothing is left behind in the staging directory.
	Execute(ctx context.Context, url, formatExpression string, opts *StageOptions) (*StagedArtifact, error)
	// Finalize removes the staged file and its request directory. It is safe to call more than once.
	Finalize(ctx context.Context, artifact *StagedArtifact)
	// IsActive reports whether the staging entry at path belongs to a download that has not been finalized.
	IsActive(path string) bool
}

// StagerImpl implements Stager on top of the extractor client.
type StagerImpl struct {
	// stagingDir is the absolute staging root.
	stagingDir string
	// client runs yt-dlp.
	client extractor.Client
	// activeDirs holds request directories of downloads in progress or awaiting delivery.
	activeDirs *sync.Map
}

// NewStager creates a Stager rooted at stagingDir, creating the directory if needed.
func NewStager(stagingDir string, client extractor.Client) (Stager, error) {
	absStagingDir, err := filepath.Abs(stagingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staging directory: %w", err)
	}

	if err = os.MkdirAll(absStagingDir, constants.DefaultFolderPermissions); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	return &StagerImpl{
		stagingDir: absStagingDir,
		client:     client,
		activeDirs: new(sync.Map),
	}, nil
}

// Execute downloads url with the given format selector and returns the staged file.
func (s *StagerImpl) Execute(
	ctx context.Context,
	url, formatExpression string,
	opts *StageOptions,
) (*StagedArtifact, error) {
	// The staging root may have been removed by hand since startup.
	if err := os.MkdirAll(s.stagingDir, constants.DefaultFolderPermissions); err != nil {
		return nil, fmt.Errorf("%w: failed to create staging directory: %w", ErrDownloadFailed, err)
	}

	requestDir := filepath.Join(s.stagingDir, uuid.NewString())

	s.activeDirs.Store(requestDir, struct{}{})

	if err := os.Mkdir(requestDir, constants.DefaultFolderPermissions); err != nil {
		s.activeDirs.Delete(requestDir)

		return nil, fmt.Errorf("%w: failed to create request directory: %w", ErrDownloadFailed, err)
	}

	artifact, err := s.stage(ctx, requestDir, url, formatExpression, opts)
	if err != nil {
		s.removeRequestDir(ctx, requestDir)

		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	logger.Infof(ctx, "Staged '%s' (%s)", artifact.LogicalFilename, humanize.Bytes(uint64(artifact.Size))) //nolint:gosec,lll // Size comes from os.Stat and is non-negative.

	return artifact, nil
}

// Finalize removes the staged file and its request directory.
// Errors are logged, never returned: delivery has already happened or failed.
func (s *StagerImpl) Finalize(ctx context.Context, artifact *StagedArtifact) {
	if artifact == nil {
		return
	}

	artifact.finalizeOnce.Do(func() {
		if artifact.AbsolutePath != "" {
			err := os.Remove(artifact.AbsolutePath)
			if err != nil && !os.IsNotExist(err) {
				logger.Warnf(ctx, "Failed to remove staged file '%s': %v", artifact.AbsolutePath, err)
			}
		}

		if artifact.requestDir != "" {
			s.removeRequestDir(ctx, artifact.requestDir)
		}

		logger.Debugf(ctx, "Finalized staged file '%s'", artifact.LogicalFilename)
	})
}

// IsActive reports whether the staging entry at path belongs to a download that has not been finalized.
func (s *StagerImpl) IsActive(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	_, ok := s.activeDirs.Load(absPath)

	return ok
}

func (s *StagerImpl) stage(
	ctx context.Context,
	requestDir, url, formatExpression string,
	opts *StageOptions,
) (*StagedArtifact, error) {
	req := &extractor.DownloadRequest{
		URL:            url,
		Format:         formatExpression,
		OutputTemplate: filepath.Join(requestDir, outputTemplate),
	}

	if opts != nil {
		req.ExtractAudio = opts.ExtractAudio
		req.AudioFormat = opts.AudioFormat
	}

	result, err := s.client.Download(ctx, req)
	if err != nil {
		return nil, err
	}

	path, err := resolveStagedFile(requestDir, result.Filename)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect downloaded file: %w", err)
	}

	return &StagedArtifact{
		AbsolutePath:    path,
		LogicalFilename: utils.SanitizeFilename(filepath.Base(path)),
		Size:            info.Size(),
		Metadata:        result.Metadata,
		requestDir:      requestDir,
	}, nil
}

func (s *StagerImpl) removeRequestDir(ctx context.Context, requestDir string) {
	defer s.activeDirs.Delete(requestDir)

	// Never remove anything outside the staging root.
	if filepath.Dir(requestDir) != s.stagingDir {
		logger.Warnf(ctx, "Refusing to remove '%s': not a staging request directory", requestDir)

		return
	}

	if err := os.RemoveAll(requestDir); err != nil {
		logger.Warnf(ctx, "Failed to remove staging directory '%s': %v", requestDir, err)
	}
}

// resolveStagedFile finds the finished file in requestDir.
// The reported filename wins when it exists inside requestDir. Post-processing
// (audio extraction, merging) can change the extension, so otherwise the only
// finished file in the directory is used, preferring one that shares the
// reported file's stem.
func resolveStagedFile(requestDir, reported string) (string, error) {
	if reported != "" {
		candidate := filepath.Clean(reported)
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(requestDir, candidate)
		}

		if filepath.Dir(candidate) == requestDir && isRegularFile(candidate) {
			return candidate, nil
		}
	}

	entries, err := os.ReadDir(requestDir)
	if err != nil {
		return "", fmt.Errorf("failed to list request directory: %w", err)
	}

	candidates := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.Type().IsRegular() || isPartialFile(entry.Name()) {
			continue
		}

		candidates = append(candidates, entry.Name())
	}

	switch len(candidates) {
	case 0:
		return "", ErrNoStagedFile
	case 1:
		return filepath.Join(requestDir, candidates[0]), nil
	}

	if reported != "" {
		reportedStem := fileStem(filepath.Base(reported))

		for _, name := range candidates {
			if fileStem(name) == reportedStem {
				return filepath.Join(requestDir, name), nil
			}
		}
	}

	return "", fmt.Errorf("%w: %s", ErrAmbiguousStagedFile, strings.Join(candidates, ", "))
}

func isPartialFile(name string) bool {
	for _, suffix := range partialFileSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}

	// Fragmented downloads leave "<name>.part-Frag<N>" files.
	return strings.Contains(name, ".part-Frag")
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

func fileStem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
