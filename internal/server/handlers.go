package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/media-grabber/internal/service/media"
)

// indexFile is served for unknown frontend routes so client-side routing keeps working.
const indexFile = "index.html"

// mediaRequest is the JSON body of /info and /download.
type mediaRequest struct {
	// URL is the media page URL.
	URL string `json:"url"`
	// Quality is a catalog value; only used by /download.
	Quality string `json:"quality"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleInfo(c *gin.Context) {
	req, ok := s.bindMediaRequest(c)
	if !ok {
		return
	}

	info, err := s.service.GetInfo(c.Request.Context(), req.URL)
	if err != nil {
		s.abortBadRequest(c, err)

		return
	}

	c.JSON(http.StatusOK, info)
}

func (s *Server) handleDownload(c *gin.Context) {
	req, ok := s.bindMediaRequest(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	artifact, err := s.service.Download(ctx, &media.DownloadRequest{
		URL:     req.URL,
		Quality: req.Quality,
	})
	if err != nil {
		s.abortBadRequest(c, err)

		return
	}

	// The file is streamed synchronously below, so removal happens only after
	// the transfer completed, failed or panicked.
	defer s.service.Finalize(context.WithoutCancel(ctx), artifact)

	c.Header(filenameHeader, url.PathEscape(artifact.LogicalFilename))
	c.FileAttachment(artifact.AbsolutePath, artifact.LogicalFilename)
}

// handleNoRoute serves static frontend assets for GET requests when a static directory is configured.
func (s *Server) handleNoRoute(c *gin.Context) {
	staticDir := strings.TrimSpace(s.cfg.StaticDir)

	method := c.Request.Method
	if staticDir == "" || (method != http.MethodGet && method != http.MethodHead) {
		s.abortWithError(c, http.StatusNotFound, fmt.Errorf("%w: %s %s", ErrNotFound, method, c.Request.URL.Path))

		return
	}

	// Cleaning a rooted path keeps the result inside staticDir.
	requested := filepath.Join(staticDir, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))

	if isFile(requested) {
		c.File(requested)

		return
	}

	// Paths with an extension are asset requests and must not fall back to the index.
	index := filepath.Join(staticDir, indexFile)
	if path.Ext(c.Request.URL.Path) == "" && isFile(index) {
		c.File(index)

		return
	}

	s.abortWithError(c, http.StatusNotFound, fmt.Errorf("%w: %s", ErrNotFound, c.Request.URL.Path))
}

// bindMediaRequest decodes the JSON body and checks that it carries a URL.
// It responds with 400 and returns false on failure.
func (s *Server) bindMediaRequest(c *gin.Context) (*mediaRequest, bool) {
	req := new(mediaRequest)

	if err := c.ShouldBindJSON(req); err != nil {
		s.abortBadRequest(c, fmt.Errorf("invalid request body: %w", err))

		return nil, false
	}

	if strings.TrimSpace(req.URL) == "" {
		s.abortBadRequest(c, ErrMissingURL)

		return nil, false
	}

	return req, true
}

func isFile(name string) bool {
	info, err := os.Stat(name)

	return err == nil && info.Mode().IsRegular()
}
