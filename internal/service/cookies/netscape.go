package cookies

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"github.com/oshokin/media-grabber/internal/constants"
)

const (
	netscapeHeader = "# Netscape HTTP Cookie File\n" +
		"# This file was generated by media-grabber. Edit at your own risk.\n\n"

	// httpOnlyPrefix marks HttpOnly cookies; curl and yt-dlp strip it when loading.
	httpOnlyPrefix = "#HttpOnly_"

	netscapeTrue  = "TRUE"
	netscapeFalse = "FALSE"

	// cookieFilePermissions keeps session cookies private to the owner.
	cookieFilePermissions os.FileMode = 0o600
)

// WriteNetscape writes cookies in the Netscape cookie file format.
func WriteNetscape(w io.Writer, browserCookies []*proto.NetworkCookie) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(netscapeHeader); err != nil {
		return err
	}

	for _, c := range browserCookies {
		if c == nil || c.Name == "" {
			continue
		}

		if _, err := bw.WriteString(netscapeLine(c)); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// SaveNetscapeFile writes cookies to path, creating parent directories when needed.
func SaveNetscapeFile(path string, browserCookies []*proto.NetworkCookie) error {
	if path == "" {
		return ErrEmptyCookiesFile
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, constants.DefaultFolderPermissions); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, cookieFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to open cookies file %s: %w", path, err)
	}

	if err = WriteNetscape(f, browserCookies); err != nil {
		_ = f.Close()

		return fmt.Errorf("failed to write cookies file %s: %w", path, err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close cookies file %s: %w", path, err)
	}

	return nil
}

// netscapeLine formats one cookie as
// domain, include-subdomains, path, secure, expiry, name and value separated by tabs.
func netscapeLine(c *proto.NetworkCookie) string {
	domain := c.Domain
	if c.HTTPOnly {
		domain = httpOnlyPrefix + domain
	}

	cookiePath := c.Path
	if cookiePath == "" {
		cookiePath = "/"
	}

	var expires int64
	if !c.Session && c.Expires > 0 {
		expires = int64(c.Expires)
	}

	return strings.Join([]string{
		domain,
		netscapeBool(strings.HasPrefix(c.Domain, ".")),
		cookiePath,
		netscapeBool(c.Secure),
		fmt.Sprint(expires),
		c.Name,
		sanitizeField(c.Value),
	}, "\t") + "\n"
}

func netscapeBool(v bool) string {
	if v {
		return netscapeTrue
	}

	return netscapeFalse
}

// sanitizeField drops characters that would break the tab-separated line.
func sanitizeField(value string) string {
	return strings.NewReplacer("\t", "", "\n", "", "\r", "").Replace(value)
}
