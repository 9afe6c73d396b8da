// Package media implements the media service: it builds quality catalogs from
// yt-dlp metadata, maps quality tokens to format selectors, and manages the
// lifecycle of staged downloads from the yt-dlp run until the file has been
// delivered and removed.
package media
