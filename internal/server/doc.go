// Package server exposes the media service over HTTP with gin:
// health, info and download endpoints, CORS, request logging and optional
// static frontend assets.
package server
