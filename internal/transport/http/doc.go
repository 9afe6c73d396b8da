// Package http provides the outgoing HTTP plumbing used for auxiliary fetches
// such as thumbnail downloads: User-Agent injection and debug-level
// request/response dumps with sensitive headers redacted.
package http
