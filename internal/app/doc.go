// Package app wires the configuration into the media pipeline and runs the
// commands exposed by the CLI: the HTTP gateway and the browser cookie login.
package app
